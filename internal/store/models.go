package store

import (
	"encoding/json"
	"time"
)

type Organization struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

type User struct {
	ID                 string
	OrganizationID     string
	Email              string
	DisplayName        string
	PasswordHash       string
	Role               string
	EmailNotifications bool
	DeactivatedAt      *time.Time
	CreatedAt          time.Time
}

type IntakeForm struct {
	ID             string
	OrganizationID string
	Name           string
	Active         bool
	CreatedAt      time.Time
}

// Submission is one intake form submission. Data keeps the raw JSON payload as submitted.
type Submission struct {
	ID             string
	OrganizationID string
	FormID         string
	Data           json.RawMessage
	Status         string
	Priority       int
	LeadID         string
	ReviewedBy     string
	ReviewedAt     *time.Time
	ReviewNotes    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type SubmissionFilter struct {
	Status string
	Cursor string
	Limit  int
}

type Lead struct {
	ID             string
	OrganizationID string
	SubmissionID   string
	Name           string
	Email          string
	Phone          string
	PracticeArea   string
	Description    string
	Urgency        string
	Status         string
	MatterID       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type LeadFilter struct {
	Status string
	Cursor string
	Limit  int
}

// ConflictHit is one party match found while running a conflict check.
type ConflictHit struct {
	Term       string `json:"term"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Name       string `json:"name"`
	Role       string `json:"role"`
}

type ConflictCheck struct {
	ID              string
	OrganizationID  string
	SubjectType     string
	SubjectID       string
	SearchTerms     []string
	Status          string
	Result          []ConflictHit
	RunBy           string
	ResolvedBy      string
	ResolvedAt      *time.Time
	ResolutionNotes string
	CreatedAt       time.Time
}

type Matter struct {
	ID                    string
	OrganizationID        string
	Title                 string
	ClientName            string
	OpposingParties       []string
	PracticeArea          string
	Description           string
	Status                string
	LeadID                string
	ResponsibleAttorneyID string
	OpenedAt              time.Time
	ClosedAt              *time.Time
	UpdatedAt             time.Time
}

type MatterFilter struct {
	Status string
	Cursor string
	Limit  int
}

// CalendarEvent carries the reminder bookkeeping next to the schedule. FiredReminders
// holds every lead-time (in minutes) already processed for the current start time.
type CalendarEvent struct {
	ID                   string
	OrganizationID       string
	OwnerID              string
	MatterID             string
	Title                string
	Description          string
	Location             string
	EventType            string
	StartTime            time.Time
	EndTime              *time.Time
	ReminderMinutes      *int
	AdditionalReminders  []int
	FiredReminders       []int
	PrimaryReminderFired bool
	NotifyEmail          bool
	NotifyPush           bool
	RemindersPending     bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type EventRange struct {
	From     time.Time
	To       time.Time
	MatterID string
	OwnerID  string
}

type PromptTemplate struct {
	ID             string
	OrganizationID string
	Name           string
	Description    string
	DocumentType   string
	Body           string
	Variables      []string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type GeneratedDocument struct {
	ID             string
	OrganizationID string
	MatterID       string
	TemplateID     string
	Title          string
	Status         string
	Content        string
	Error          string
	CommitHash     string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type DamageCalculation struct {
	ID             string
	OrganizationID string
	MatterID       string
	Input          json.RawMessage
	Result         json.RawMessage
	Total          string
	CreatedBy      string
	CreatedAt      time.Time
}

type AuditEntry struct {
	ID             string
	OrganizationID string
	ActorID        string
	Action         string
	EntityType     string
	EntityID       string
	Details        map[string]any
	CreatedAt      time.Time
}

type AuditFilter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Cursor     string
	Limit      int
}

type Notification struct {
	ID             string
	OrganizationID string
	RecipientID    string
	Type           string
	Title          string
	Message        string
	Payload        map[string]any
	ReadAt         *time.Time
	CreatedAt      time.Time
}

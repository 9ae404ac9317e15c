package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"lexdesk/api/internal/ai"
	"lexdesk/api/internal/auth"
	"lexdesk/api/internal/blob"
	"lexdesk/api/internal/cache"
	"lexdesk/api/internal/config"
	"lexdesk/api/internal/damages"
	"lexdesk/api/internal/drafts"
	"lexdesk/api/internal/export"
	"lexdesk/api/internal/intake"
	"lexdesk/api/internal/outbox"
	"lexdesk/api/internal/rbac"
	"lexdesk/api/internal/search"
	"lexdesk/api/internal/session"
	"lexdesk/api/internal/store"
	"lexdesk/api/internal/util"
)

// Session is the authenticated caller of a request.
type Session struct {
	Token          string
	RefreshToken   string
	UserID         string
	OrganizationID string
	UserName       string
	Role           string
	ExpiresAt      time.Time
}

type dataStore interface {
	intake.Store
	Ping(context.Context) error

	CreateOrganization(context.Context, store.Organization) error
	GetOrganization(context.Context, string) (store.Organization, error)
	GetOrganizationBySlug(context.Context, string) (store.Organization, error)
	InsertUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUser(context.Context, string, string) (store.User, error)
	ListUsers(context.Context, string) ([]store.User, error)
	UpdateUserRole(context.Context, string, string, string) error
	InsertIntakeForm(context.Context, store.IntakeForm) error
	GetIntakeForm(context.Context, string) (store.IntakeForm, error)
	ListIntakeForms(context.Context, string) ([]store.IntakeForm, error)

	GetLead(context.Context, string, string) (store.Lead, error)
	ListLeads(context.Context, string, store.LeadFilter) (store.Page[store.Lead], error)
	UpdateLeadStatus(context.Context, string, string, string) (bool, error)
	ReplaceConflictCheck(context.Context, store.ConflictCheck) error
	GetConflictCheck(context.Context, string, string) (store.ConflictCheck, error)
	LatestConflictCheck(context.Context, string, string, string) (store.ConflictCheck, error)
	ListConflictChecks(context.Context, string, string, string) ([]store.ConflictCheck, error)
	ResolveConflictCheck(context.Context, string, string, string, string) (bool, error)

	InsertMatter(context.Context, store.Matter) error
	ConvertLeadToMatter(context.Context, store.Matter) (bool, error)
	GetMatter(context.Context, string, string) (store.Matter, error)
	ListMatters(context.Context, string, store.MatterFilter) (store.Page[store.Matter], error)
	UpdateMatterStatus(context.Context, string, string, string) (store.Matter, error)

	InsertEvent(context.Context, store.CalendarEvent) error
	GetEvent(context.Context, string, string) (store.CalendarEvent, error)
	ListEvents(context.Context, string, store.EventRange) ([]store.CalendarEvent, error)
	UpdateEvent(context.Context, store.CalendarEvent, bool) error
	DeleteEvent(context.Context, string, string) error

	InsertPromptTemplate(context.Context, store.PromptTemplate) error
	UpdatePromptTemplate(context.Context, store.PromptTemplate) error
	GetPromptTemplate(context.Context, string, string) (store.PromptTemplate, error)
	ListPromptTemplates(context.Context, string) ([]store.PromptTemplate, error)
	DeletePromptTemplate(context.Context, string, string) error
	InsertDocument(context.Context, store.GeneratedDocument) error
	GetDocument(context.Context, string, string) (store.GeneratedDocument, error)
	ListDocuments(context.Context, string, string) ([]store.GeneratedDocument, error)
	UpdateDocumentContent(context.Context, store.GeneratedDocument) error
	InsertDamageCalculation(context.Context, store.DamageCalculation) error
	ListDamageCalculations(context.Context, string, string) ([]store.DamageCalculation, error)

	InsertAuditEntry(context.Context, store.AuditEntry) error
	ListAuditEntries(context.Context, string, store.AuditFilter) (store.Page[store.AuditEntry], error)
	ListNotifications(context.Context, string, string, bool, int) ([]store.Notification, error)
	MarkNotificationRead(context.Context, string, string, string) error
	MarkAllNotificationsRead(context.Context, string, string) (int64, error)
}

type sessionStore interface {
	Save(ctx context.Context, tokenHash string, sess session.Session, expiresAt time.Time) error
	Consume(ctx context.Context, tokenHash string) (session.Session, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeUser(ctx context.Context, userID string) error
}

type partySearch interface {
	SearchParties(ctx context.Context, orgID, term string, limit int) ([]search.Match, error)
	IndexParties(ctx context.Context, parties []search.Party)
}

type draftStore interface {
	Commit(matterID, documentID, content, author, message string) (drafts.Version, error)
	Read(matterID, documentID, hash string) (string, error)
	History(matterID, documentID string, limit int) ([]drafts.Version, error)
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type blobStore interface {
	Put(ctx context.Context, key, filename, contentType string, data []byte) (blob.Object, error)
}

type templateCache interface {
	Get(ctx context.Context, orgID, templateID string) (store.PromptTemplate, bool, error)
	Set(ctx context.Context, tmpl store.PromptTemplate) error
	Invalidate(ctx context.Context, orgID, templateID string) error
}

// Dependencies are the adapters main wires into the service. Blobs and
// Templates may be nil when object storage or Redis caching is disabled.
type Dependencies struct {
	Store     *store.PostgresStore
	Sessions  *session.RedisStore
	Search    *search.Service
	Drafts    *drafts.Service
	Exporter  *export.Service
	Blobs     *blob.Store
	Templates *cache.Templates
	AI        ai.Completer
	Publisher outbox.Publisher
	Logger    *slog.Logger
}

type Service struct {
	cfg         config.Config
	store       dataStore
	intake      *intake.Manager
	tokens      *auth.Issuer
	sessions    sessionStore
	search      partySearch
	drafts      draftStore
	exporter    exporter
	blobs       blobStore
	templates   templateCache
	ai          ai.Completer
	publisher   outbox.Publisher
	logger      *slog.Logger
	mileageRate decimal.Decimal
	now         func() time.Time
	newID       func(prefix string) string
}

func New(cfg config.Config, deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = outbox.Discard
	}
	svc := &Service{
		cfg:         cfg,
		store:       deps.Store,
		intake:      intake.NewManager(deps.Store, publisher, logger),
		tokens:      auth.NewIssuer(cfg.JWTSecret, cfg.AccessTTL),
		sessions:    deps.Sessions,
		search:      deps.Search,
		drafts:      deps.Drafts,
		exporter:    deps.Exporter,
		ai:          deps.AI,
		publisher:   publisher,
		logger:      logger,
		mileageRate: mileageRate(cfg.MileageRatePerMile, logger),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       util.NewID,
	}
	// Typed nil pointers must not end up inside the interfaces.
	if deps.Blobs != nil {
		svc.blobs = deps.Blobs
	}
	if deps.Templates != nil {
		svc.templates = deps.Templates
	}
	return svc
}

func mileageRate(value string, logger *slog.Logger) decimal.Decimal {
	if value == "" {
		return damages.DefaultMileageRate
	}
	rate, err := decimal.NewFromString(value)
	if err != nil || !rate.IsPositive() {
		logger.Warn("invalid mileage rate, using default", "value", value, "default", damages.DefaultMileageRate.String())
		return damages.DefaultMileageRate
	}
	return rate
}

// Ping verifies the database connection is alive
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// audit records a mutation. Failures are logged and never returned.
func (s *Service) audit(ctx context.Context, orgID, actorID, action, entityType, entityID string, details map[string]any) {
	entry := store.AuditEntry{
		ID:             s.newID("aud"),
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		Details:        details,
		CreatedAt:      s.now(),
	}
	if err := s.store.InsertAuditEntry(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			"org_id", orgID,
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
	}
}

// publish hands an event to the outbox. Failures are logged and swallowed.
func (s *Service) publish(ctx context.Context, event outbox.Event) {
	if event.ID == "" {
		event.ID = s.newID("evt")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("notification publish failed",
			"org_id", event.OrganizationID,
			"event_type", event.Type,
			"error", err,
		)
	}
}

func (s *Service) indexParties(ctx context.Context, parties []search.Party) {
	if s.search == nil {
		return
	}
	s.search.IndexParties(ctx, parties)
}

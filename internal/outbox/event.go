package outbox

import (
	"context"
	"time"
)

// Event is a notification produced by a committed mutation. An empty RecipientID
// addresses every active user of the organization.
type Event struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	RecipientID    string         `json:"recipientId,omitempty"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Payload        map[string]any `json:"payload,omitempty"`
	Channels       Channels       `json:"channels"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type Channels struct {
	InApp bool `json:"inApp"`
	Email bool `json:"email"`
}

// AllChannels delivers in-app and by email.
var AllChannels = Channels{InApp: true, Email: true}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })

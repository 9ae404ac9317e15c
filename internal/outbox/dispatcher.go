package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lexdesk/api/internal/store"
)

type NotificationStore interface {
	InsertNotification(ctx context.Context, n store.Notification) error
	GetUser(ctx context.Context, orgID, userID string) (store.User, error)
	ListUsers(ctx context.Context, orgID string) ([]store.User, error)
}

type Mailer interface {
	IsConfigured() bool
	SendNotification(to, userName, title, message string) error
}

// Dispatcher consumes the outbox stream and delivers each event: an in-app
// notification per recipient, email when enabled, and an optional mirror.
// Entries are acknowledged once handled, whether or not delivery succeeded.
type Dispatcher struct {
	source   *RedisOutbox
	group    string
	consumer string
	store    NotificationStore
	mailer   Mailer
	mirror   Publisher
	logger   *slog.Logger

	batch int64
	block time.Duration
}

type DispatcherConfig struct {
	Group    string
	Consumer string
	Mailer   Mailer
	Mirror   Publisher
	Logger   *slog.Logger
}

func NewDispatcher(source *RedisOutbox, st NotificationStore, cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	consumer := cfg.Consumer
	if consumer == "" {
		consumer = "dispatcher-1"
	}
	return &Dispatcher{
		source:   source,
		group:    cfg.Group,
		consumer: consumer,
		store:    st,
		mailer:   cfg.Mailer,
		mirror:   cfg.Mirror,
		logger:   logger,
		batch:    50,
		block:    5 * time.Second,
	}
}

// Run consumes until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.source.EnsureGroup(ctx, d.group); err != nil {
		return err
	}
	d.logger.Info("notification dispatcher started", "stream", d.source.Stream(), "group", d.group, "consumer", d.consumer)

	for {
		if ctx.Err() != nil {
			d.logger.Info("notification dispatcher stopped")
			return nil
		}
		if _, err := d.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.logger.Error("outbox poll failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// Poll handles one batch and returns how many entries it acknowledged.
func (d *Dispatcher) Poll(ctx context.Context) (int, error) {
	messages, err := d.source.Read(ctx, d.group, d.consumer, d.batch, d.block)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.ID)
		if msg.Err != nil {
			d.logger.Error("dropping undecodable outbox entry", "entry_id", msg.ID, "error", msg.Err)
			continue
		}
		if err := d.Handle(ctx, msg.Event); err != nil {
			d.logger.Warn("notification delivery failed",
				"org_id", msg.Event.OrganizationID,
				"event_id", msg.Event.ID,
				"event_type", msg.Event.Type,
				"error", err,
			)
		}
	}
	if err := d.source.Ack(ctx, d.group, ids...); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Handle delivers event on every enabled channel. Failures on one recipient or
// channel do not stop the others; they are joined into the returned error.
func (d *Dispatcher) Handle(ctx context.Context, event Event) error {
	recipients, err := d.recipients(ctx, event)
	if err != nil {
		return err
	}

	var errs []error
	for _, user := range recipients {
		if event.Channels.InApp {
			n := store.Notification{
				ID:             notificationID(event, user.ID),
				OrganizationID: event.OrganizationID,
				RecipientID:    user.ID,
				Type:           event.Type,
				Title:          event.Title,
				Message:        event.Message,
				Payload:        event.Payload,
				CreatedAt:      event.CreatedAt,
			}
			if err := d.store.InsertNotification(ctx, n); err != nil {
				errs = append(errs, fmt.Errorf("store notification for %s: %w", user.ID, err))
			}
		}
		if event.Channels.Email && d.mailer != nil && d.mailer.IsConfigured() && user.EmailNotifications && user.Email != "" {
			if err := d.mailer.SendNotification(user.Email, user.DisplayName, event.Title, event.Message); err != nil {
				errs = append(errs, fmt.Errorf("email %s: %w", user.ID, err))
			}
		}
	}

	if d.mirror != nil {
		if err := d.mirror.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("mirror event: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) recipients(ctx context.Context, event Event) ([]store.User, error) {
	if event.RecipientID == "" {
		users, err := d.store.ListUsers(ctx, event.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("list organization users: %w", err)
		}
		return users, nil
	}
	user, err := d.store.GetUser(ctx, event.OrganizationID, event.RecipientID)
	if errors.Is(err, store.ErrNotFound) {
		d.logger.Info("notification recipient no longer exists", "org_id", event.OrganizationID, "recipient_id", event.RecipientID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load recipient: %w", err)
	}
	if user.DeactivatedAt != nil {
		return nil, nil
	}
	return []store.User{user}, nil
}

// notificationID is derived from the event so redelivery does not duplicate rows.
func notificationID(event Event, userID string) string {
	if event.RecipientID != "" {
		return "ntf_" + event.ID
	}
	return "ntf_" + event.ID + "_" + userID
}

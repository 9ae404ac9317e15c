package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"lexdesk/api/internal/store"
)

func setupOutbox(t *testing.T) (*RedisOutbox, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisOutbox(client, "lexdesk:outbox:test"), client
}

type fakeNotificationStore struct {
	users    map[string]store.User
	inserted []store.Notification
	insertFn func(store.Notification) error
}

func (f *fakeNotificationStore) InsertNotification(_ context.Context, n store.Notification) error {
	if f.insertFn != nil {
		if err := f.insertFn(n); err != nil {
			return err
		}
	}
	f.inserted = append(f.inserted, n)
	return nil
}

func (f *fakeNotificationStore) GetUser(_ context.Context, orgID, userID string) (store.User, error) {
	user, ok := f.users[userID]
	if !ok || user.OrganizationID != orgID {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeNotificationStore) ListUsers(_ context.Context, orgID string) ([]store.User, error) {
	var out []store.User
	for _, user := range f.users {
		if user.OrganizationID == orgID {
			out = append(out, user)
		}
	}
	return out, nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (m *fakeMailer) IsConfigured() bool { return true }

func (m *fakeMailer) SendNotification(to, _, _, _ string) error {
	m.sent = append(m.sent, to)
	return m.err
}

func testDispatcher(source *RedisOutbox, st NotificationStore, mailer Mailer, mirror Publisher) *Dispatcher {
	d := NewDispatcher(source, st, DispatcherConfig{
		Group:  "dispatchers",
		Mailer: mailer,
		Mirror: mirror,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	d.block = -1
	return d
}

func TestPublishAndReadRoundTrip(t *testing.T) {
	ob, _ := setupOutbox(t)
	ctx := context.Background()

	if err := ob.EnsureGroup(ctx, "dispatchers"); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	if err := ob.EnsureGroup(ctx, "dispatchers"); err != nil {
		t.Fatalf("ensure group must be idempotent: %v", err)
	}

	event := Event{ID: "evt_1", OrganizationID: "org_1", Type: "INTAKE_REVIEWED", Title: "t", Message: "m", Payload: map[string]any{"submissionId": "sub_1"}, CreatedAt: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}
	if err := ob.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	messages, err := ob.Read(ctx, "dispatchers", "c1", 10, -1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(messages) != 1 || messages[0].Err != nil {
		t.Fatalf("unexpected messages: %+v", messages)
	}
	got := messages[0].Event
	if got.ID != "evt_1" || got.Payload["submissionId"] != "sub_1" || !got.CreatedAt.Equal(event.CreatedAt) {
		t.Fatalf("unexpected event: %+v", got)
	}
	if err := ob.Ack(ctx, "dispatchers", messages[0].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	again, err := ob.Read(ctx, "dispatchers", "c1", 10, -1)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no new entries, got %d", len(again))
	}
}

func TestReadFlagsUndecodableEntries(t *testing.T) {
	ob, client := setupOutbox(t)
	ctx := context.Background()
	if err := ob.EnsureGroup(ctx, "g"); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	client.XAdd(ctx, &redis.XAddArgs{Stream: ob.Stream(), Values: map[string]any{"event": "{not json"}})
	client.XAdd(ctx, &redis.XAddArgs{Stream: ob.Stream(), Values: map[string]any{"other": "x"}})

	messages, err := ob.Read(ctx, "g", "c1", 10, -1)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(messages) != 2 || messages[0].Err == nil || messages[1].Err == nil {
		t.Fatalf("expected two flagged entries, got %+v", messages)
	}
}

func TestDispatcherFansOutOrganizationWideEvents(t *testing.T) {
	ob, _ := setupOutbox(t)
	ctx := context.Background()
	st := &fakeNotificationStore{users: map[string]store.User{
		"usr_1": {ID: "usr_1", OrganizationID: "org_1", Email: "a@x.com", EmailNotifications: true},
		"usr_2": {ID: "usr_2", OrganizationID: "org_1", Email: "b@x.com", EmailNotifications: false},
		"usr_3": {ID: "usr_3", OrganizationID: "org_2", Email: "c@x.com", EmailNotifications: true},
	}}
	mailer := &fakeMailer{}
	var mirrored []Event
	mirror := PublisherFunc(func(_ context.Context, e Event) error { mirrored = append(mirrored, e); return nil })
	d := testDispatcher(ob, st, mailer, mirror)

	if err := ob.EnsureGroup(ctx, "dispatchers"); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	if err := ob.Publish(ctx, Event{ID: "evt_1", OrganizationID: "org_1", Type: "INTAKE_SUBMITTED", Title: "New", Message: "m", Channels: AllChannels}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	n, err := d.Poll(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 acked entry, got %d", n)
	}
	if len(st.inserted) != 2 {
		t.Fatalf("expected a notification per org user, got %d", len(st.inserted))
	}
	for _, ntf := range st.inserted {
		if ntf.OrganizationID != "org_1" {
			t.Fatalf("notification leaked to %s", ntf.OrganizationID)
		}
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "a@x.com" {
		t.Fatalf("expected email only to opted-in user, got %v", mailer.sent)
	}
	if len(mirrored) != 1 {
		t.Fatalf("expected event mirrored once, got %d", len(mirrored))
	}
}

func TestDispatcherAcksEvenWhenDeliveryFails(t *testing.T) {
	ob, _ := setupOutbox(t)
	ctx := context.Background()
	st := &fakeNotificationStore{
		users:    map[string]store.User{"usr_1": {ID: "usr_1", OrganizationID: "org_1", Email: "a@x.com", EmailNotifications: true}},
		insertFn: func(store.Notification) error { return errors.New("db down") },
	}
	mailer := &fakeMailer{err: errors.New("smtp down")}
	d := testDispatcher(ob, st, mailer, nil)

	if err := ob.EnsureGroup(ctx, "dispatchers"); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	if err := ob.Publish(ctx, Event{ID: "evt_1", OrganizationID: "org_1", RecipientID: "usr_1", Type: "CALENDAR_REMINDER", Channels: AllChannels}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if n, err := d.Poll(ctx); err != nil || n != 1 {
		t.Fatalf("poll: n=%d err=%v", n, err)
	}
	if len(mailer.sent) != 1 {
		t.Fatal("email should still be attempted after the in-app write failed")
	}
	if n, err := d.Poll(ctx); err != nil || n != 0 {
		t.Fatalf("failed entry must not be redelivered: n=%d err=%v", n, err)
	}
}

func TestHandleIgnoresMissingRecipient(t *testing.T) {
	st := &fakeNotificationStore{users: map[string]store.User{}}
	d := testDispatcher(nil, st, nil, nil)

	err := d.Handle(context.Background(), Event{ID: "evt_1", OrganizationID: "org_1", RecipientID: "usr_gone", Channels: AllChannels})
	if err != nil {
		t.Fatalf("expected nil for vanished recipient, got %v", err)
	}
	if len(st.inserted) != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestNotificationIDIsStablePerRecipient(t *testing.T) {
	direct := Event{ID: "evt_1", RecipientID: "usr_1"}
	broadcast := Event{ID: "evt_2"}
	if notificationID(direct, "usr_1") != "ntf_evt_1" {
		t.Fatalf("unexpected direct id %s", notificationID(direct, "usr_1"))
	}
	if notificationID(broadcast, "usr_1") == notificationID(broadcast, "usr_2") {
		t.Fatal("broadcast ids must differ per recipient")
	}
}

func TestKafkaMessageKeysByOrganization(t *testing.T) {
	msg, err := kafkaMessage(Event{ID: "evt_1", OrganizationID: "org_9", Type: "INTAKE_CONVERTED"})
	if err != nil {
		t.Fatalf("kafkaMessage: %v", err)
	}
	if string(msg.Key) != "org_9" {
		t.Fatalf("expected org key, got %q", msg.Key)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event-type"] != "INTAKE_CONVERTED" || headers["event-id"] != "evt_1" {
		t.Fatalf("unexpected headers %v", headers)
	}
}

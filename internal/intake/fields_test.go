package intake

import (
	"errors"
	"strings"
	"testing"
)

func TestParseFieldsSeparatesKnownAndExtraKeys(t *testing.T) {
	fields, err := ParseFields([]byte(`{"name":" Ada ","favorite_color":"green","urgent":true}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := fields.Text(KeyName); got != "Ada" {
		t.Fatalf("expected trimmed name, got %q", got)
	}
	if !fields.Get(KeyUrgent).Bool() {
		t.Fatal("expected urgent true")
	}
	if got := fields.Extra()["favorite_color"].String(); got != "green" {
		t.Fatalf("expected extra key to pass through, got %q", got)
	}
	if _, ok := fields.Extra()["name"]; ok {
		t.Fatal("known key leaked into extra")
	}
}

func TestValueStringKeepsNumbersExact(t *testing.T) {
	fields, err := ParseFields([]byte(`{"phone":5551234567890}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := fields.Text(KeyPhone); got != "5551234567890" {
		t.Fatalf("expected exact number text, got %q", got)
	}
}

func TestValidatePayloadRejectsNonObjects(t *testing.T) {
	for _, payload := range []string{`[]`, `null`, `42`, `{"name":`} {
		if _, _, err := ValidatePayload([]byte(payload)); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("ValidatePayload(%q): expected ErrInvalidPayload, got %v", payload, err)
		}
	}
}

func TestValidatePayloadRejectsStructuredContactFields(t *testing.T) {
	_, _, err := ValidatePayload([]byte(`{"email":{"work":"a@b.com"}}`))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestValidatePayloadCompactsAndLimitsSize(t *testing.T) {
	data, _, err := ValidatePayload([]byte("{\n  \"name\": \"Ada\"\n}"))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if string(data) != `{"name":"Ada"}` {
		t.Fatalf("expected compacted payload, got %s", data)
	}

	huge := `{"description":"` + strings.Repeat("z", maxPayloadBytes) + `"}`
	if _, _, err := ValidatePayload([]byte(huge)); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected size rejection, got %v", err)
	}
}

package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Key names a submission field the service reads. Unknown keys are kept in Extra
// and passed through untouched.
type Key string

const (
	KeyName                Key = "name"
	KeyEmail               Key = "email"
	KeyPhone               Key = "phone"
	KeyPracticeArea        Key = "practice_area"
	KeyDescription         Key = "description"
	KeyIncidentDescription Key = "incident_description"
	KeyUrgency             Key = "urgency"
	KeyUrgent              Key = "urgent"
	KeyChargeType          Key = "charge_type"
	KeyInjuries            Key = "injuries"
	KeyCourtDate           Key = "court_date"
)

var knownKeys = map[Key]struct{}{
	KeyName: {}, KeyEmail: {}, KeyPhone: {}, KeyPracticeArea: {}, KeyDescription: {},
	KeyIncidentDescription: {}, KeyUrgency: {}, KeyUrgent: {}, KeyChargeType: {},
	KeyInjuries: {}, KeyCourtDate: {},
}

var ErrInvalidPayload = errors.New("submission payload must be a JSON object")

const maxPayloadBytes = 256 << 10

// Value is one decoded JSON field value.
type Value struct {
	raw any
}

func (v Value) Raw() any {
	return v.raw
}

// String renders scalars as text. Objects and arrays render as compact JSON.
func (v Value) String() string {
	switch typed := v.raw.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case json.Number:
		return typed.String()
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

// Bool accepts a JSON boolean or the string "true" in any case.
func (v Value) Bool() bool {
	switch typed := v.raw.(type) {
	case bool:
		return typed
	case string:
		return strings.EqualFold(strings.TrimSpace(typed), "true")
	default:
		return false
	}
}

func (v Value) IsEmpty() bool {
	switch typed := v.raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []any:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	case bool:
		return !typed
	default:
		return false
	}
}

// Fields is the parsed submission payload.
type Fields struct {
	known map[Key]Value
	extra map[string]Value
}

func ParseFields(raw []byte) (Fields, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Fields{}, ErrInvalidPayload
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var decoded map[string]any
	if err := decoder.Decode(&decoded); err != nil {
		return Fields{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	fields := Fields{known: map[Key]Value{}, extra: map[string]Value{}}
	for name, value := range decoded {
		if _, ok := knownKeys[Key(name)]; ok {
			fields.known[Key(name)] = Value{raw: value}
			continue
		}
		fields.extra[name] = Value{raw: value}
	}
	return fields, nil
}

// ValidatePayload checks a payload at the submission boundary and returns it compacted.
func ValidatePayload(raw []byte) ([]byte, Fields, error) {
	if len(raw) > maxPayloadBytes {
		return nil, Fields{}, fmt.Errorf("%w: payload exceeds %d bytes", ErrInvalidPayload, maxPayloadBytes)
	}
	fields, err := ParseFields(raw)
	if err != nil {
		return nil, Fields{}, err
	}
	for _, key := range []Key{KeyName, KeyEmail, KeyPhone, KeyUrgency, KeyChargeType} {
		switch fields.Get(key).raw.(type) {
		case nil, string, json.Number:
		default:
			return nil, Fields{}, fmt.Errorf("%w: field %q must be a scalar", ErrInvalidPayload, key)
		}
	}
	var compacted bytes.Buffer
	if err := json.Compact(&compacted, raw); err != nil {
		return nil, Fields{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return compacted.Bytes(), fields, nil
}

func (f Fields) Get(key Key) Value {
	return f.known[key]
}

// Text returns the trimmed string form of a known field.
func (f Fields) Text(key Key) string {
	return strings.TrimSpace(f.known[key].String())
}

func (f Fields) Extra() map[string]Value {
	return f.extra
}

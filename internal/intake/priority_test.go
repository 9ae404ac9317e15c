package intake

import (
	"strings"
	"testing"
)

func TestScoreGoldenValues(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    int
	}{
		{name: "empty object", payload: `{}`, want: 0},
		{name: "high felony with contact", payload: `{"urgency":"HIGH","charge_type":"felony","email":"a@b.com","phone":"555"}`, want: 80},
		{name: "case insensitive", payload: `{"urgency":"high","charge_type":"Felony"}`, want: 70},
		{name: "urgent boolean", payload: `{"urgent":true}`, want: 25},
		{name: "urgent string", payload: `{"urgent":"true"}`, want: 25},
		{name: "urgent false", payload: `{"urgent":false}`, want: 0},
		{name: "injuries and court date", payload: `{"injuries":"broken arm","court_date":"2026-11-02"}`, want: 55},
		{name: "blank strings ignored", payload: `{"injuries":"  ","email":"","phone":null}`, want: 0},
		{name: "injuries list", payload: `{"injuries":["whiplash"]}`, want: 35},
		{name: "clamped", payload: `{"urgency":"HIGH","urgent":true,"charge_type":"felony","injuries":"yes","court_date":"soon"}`, want: 100},
		{name: "medium urgency", payload: `{"urgency":"MEDIUM"}`, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScoreRaw([]byte(tc.payload)); got != tc.want {
				t.Fatalf("ScoreRaw(%s) = %d, want %d", tc.payload, got, tc.want)
			}
		})
	}
}

func TestScoreIncidentDescriptionLength(t *testing.T) {
	cases := []struct {
		length int
		want   int
	}{
		{length: 100, want: 0},
		{length: 101, want: 10},
		{length: 300, want: 10},
		{length: 301, want: 20},
	}
	for _, tc := range cases {
		payload := `{"incident_description":"` + strings.Repeat("x", tc.length) + `"}`
		if got := ScoreRaw([]byte(payload)); got != tc.want {
			t.Fatalf("length %d: got %d, want %d", tc.length, got, tc.want)
		}
	}
}

func TestScoreRawDefaultsOnMalformedPayload(t *testing.T) {
	for _, payload := range []string{``, `not json`, `[1,2,3]`, `"text"`, `{"name":`} {
		if got := ScoreRaw([]byte(payload)); got != DefaultPriority {
			t.Fatalf("ScoreRaw(%q) = %d, want %d", payload, got, DefaultPriority)
		}
	}
}

func TestScoreAlwaysWithinBounds(t *testing.T) {
	payloads := []string{
		`{}`,
		`{"urgency":"HIGH","urgent":"TRUE","charge_type":"FELONY","injuries":{"head":true},"court_date":"x","email":"e","phone":"p","incident_description":"` + strings.Repeat("y", 500) + `"}`,
		`{"urgent":1,"injuries":0,"court_date":false}`,
	}
	for _, payload := range payloads {
		got := ScoreRaw([]byte(payload))
		if got < 0 || got > 100 {
			t.Fatalf("ScoreRaw(%s) = %d out of range", payload, got)
		}
	}
}

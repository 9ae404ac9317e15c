package intake

import "testing"

func TestCanTransitionMatchesTable(t *testing.T) {
	allowed := map[Status]map[Status]bool{
		StatusPending:  {StatusReviewed: true, StatusConvertedToLead: true, StatusRejected: true, StatusSpam: true},
		StatusReviewed: {StatusConvertedToLead: true, StatusRejected: true, StatusSpam: true},
	}

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			want := allowed[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatusesNeverTransition(t *testing.T) {
	for _, from := range []Status{StatusConvertedToLead, StatusRejected, StatusSpam} {
		if !IsTerminal(from) {
			t.Fatalf("expected %s to be terminal", from)
		}
		for _, to := range append(AllStatuses(), Status("ARCHIVED"), Status("")) {
			if CanTransition(from, to) {
				t.Fatalf("terminal %s must not move to %s", from, to)
			}
		}
	}
	if IsTerminal(StatusPending) || IsTerminal(StatusReviewed) {
		t.Fatal("open statuses reported as terminal")
	}
}

func TestUnknownStatusesNeverTransition(t *testing.T) {
	if CanTransition(Status("pending"), StatusReviewed) {
		t.Fatal("status names are case-sensitive")
	}
	if CanTransition(StatusPending, Status("ARCHIVED")) {
		t.Fatal("unknown target must be rejected")
	}
	if _, ok := ParseStatus("ARCHIVED"); ok {
		t.Fatal("ParseStatus accepted an unknown status")
	}
}

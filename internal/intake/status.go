package intake

// Status is the lifecycle state of an intake submission.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusReviewed        Status = "REVIEWED"
	StatusConvertedToLead Status = "CONVERTED_TO_LEAD"
	StatusRejected        Status = "REJECTED"
	StatusSpam            Status = "SPAM"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusReviewed, StatusConvertedToLead, StatusRejected, StatusSpam},
	StatusReviewed: {StatusConvertedToLead, StatusRejected, StatusSpam},
}

// CanTransition reports whether a submission in current may move to next.
func CanTransition(current, next Status) bool {
	for _, allowed := range transitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

func IsTerminal(status Status) bool {
	switch status {
	case StatusConvertedToLead, StatusRejected, StatusSpam:
		return true
	default:
		return false
	}
}

func ParseStatus(value string) (Status, bool) {
	switch s := Status(value); s {
	case StatusPending, StatusReviewed, StatusConvertedToLead, StatusRejected, StatusSpam:
		return s, true
	default:
		return "", false
	}
}

func AllStatuses() []Status {
	return []Status{StatusPending, StatusReviewed, StatusConvertedToLead, StatusRejected, StatusSpam}
}

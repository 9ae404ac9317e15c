package rbac

type Role string
type Action string

const (
	RoleViewer    Role = "viewer"
	RoleIntake    Role = "intake"
	RoleParalegal Role = "paralegal"
	RoleAttorney  Role = "attorney"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead              Action = "read"
	ActionReviewIntake      Action = "review_intake"
	ActionConvertIntake     Action = "convert_intake"
	ActionManageMatters     Action = "manage_matters"
	ActionManageCalendar    Action = "manage_calendar"
	ActionGenerateDocuments Action = "generate_documents"
	ActionViewAudit         Action = "view_audit"
	ActionAdmin             Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleAttorney:
		return action != ActionAdmin
	case RoleParalegal:
		switch action {
		case ActionRead, ActionReviewIntake, ActionConvertIntake, ActionManageMatters, ActionManageCalendar, ActionGenerateDocuments:
			return true
		}
		return false
	case RoleIntake:
		return action == ActionRead || action == ActionReviewIntake || action == ActionConvertIntake
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleIntake, RoleParalegal, RoleAttorney, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}

func Valid(role string) bool {
	return Normalize(role) == Role(role)
}

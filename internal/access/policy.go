// Package access holds the role-capability policy gating every mutating
// operation. Tenant isolation is enforced separately by the services; the
// policy only answers whether a role may attempt an action at all.
package access

import "github.com/noah-isme/bjj-academy-api/internal/models"

// Action identifies a capability checked against the policy table.
type Action string

const (
	ActionEnrollExamStudent Action = "exam_student.enroll"
	ActionRemoveExamStudent Action = "exam_student.remove"
	ActionEvaluateExam      Action = "exam.evaluate"
	ActionCreateExam        Action = "exam.create"
	ActionUpdateExam        Action = "exam.update"
	ActionDeleteExam        Action = "exam.delete"
	ActionCreateAttendance  Action = "attendance.create"
	ActionDeleteAttendance  Action = "attendance.delete"
	ActionCreatePromotion   Action = "promotion.create"
	ActionReversePromotion  Action = "promotion.reverse"
	ActionViewOwnRecords    Action = "records.view_own"
	ActionViewOthersRecords Action = "records.view_others"
)

var policy = map[Action]map[models.Role]bool{
	ActionEnrollExamStudent: staffOnly(),
	ActionRemoveExamStudent: staffOnly(),
	ActionEvaluateExam:      staffOnly(),
	ActionCreateExam:        staffOnly(),
	ActionUpdateExam:        staffOnly(),
	ActionDeleteExam:        adminOnly(),
	ActionCreateAttendance:  staffOnly(),
	ActionDeleteAttendance:  staffOnly(),
	ActionCreatePromotion:   staffOnly(),
	ActionReversePromotion:  adminOnly(),
	ActionViewOwnRecords:    everyone(),
	ActionViewOthersRecords: staffOnly(),
}

// Can reports whether the role is allowed to perform the action.
func Can(role models.Role, action Action) bool {
	allowed, ok := policy[action]
	if !ok {
		return false
	}
	return allowed[role]
}

// CanViewUser reports whether the actor may read records belonging to the
// target user. Cross-tenant access is always denied.
func CanViewUser(actor *models.JWTClaims, targetUserID, targetAcademyID string) bool {
	if actor == nil {
		return false
	}
	if actor.AcademyID != targetAcademyID {
		return false
	}
	if actor.UserID == targetUserID {
		return Can(actor.Role, ActionViewOwnRecords)
	}
	return Can(actor.Role, ActionViewOthersRecords)
}

func staffOnly() map[models.Role]bool {
	return map[models.Role]bool{models.RoleInstructor: true, models.RoleAdmin: true}
}

func adminOnly() map[models.Role]bool {
	return map[models.Role]bool{models.RoleAdmin: true}
}

func everyone() map[models.Role]bool {
	return map[models.Role]bool{models.RoleStudent: true, models.RoleInstructor: true, models.RoleAdmin: true}
}

package models

import "time"

// ExamStatus represents the lifecycle state of a grading exam.
type ExamStatus string

const (
	ExamStatusScheduled  ExamStatus = "PROGRAMADO"
	ExamStatusInProgress ExamStatus = "EN_CURSO"
	ExamStatusCompleted  ExamStatus = "COMPLETADO"
	ExamStatusCancelled  ExamStatus = "CANCELADO"
)

// Valid returns true when the status is a supported value.
func (s ExamStatus) Valid() bool {
	switch s {
	case ExamStatusScheduled, ExamStatusInProgress, ExamStatusCompleted, ExamStatusCancelled:
		return true
	default:
		return false
	}
}

// AcceptsEnrollments reports whether students may still be enrolled.
func (s ExamStatus) AcceptsEnrollments() bool {
	return s == ExamStatusScheduled || s == ExamStatusInProgress
}

// AcceptsEvaluations reports whether candidate evaluation is still possible.
func (s ExamStatus) AcceptsEvaluations() bool {
	return s != ExamStatusCancelled && s != ExamStatusCompleted
}

// ExamResult represents an enrollment's evaluation outcome.
type ExamResult string

const (
	ExamResultPending  ExamResult = "PENDIENTE"
	ExamResultApproved ExamResult = "APROBADO"
	ExamResultFailed   ExamResult = "REPROBADO"
	ExamResultNoShow   ExamResult = "NO_PRESENTADO"
)

// Valid returns true when the result is a supported value.
func (r ExamResult) Valid() bool {
	switch r {
	case ExamResultPending, ExamResultApproved, ExamResultFailed, ExamResultNoShow:
		return true
	default:
		return false
	}
}

// Terminal reports whether the result is a final evaluation outcome. An
// enrollment transitions from PENDIENTE to a terminal result exactly once.
func (r ExamResult) Terminal() bool {
	return r.Valid() && r != ExamResultPending
}

// Exam represents a scheduled belt grading event.
type Exam struct {
	ID                 string     `db:"id" json:"id"`
	Title              string     `db:"title" json:"title"`
	Date               time.Time  `db:"date" json:"date"`
	Location           *string    `db:"location" json:"location,omitempty"`
	Description        *string    `db:"description" json:"description,omitempty"`
	BeltFrom           Belt       `db:"belt_from" json:"belt_from"`
	BeltTo             Belt       `db:"belt_to" json:"belt_to"`
	MaxStudents        *int       `db:"max_students" json:"max_students,omitempty"`
	ExamFee            *float64   `db:"exam_fee" json:"exam_fee,omitempty"`
	MinAttendances     *int       `db:"min_attendances" json:"min_attendances,omitempty"`
	MinVideosCompleted *int       `db:"min_videos_completed" json:"min_videos_completed,omitempty"`
	AcademyID          string     `db:"academy_id" json:"academy_id"`
	Status             ExamStatus `db:"status" json:"status"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// ExamDetail extends the exam with its enrollment count.
type ExamDetail struct {
	Exam
	StudentsCount int `db:"students_count" json:"students_count"`
}

// ExamFilter defines listing filters.
type ExamFilter struct {
	Status   *ExamStatus
	BeltTo   *Belt
	Upcoming bool
	Page     int
	PageSize int
}

// ExamStudent links a student to an exam; unique per (exam, user).
type ExamStudent struct {
	ID           string     `db:"id" json:"id"`
	ExamID       string     `db:"exam_id" json:"exam_id"`
	UserID       string     `db:"user_id" json:"user_id"`
	Result       ExamResult `db:"result" json:"result"`
	Score        *int       `db:"score" json:"score,omitempty"`
	Feedback     *string    `db:"feedback" json:"feedback,omitempty"`
	RegisteredAt time.Time  `db:"registered_at" json:"registered_at"`
	EvaluatedAt  *time.Time `db:"evaluated_at" json:"evaluated_at,omitempty"`
}

// ExamStudentDetail extends the enrollment with student metadata.
type ExamStudentDetail struct {
	ExamStudent
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	StudentBelt  Belt   `db:"student_belt" json:"student_belt"`
	StudentStripe Stripe `db:"student_stripe" json:"student_stripe"`
}

// RequirementStatus reports progress towards an exam prerequisite. Required
// is nil when the exam does not set the threshold, in which case the
// requirement is trivially met.
type RequirementStatus struct {
	Current  int  `json:"current"`
	Required *int `json:"required,omitempty"`
	Met      bool `json:"met"`
}

// ExamRequirements groups the informational prerequisites shown to evaluators.
type ExamRequirements struct {
	Attendances RequirementStatus `json:"attendances"`
	Videos      RequirementStatus `json:"videos"`
}

// ExamStudentWithRequirements is the evaluator-facing enrollment listing row.
type ExamStudentWithRequirements struct {
	ExamStudentDetail
	Requirements ExamRequirements `json:"requirements"`
}

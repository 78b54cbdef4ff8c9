package models

import "time"

// ClassType represents the kind of class an attendance belongs to.
type ClassType string

const (
	ClassTypeGi           ClassType = "GI"
	ClassTypeNoGi         ClassType = "NOGI"
	ClassTypeCompetition  ClassType = "COMPETICION"
	ClassTypeKids         ClassType = "INFANTIL"
	ClassTypeFundamentals ClassType = "FUNDAMENTALS"
	ClassTypeAdvanced     ClassType = "AVANZADO"
)

// Valid returns true when the class type is a supported value.
func (t ClassType) Valid() bool {
	switch t {
	case ClassTypeGi, ClassTypeNoGi, ClassTypeCompetition, ClassTypeKids, ClassTypeFundamentals, ClassTypeAdvanced:
		return true
	default:
		return false
	}
}

// Attendance is a single check-in; unique per (user, date, class type).
type Attendance struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Date            time.Time `db:"date" json:"date"`
	ClassType       ClassType `db:"class_type" json:"class_type"`
	ClassScheduleID *string   `db:"class_schedule_id" json:"class_schedule_id,omitempty"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	RegisteredByID  string    `db:"registered_by_id" json:"registered_by_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// AttendanceDetail extends the record with display metadata.
type AttendanceDetail struct {
	Attendance
	UserName         string `db:"user_name" json:"user_name"`
	UserAcademyID    string `db:"user_academy_id" json:"-"`
	RegisteredByName string `db:"registered_by_name" json:"registered_by_name"`
}

// AttendanceFilter scopes listing queries.
type AttendanceFilter struct {
	UserID    string
	AcademyID string
	Month     *time.Time
	ClassType *ClassType
	Page      int
	PageSize  int
}

// ClassTypeCount is a histogram entry of attendances per class type.
type ClassTypeCount struct {
	ClassType ClassType `db:"class_type" json:"class_type"`
	Count     int       `db:"count" json:"count"`
}

// AttendanceDay is one calendar cell of the month grid.
type AttendanceDay struct {
	Date      string    `json:"date"`
	ClassType ClassType `json:"class_type"`
}

// AttendanceStats aggregates a student's attendance activity.
type AttendanceStats struct {
	TotalAttendances     int              `json:"total_attendances"`
	ThisMonthAttendances int              `json:"this_month_attendances"`
	CurrentStreak        int              `json:"current_streak"`
	FavoriteClassType    *ClassType       `json:"favorite_class_type"`
	AttendancesByType    []ClassTypeCount `json:"attendances_by_type"`
	AttendanceDates      []AttendanceDay  `json:"attendance_dates"`
}

// BulkAttendanceResult summarises a bulk registration.
type BulkAttendanceResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

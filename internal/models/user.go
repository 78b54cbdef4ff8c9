package models

import "time"

// Role represents the available roles for the access policy.
type Role string

const (
	RoleStudent    Role = "ALUMNO"
	RoleInstructor Role = "INSTRUCTOR"
	RoleAdmin      Role = "ADMIN"
)

// Valid returns true when the role is a supported value.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	default:
		return false
	}
}

// User represents an academy member stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         Role      `db:"role" json:"role"`
	Belt         Belt      `db:"belt" json:"belt"`
	Stripe       Stripe    `db:"stripe" json:"stripe"`
	AcademyID    string    `db:"academy_id" json:"academy_id"`
	Active       bool      `db:"active" json:"active"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Rank returns the user's current belt/stripe pair.
func (u *User) Rank() Rank {
	return Rank{Belt: u.Belt, Stripe: u.Stripe}
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *Role
	Active    *bool
	Search    string
	MinBelt   *Belt
	MaxBelt   *Belt
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

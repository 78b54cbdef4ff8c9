package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims is the acting principal attached to authenticated requests.
type JWTClaims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	AcademyID string `json:"academy_id"`
	Belt      Belt   `json:"belt"`
	Stripe    Stripe `json:"stripe"`
	jwt.RegisteredClaims
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterRequest carries the self-registration payload.
type RegisterRequest struct {
	Name     string  `json:"name" validate:"required,min=2"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Phone    *string `json:"phone,omitempty"`
}

// UserInfo is the public projection of a user returned with tokens.
type UserInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Belt      Belt   `json:"belt"`
	Stripe    Stripe `json:"stripe"`
	AcademyID string `json:"academy_id"`
}

// LoginResponse is returned on successful authentication.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	User        UserInfo  `json:"user"`
}

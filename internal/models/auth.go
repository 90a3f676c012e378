package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
// Identifier accepts either the username (mentee/staff id) or the email address.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// SignupRequest registers a mentee or mentor account.
type SignupRequest struct {
	IdentificationID string `json:"identification_id" validate:"required,max=12"`
	Password         string `json:"password" validate:"required,min=6"`
	ConfirmPassword  string `json:"confirm_password" validate:"required,eqfield=Password"`
	Role             string `json:"role" validate:"required,oneof=mentee mentor"`
	FullName         string `json:"full_name" validate:"required,max=100"`
	Email            string `json:"email" validate:"required,email"`
	Gender           string `json:"gender" validate:"omitempty,oneof=male female"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

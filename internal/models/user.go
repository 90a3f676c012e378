package models

import "time"

// UserRole is the RBAC role carried in access tokens.
type UserRole string

const (
	RoleMentee UserRole = "MENTEE"
	RoleMentor UserRole = "MENTOR"
	RoleHead   UserRole = "HEAD"
)

// User represents an application user stored in the users table.
// Username is the mentee or staff identifier the account signs in with.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Info is the public view of the account.
func (u *User) Info() *UserInfo {
	return &UserInfo{ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NewPagination applies the list defaults: page 1 and 20 rows, at most 100 per page.
func NewPagination(page, size, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total}
}

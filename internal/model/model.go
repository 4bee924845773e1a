package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user. Students sit exams under their user ID.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// StudentRef is a roster entry as supplied by the classroom service.
type StudentRef struct {
	StudentID   int64  `json:"student_id"`
	DisplayName string `json:"display_name"`
}

// Classroom groups students for exam scheduling.
type Classroom struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RequestMeta carries the request details captured when an attempt starts.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// ServerConfig holds runtime HTTP parameters set via CLI flags.
type ServerConfig struct {
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	DefaultLang   string // Fallback UI language when Accept-Language does not match
}

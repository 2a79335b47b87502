package user

import (
	"errors"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public is the output view of a user record. The password hash never
// leaves the domain layer; every response shape is built from this view.
type Public struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) Public() Public {
	return Public{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// with pointers if optional, it will be nil
type ListFilter struct {
	Role   *string
	Active *bool
	Search *string
	Sort   string
	Limit  int
	Offset int
}

type CreateUserRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
	Active   *bool  `json:"active"`
}

// partial update; absent fields keep their stored value.
type UpdateUserRequest struct {
	Name   *string `json:"name" binding:"omitempty,min=2,max=100"`
	Email  *string `json:"email" binding:"omitempty,email"`
	Role   *string `json:"role" binding:"omitempty,oneof=user admin"`
	Active *bool   `json:"active"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

// Changes is the repo-level shape of a partial update once the handler has
// applied its authorization rules (non-admins cannot touch Role or Active).
type Changes struct {
	Name   *string
	Email  *string
	Role   *string
	Active *bool
}

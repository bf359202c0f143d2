package user

import (
	"errors"
	"time"
)

const (
	RoleBuyer = "buyer"
	RoleAdmin = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	DisplayName  string    `json:"displayName,omitempty"`
	Role         string    `json:"role"`
	UpiID        string    `json:"upiId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

var ErrNotFound = errors.New("user not found")

// partial update, nil means "leave as is"
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName" binding:"omitempty,min=2,max=80"`
	UpiID       *string `json:"upiId" binding:"omitempty,min=3,max=80"`
}

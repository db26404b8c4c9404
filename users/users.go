package users

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RoleType represents a user's role within the application
type RoleType string

const (
	RoleMember  RoleType = "member"  // Regular member following training plans
	RoleTrainer RoleType = "trainer" // Can author training plans and coach members
	RoleAdmin   RoleType = "admin"   // Can manage users and all content
)

// User is a registered principal. The session-state fields (RefreshToken,
// RefreshTokenExp) are owned exclusively by the session issuer and must not
// be written by any other collaborator.
type User struct {
	ID           string    `json:"id,omitempty"`       // Unique identifier for the user
	Username     string    `json:"username,omitempty"` // Unique username
	PasswordHash string    `json:"-"`                  // Hashed version of the user's password - never serialize
	Role         RoleType  `json:"role,omitempty"`
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered

	// Session state: the single live refresh credential for this user, if any.
	// Both fields are written together and cleared together.
	RefreshToken    *string    `json:"-"`
	RefreshTokenExp *time.Time `json:"-"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

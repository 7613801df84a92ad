package models

import (
	"time"

	"github.com/google/uuid"
)

// Admin is the single credentialed user that manages an organization.
type Admin struct {
	AdminID          uuid.UUID // UUIDv7
	Email            string    // unique across the whole system
	PasswordHash     string    // bcrypt hash, never plaintext
	OrganizationName string    // denormalized back-reference, updated on rename
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Identity is the result of a successful admin authentication.
type Identity struct {
	AdminID          string
	Email            string
	OrganizationName string
	OrgID            string // empty when the owning organization could not be resolved
}

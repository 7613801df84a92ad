package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgtenant/internal/models"
)

// AdminCredentialsUpdate holds the admin fields that may change in place.
// Nil fields are left untouched.
type AdminCredentialsUpdate struct {
	Email        *string
	PasswordHash *string
}

// IsEmpty reports whether the update changes nothing.
func (u AdminCredentialsUpdate) IsEmpty() bool {
	return u.Email == nil && u.PasswordHash == nil
}

// AdminStore defines storage operations on the admins collection.
// email is guarded by a unique constraint.
type AdminStore interface {
	// FindAdminByEmail retrieves an admin by email.
	// Returns ErrNotFound if no admin has the email.
	FindAdminByEmail(ctx context.Context, email string) (*models.Admin, error)

	// FindAdminByID retrieves an admin by ID.
	// Returns ErrNotFound if the admin doesn't exist.
	FindAdminByID(ctx context.Context, adminID uuid.UUID) (*models.Admin, error)

	// InsertAdmin inserts a new admin.
	// Returns ErrDuplicateKey if the email is already in use.
	InsertAdmin(ctx context.Context, admin *models.Admin) error

	// UpdateAdminCredentials changes the email and/or password hash of one admin.
	// Returns ErrNotFound if the admin doesn't exist, ErrDuplicateKey if the email is in use.
	UpdateAdminCredentials(ctx context.Context, adminID uuid.UUID, update AdminCredentialsUpdate) error

	// RenameAdminsOrganization rewrites the organization back-reference of every admin
	// pointing at oldName and returns how many were changed.
	RenameAdminsOrganization(ctx context.Context, oldName, newName string) (int64, error)

	// DeleteAdmin removes a single admin by ID.
	// Returns ErrNotFound if the admin doesn't exist.
	DeleteAdmin(ctx context.Context, adminID uuid.UUID) error

	// DeleteAdminsByOrganization removes every admin referencing the organization
	// and returns how many were removed.
	DeleteAdminsByOrganization(ctx context.Context, organizationName string) (int64, error)
}

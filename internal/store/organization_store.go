package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgtenant/internal/models"
)

// Sentinel errors shared by every tenant store implementation.
var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateKey         = errors.New("duplicate key")
	ErrContainerNotFound    = errors.New("storage container not found")
	ErrRenameUnsupported    = errors.New("storage container rename not possible")
	ErrInvalidContainerName = errors.New("invalid storage container name")
)

// OrganizationUpdate carries the organization fields changed by a rename.
type OrganizationUpdate struct {
	OrganizationName string
	CollectionName   string
}

// OrganizationStore defines storage operations on the organizations collection.
// organization_name is guarded by a unique constraint.
type OrganizationStore interface {
	// FindOrganizationByName retrieves an organization by its unique name.
	// Returns ErrNotFound if the organization doesn't exist.
	FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error)

	// InsertOrganization inserts a new organization.
	// Returns ErrDuplicateKey if the name is already taken.
	InsertOrganization(ctx context.Context, org *models.Organization) error

	// UpdateOrganization sets the name and collection of a single organization.
	// Returns ErrNotFound if no organization has the ID, ErrDuplicateKey if the new name is taken.
	UpdateOrganization(ctx context.Context, orgID uuid.UUID, update OrganizationUpdate) error

	// DeleteOrganization removes a single organization by ID.
	// Returns ErrNotFound if the organization doesn't exist.
	DeleteOrganization(ctx context.Context, orgID uuid.UUID) error
}

// TenantStore is the full storage contract consumed by the lifecycle engine and auth gateway.
// Each method is individually atomic; no transaction spans more than one call.
type TenantStore interface {
	OrganizationStore
	AdminStore
	ContainerStore

	// Ping checks connectivity with the underlying database.
	Ping(ctx context.Context) error
}

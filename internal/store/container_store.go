package store

import (
	"context"
	"regexp"

	"github.com/wolfeidau/orgtenant/internal/models"
)

var containerNamePattern = regexp.MustCompile(`^` + models.ContainerPrefix + `[A-Za-z0-9_-]{2,64}$`)

// ValidContainerName reports whether name is a tenant container name built from a
// validated organization name. Adapters refuse any other name before it reaches
// a storage command.
func ValidContainerName(name string) bool {
	return containerNamePattern.MatchString(name)
}

// ContainerStore manages the dynamically named per-tenant storage containers.
type ContainerStore interface {
	// ListContainers returns the names of all existing tenant containers.
	ListContainers(ctx context.Context) ([]string, error)

	// CreateContainer creates an empty container; an existing container is left as is.
	CreateContainer(ctx context.Context, name string) error

	// RenameContainer atomically renames a container in place.
	// Returns ErrRenameUnsupported when the storage layer cannot perform the rename
	// (for example the target already exists) and ErrContainerNotFound when the
	// source is missing. Any other error is a plain storage failure.
	RenameContainer(ctx context.Context, from, to string) error

	// DropContainer removes a container and everything in it.
	// Dropping a missing container is not an error.
	DropContainer(ctx context.Context, name string) error

	// InsertDocuments stores documents in a container.
	// Returns ErrDuplicateKey if any document ID already exists there.
	InsertDocuments(ctx context.Context, container string, docs []models.Document) error

	// ListDocuments returns every document held in a container.
	// Returns ErrContainerNotFound if the container doesn't exist.
	ListDocuments(ctx context.Context, container string) ([]models.Document, error)
}

// Package tenant implements the organization lifecycle: create, read, rename
// and delete of an organization, its admin and its storage container.
//
// The store offers no transaction spanning more than one primitive, so every
// multi-step operation here is ordered so that a failure leaves either nothing
// behind or a state that is detectable from the metadata.
package tenant

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/orgtenant/internal/apperror"
	"github.com/wolfeidau/orgtenant/internal/models"
	"github.com/wolfeidau/orgtenant/internal/store"
	"github.com/wolfeidau/orgtenant/internal/telemetry"
)

var organizationNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{2,64}$`)

// ValidateOrganizationName checks the charset and length of an organization name.
// Only names passing this check are ever used to address storage.
func ValidateOrganizationName(name string) error {
	if !organizationNamePattern.MatchString(name) {
		return apperror.BadRequest("organization name must be 2-64 characters of letters, digits, '-' or '_'")
	}
	return nil
}

// Engine orchestrates the organization lifecycle over a TenantStore.
// It holds no mutable state; concurrent calls are coordinated by the store's
// unique constraints.
type Engine struct {
	store   store.TenantStore
	metrics *telemetry.Metrics
	now     func() time.Time
}

// NewEngine creates a lifecycle engine backed by the given store.
func NewEngine(st store.TenantStore) *Engine {
	return &Engine{
		store:   st,
		metrics: telemetry.GetMetrics(),
		now:     time.Now,
	}
}

// Get returns the summary of an organization joined with its admin email.
// It returns nil without error when no organization has that name.
func (e *Engine) Get(ctx context.Context, name string) (*models.OrganizationSummary, error) {
	org, err := e.store.FindOrganizationByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, apperror.Internal(err, "failed to load organization")
	}

	return e.summarize(ctx, org)
}

func (e *Engine) summarize(ctx context.Context, org *models.Organization) (*models.OrganizationSummary, error) {
	summary := &models.OrganizationSummary{
		OrganizationName: org.OrganizationName,
		CollectionName:   org.CollectionName,
		CreatedAt:        org.CreatedAt,
	}

	admin, err := e.store.FindAdminByID(ctx, org.AdminID)
	switch {
	case err == nil:
		summary.AdminEmail = admin.Email
	case errors.Is(err, store.ErrNotFound):
		log.Warn().
			Str("organization_name", org.OrganizationName).
			Str("admin_id", org.AdminID.String()).
			Msg("Organization references a missing admin")
	default:
		return nil, apperror.Internal(err, "failed to load organization admin")
	}

	return summary, nil
}

// ensureContainer creates the container unless it is already listed.
// Calling it repeatedly for the same name is a no-op.
func (e *Engine) ensureContainer(ctx context.Context, name string) error {
	containers, err := e.store.ListContainers(ctx)
	if err != nil {
		return apperror.Internal(err, "failed to list storage containers")
	}
	if slices.Contains(containers, name) {
		return nil
	}

	if err := e.store.CreateContainer(ctx, name); err != nil {
		if errors.Is(err, store.ErrInvalidContainerName) {
			return apperror.BadRequest("organization name cannot be used as a storage container name")
		}
		return apperror.Internal(err, "failed to create storage container")
	}

	log.Debug().Str("collection_name", name).Msg("Created storage container")
	return nil
}

func (e *Engine) recordDuration(ctx context.Context, operation string, started time.Time) {
	e.metrics.LifecycleDuration.Record(ctx,
		float64(time.Since(started).Milliseconds()),
		metric.WithAttributes(attribute.String("operation", operation)),
	)
}

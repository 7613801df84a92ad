package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgtenant/internal/apperror"
	"github.com/wolfeidau/orgtenant/internal/models"
	"github.com/wolfeidau/orgtenant/internal/store"
)

// Delete removes an organization, its admins and its storage container.
// Only the organization's own admin may delete it; the ownership check runs
// before any destructive step. A failed container drop is logged and ignored,
// which can leave an orphaned container but never a dangling credential.
func (e *Engine) Delete(ctx context.Context, name, requestingEmail string) (*models.DeleteResult, error) {
	started := time.Now()
	defer e.recordDuration(ctx, "delete", started)

	org, err := e.store.FindOrganizationByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("organization does not exist")
		}
		return nil, apperror.Internal(err, "failed to load organization")
	}

	admin, err := e.store.FindAdminByID(ctx, org.AdminID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperror.Internal(err, "failed to load organization admin")
	}
	if admin == nil || requestingEmail == "" || admin.Email != requestingEmail {
		log.Warn().
			Str("organization_name", name).
			Str("requesting_email", requestingEmail).
			Msg("Rejected organization delete from non-owner")
		return nil, apperror.Forbidden("only the org admin can delete the organization")
	}

	if err := e.store.DropContainer(ctx, org.CollectionName); err != nil {
		e.metrics.ContainerDropErrorsTotal.Add(ctx, 1)
		log.Warn().
			Err(err).
			Str("collection_name", org.CollectionName).
			Msg("Failed to drop storage container, continuing with delete")
	}

	n, err := e.store.DeleteAdminsByOrganization(ctx, org.OrganizationName)
	if err != nil {
		return nil, apperror.Internal(err, "failed to delete organization admins")
	}

	if err := e.store.DeleteOrganization(ctx, org.OrgID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperror.Internal(err, "failed to delete organization")
	}

	e.metrics.OrganizationsDeletedTotal.Add(ctx, 1)
	log.Info().
		Str("org_id", org.OrgID.String()).
		Str("organization_name", name).
		Int64("admins_deleted", n).
		Msg("Deleted organization")

	return &models.DeleteResult{Deleted: true, OrganizationName: name}, nil
}

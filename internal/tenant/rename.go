package tenant

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgtenant/internal/apperror"
	"github.com/wolfeidau/orgtenant/internal/models"
	"github.com/wolfeidau/orgtenant/internal/store"
)

// UpdateRequest lists the optional changes applied by Rename.
// Empty fields are left untouched.
type UpdateRequest struct {
	NewOrganizationName string
	Email               string
	Password            string
}

// Rename renames an organization and/or updates its admin's email and password.
//
// A rename migrates the storage container first, then rewrites the organization
// record and the admin back-references. If the metadata update fails after the
// container moved, the container already carries the new name while the records
// still show the old one; this is reported as an internal error and not reversed.
func (e *Engine) Rename(ctx context.Context, name string, req UpdateRequest) (*models.OrganizationSummary, error) {
	started := time.Now()
	defer e.recordDuration(ctx, "rename", started)

	org, err := e.store.FindOrganizationByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("organization does not exist")
		}
		return nil, apperror.Internal(err, "failed to load organization")
	}

	renaming := req.NewOrganizationName != "" && req.NewOrganizationName != org.OrganizationName
	if renaming {
		if err := ValidateOrganizationName(req.NewOrganizationName); err != nil {
			return nil, err
		}
	}

	// Validate every input before the first mutation.
	var creds store.AdminCredentialsUpdate
	if req.Email != "" {
		if err := e.checkEmailAvailableFor(ctx, req.Email, org.AdminID); err != nil {
			return nil, err
		}
		creds.Email = &req.Email
	}
	if req.Password != "" {
		hash, err := hashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		creds.PasswordHash = &hash
	}

	current := org.OrganizationName
	if renaming {
		if err := e.renameOrganization(ctx, org, req.NewOrganizationName); err != nil {
			return nil, err
		}
		current = req.NewOrganizationName
	}

	if !creds.IsEmpty() {
		if err := e.store.UpdateAdminCredentials(ctx, org.AdminID, creds); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				return nil, apperror.Conflict("admin email already in use")
			}
			return nil, apperror.Internal(err, "failed to update admin credentials")
		}
		log.Info().
			Str("admin_id", org.AdminID.String()).
			Bool("email_changed", creds.Email != nil).
			Bool("password_changed", creds.PasswordHash != nil).
			Msg("Updated admin credentials")
	}

	summary, err := e.Get(ctx, current)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, apperror.Internal(fmt.Errorf("organization %q vanished after update", current), "failed to load organization")
	}

	return summary, nil
}

func (e *Engine) renameOrganization(ctx context.Context, org *models.Organization, newName string) error {
	if err := e.checkNameAvailable(ctx, newName); err != nil {
		if apperror.CodeOf(err) == apperror.CodeConflict {
			return apperror.Conflict("new organization name already exists")
		}
		return err
	}

	oldName := org.OrganizationName
	oldCollection := org.CollectionName
	newCollection := models.ContainerName(newName)

	if err := e.migrateContainer(ctx, oldCollection, newCollection); err != nil {
		if errors.Is(err, store.ErrInvalidContainerName) {
			return apperror.BadRequest("organization name cannot be used as a storage container name")
		}
		return apperror.Internal(err, "failed to migrate storage container")
	}

	err := e.store.UpdateOrganization(ctx, org.OrgID, store.OrganizationUpdate{
		OrganizationName: newName,
		CollectionName:   newCollection,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("org_id", org.OrgID.String()).
			Str("organization_name", oldName).
			Str("collection_name", newCollection).
			Msg("Container migrated but organization metadata update failed")
		return apperror.Internal(err, "failed to update organization metadata")
	}

	// Set-update: every admin owned by the organization follows the rename.
	n, err := e.store.RenameAdminsOrganization(ctx, oldName, newName)
	if err != nil {
		log.Error().
			Err(err).
			Str("org_id", org.OrgID.String()).
			Str("organization_name", newName).
			Msg("Organization renamed but admin back-references were not updated")
		return apperror.Internal(err, "failed to update admin organization reference")
	}

	e.metrics.OrganizationsRenamedTotal.Add(ctx, 1)
	log.Info().
		Str("org_id", org.OrgID.String()).
		Str("from", oldName).
		Str("to", newName).
		Int64("admins_updated", n).
		Msg("Renamed organization")

	return nil
}

// migrateContainer moves a tenant container to its new name. A missing source
// results in a fresh empty target. The copy-then-drop fallback only runs when
// the store reports that it cannot rename in place.
func (e *Engine) migrateContainer(ctx context.Context, from, to string) error {
	containers, err := e.store.ListContainers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list storage containers: %w", err)
	}

	if !slices.Contains(containers, from) {
		log.Warn().Str("from", from).Str("to", to).Msg("Source container missing, creating empty target")
		return e.store.CreateContainer(ctx, to)
	}

	err = e.store.RenameContainer(ctx, from, to)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrRenameUnsupported) {
		return err
	}

	log.Warn().Err(err).Str("from", from).Str("to", to).Msg("Container rename not possible, copying documents")
	e.metrics.RenameCopyFallbacksTotal.Add(ctx, 1)

	return e.copyContainer(ctx, from, to)
}

// copyContainer copies every document to the target and drops the source.
// Document IDs are kept unless they clash in the target, in which case the
// whole batch is inserted again under freshly generated IDs.
func (e *Engine) copyContainer(ctx context.Context, from, to string) error {
	docs, err := e.store.ListDocuments(ctx, from)
	if err != nil {
		return fmt.Errorf("failed to read container %s: %w", from, err)
	}

	if err := e.store.CreateContainer(ctx, to); err != nil {
		return fmt.Errorf("failed to create container %s: %w", to, err)
	}

	if len(docs) > 0 {
		err = e.store.InsertDocuments(ctx, to, docs)
		if errors.Is(err, store.ErrDuplicateKey) {
			log.Warn().Str("container", to).Int("documents", len(docs)).Msg("Document id clash during copy, regenerating ids")
			docs, err = regenerateIDs(docs)
			if err != nil {
				return err
			}
			err = e.store.InsertDocuments(ctx, to, docs)
		}
		if err != nil {
			return fmt.Errorf("failed to copy documents into %s: %w", to, err)
		}
	}

	if err := e.store.DropContainer(ctx, from); err != nil {
		return fmt.Errorf("failed to drop container %s: %w", from, err)
	}

	log.Info().Str("from", from).Str("to", to).Int("documents", len(docs)).Msg("Copied container")
	return nil
}

func regenerateIDs(docs []models.Document) ([]models.Document, error) {
	out := make([]models.Document, len(docs))
	for i, doc := range docs {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate document id: %w", err)
		}
		out[i] = doc.Clone()
		out[i].ID = id.String()
	}
	return out, nil
}

func (e *Engine) checkEmailAvailableFor(ctx context.Context, email string, adminID uuid.UUID) error {
	admin, err := e.store.FindAdminByEmail(ctx, email)
	switch {
	case err == nil && admin.AdminID != adminID:
		return apperror.Conflict("admin email already in use")
	case err == nil, errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return apperror.Internal(err, "failed to check admin email")
	}
}

package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgtenant/internal/apperror"
	"github.com/wolfeidau/orgtenant/internal/credential"
	"github.com/wolfeidau/orgtenant/internal/models"
	"github.com/wolfeidau/orgtenant/internal/store"
)

// createState tracks how far an organization create has progressed.
type createState int

const (
	statePending createState = iota
	stateAdminInserted
	stateOrgInserted
	stateCommitted
)

func (s createState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateAdminInserted:
		return "admin_inserted"
	case stateOrgInserted:
		return "org_inserted"
	case stateCommitted:
		return "committed"
	default:
		return fmt.Sprintf("createState(%d)", int(s))
	}
}

// createSaga inserts the admin and organization records of a new tenant.
//
//	pending -> admin_inserted -> org_inserted -> committed
//	admin_inserted -> pending (rollback after losing the name race)
type createSaga struct {
	store store.TenantStore
	state createState
	admin *models.Admin
}

func (s *createSaga) transition(from, to createState) error {
	if s.state != from {
		return fmt.Errorf("invalid create transition %s -> %s from state %s", from, to, s.state)
	}
	s.state = to
	return nil
}

func (s *createSaga) insertAdmin(ctx context.Context, admin *models.Admin) error {
	if s.state != statePending {
		return apperror.Internal(fmt.Errorf("cannot insert admin from state %s", s.state), "failed to create organization")
	}

	if err := s.store.InsertAdmin(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return apperror.Conflict("admin email already in use")
		}
		return apperror.Internal(err, "failed to insert admin")
	}

	s.admin = admin
	return s.transition(statePending, stateAdminInserted)
}

func (s *createSaga) insertOrganization(ctx context.Context, org *models.Organization) error {
	if s.state != stateAdminInserted {
		return apperror.Internal(fmt.Errorf("cannot insert organization from state %s", s.state), "failed to create organization")
	}

	err := s.store.InsertOrganization(ctx, org)
	if err == nil {
		return s.transition(stateAdminInserted, stateOrgInserted)
	}

	// Nothing was written for the organization; undo the admin.
	if rbErr := s.rollback(ctx); rbErr != nil {
		return apperror.Internal(errors.Join(err, rbErr), "failed to roll back admin after organization insert failed")
	}

	if errors.Is(err, store.ErrDuplicateKey) {
		return apperror.Conflict("organization already exists")
	}
	return apperror.Internal(err, "failed to insert organization")
}

// rollback deletes the admin inserted by this saga. It runs exactly once and is not retried.
func (s *createSaga) rollback(ctx context.Context) error {
	if s.state != stateAdminInserted {
		return fmt.Errorf("cannot roll back create from state %s", s.state)
	}

	if err := s.store.DeleteAdmin(ctx, s.admin.AdminID); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error().
			Err(err).
			Str("admin_id", s.admin.AdminID.String()).
			Str("email", s.admin.Email).
			Msg("Failed to roll back admin, record left orphaned")
		return fmt.Errorf("failed to delete admin %s: %w", s.admin.AdminID, err)
	}
	s.state = statePending

	log.Warn().
		Str("admin_id", s.admin.AdminID.String()).
		Str("organization_name", s.admin.OrganizationName).
		Msg("Rolled back admin after organization insert failed")

	return nil
}

func (s *createSaga) commit() error {
	return s.transition(stateOrgInserted, stateCommitted)
}

// Create registers a new organization with its admin and an empty storage container.
//
// Uniqueness pre-checks only produce an early Conflict in the common case; the
// store's unique constraints are authoritative. When the organization insert
// loses a race on its name the freshly inserted admin is deleted again.
// The password policy is checked before the container is ensured so that a
// rejected request writes nothing.
func (e *Engine) Create(ctx context.Context, name, email, password string) (*models.OrganizationSummary, error) {
	started := time.Now()
	defer e.recordDuration(ctx, "create", started)

	if err := ValidateOrganizationName(name); err != nil {
		return nil, err
	}
	if email == "" {
		return nil, apperror.BadRequest("admin email is required")
	}

	if err := e.checkNameAvailable(ctx, name); err != nil {
		return nil, err
	}
	if err := e.checkEmailAvailable(ctx, email); err != nil {
		return nil, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	collection := models.ContainerName(name)
	if err := e.ensureContainer(ctx, collection); err != nil {
		return nil, err
	}

	adminID, err := uuid.NewV7()
	if err != nil {
		return nil, apperror.Internal(err, "failed to generate admin id")
	}
	orgID, err := uuid.NewV7()
	if err != nil {
		return nil, apperror.Internal(err, "failed to generate organization id")
	}

	now := e.now().UTC()
	admin := &models.Admin{
		AdminID:          adminID,
		Email:            email,
		PasswordHash:     hash,
		OrganizationName: name,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	org := &models.Organization{
		OrgID:            orgID,
		OrganizationName: name,
		CollectionName:   collection,
		AdminID:          adminID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	saga := &createSaga{store: e.store}
	if err := saga.insertAdmin(ctx, admin); err != nil {
		return nil, err
	}
	if err := saga.insertOrganization(ctx, org); err != nil {
		if saga.state == statePending {
			e.metrics.CreateCompensationsTotal.Add(ctx, 1)
		}
		return nil, err
	}
	if err := saga.commit(); err != nil {
		return nil, apperror.Internal(err, "failed to create organization")
	}

	e.metrics.OrganizationsCreatedTotal.Add(ctx, 1)
	log.Info().
		Str("org_id", orgID.String()).
		Str("organization_name", name).
		Str("collection_name", collection).
		Msg("Created organization")

	return &models.OrganizationSummary{
		OrganizationName: name,
		CollectionName:   collection,
		AdminEmail:       email,
		CreatedAt:        now,
	}, nil
}

func (e *Engine) checkNameAvailable(ctx context.Context, name string) error {
	_, err := e.store.FindOrganizationByName(ctx, name)
	switch {
	case err == nil:
		return apperror.Conflict("organization already exists")
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return apperror.Internal(err, "failed to check organization name")
	}
}

func (e *Engine) checkEmailAvailable(ctx context.Context, email string) error {
	_, err := e.store.FindAdminByEmail(ctx, email)
	switch {
	case err == nil:
		return apperror.Conflict("admin email already in use")
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return apperror.Internal(err, "failed to check admin email")
	}
}

// hashPassword validates the password policy and hashes it.
func hashPassword(password string) (string, error) {
	if err := credential.ValidatePassword(password); err != nil {
		return "", apperror.BadRequest("%s", err.Error())
	}

	hash, err := credential.HashPassword(password)
	if err != nil {
		return "", apperror.Internal(err, "failed to hash password")
	}

	return hash, nil
}

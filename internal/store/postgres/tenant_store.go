package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgtenant/internal/models"
	"github.com/wolfeidau/orgtenant/internal/store"
)

// maxIdentifierLength is the PostgreSQL limit (NAMEDATALEN - 1) on table names.
const maxIdentifierLength = 63

var _ store.TenantStore = (*TenantStore)(nil)

// TenantStore implements store.TenantStore using PostgreSQL.
// Metadata lives in the organizations and admins tables; every tenant
// container is its own table holding JSONB documents.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore creates a PostgreSQL-backed tenant store on a shared pool.
func NewTenantStore(pool *pgxpool.Pool) *TenantStore {
	return &TenantStore{pool: pool}
}

// Ping verifies the database is reachable.
func (s *TenantStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const organizationColumns = `org_id, organization_name, collection_name, admin_id, created_at, updated_at`

// FindOrganizationByName retrieves an organization by name.
func (s *TenantStore) FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE organization_name = $1`

	var org models.Organization
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&org.OrgID,
		&org.OrganizationName,
		&org.CollectionName,
		&org.AdminID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", mapPostgresError(err))
	}

	return &org, nil
}

// InsertOrganization inserts a new organization.
func (s *TenantStore) InsertOrganization(ctx context.Context, org *models.Organization) error {
	query := `INSERT INTO organizations (` + organizationColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		org.OrgID,
		org.OrganizationName,
		org.CollectionName,
		org.AdminID,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert organization: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("org_id", org.OrgID.String()).
		Str("organization_name", org.OrganizationName).
		Msg("Inserted organization")

	return nil
}

// UpdateOrganization sets the name and collection of one organization.
func (s *TenantStore) UpdateOrganization(ctx context.Context, orgID uuid.UUID, update store.OrganizationUpdate) error {
	query := `
		UPDATE organizations SET
			organization_name = $2,
			collection_name = $3,
			updated_at = $4
		WHERE org_id = $1
	`

	result, err := s.pool.Exec(ctx, query, orgID, update.OrganizationName, update.CollectionName, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}

// DeleteOrganization deletes an organization by ID.
func (s *TenantStore) DeleteOrganization(ctx context.Context, orgID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM organizations WHERE org_id = $1`, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}

const adminColumns = `admin_id, email, password_hash, organization_name, created_at, updated_at`

func (s *TenantStore) findAdmin(ctx context.Context, where string, arg any) (*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE ` + where + ` = $1`

	var admin models.Admin
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&admin.AdminID,
		&admin.Email,
		&admin.PasswordHash,
		&admin.OrganizationName,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get admin: %w", mapPostgresError(err))
	}

	return &admin, nil
}

// FindAdminByEmail retrieves an admin by email.
func (s *TenantStore) FindAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	return s.findAdmin(ctx, "email", email)
}

// FindAdminByID retrieves an admin by ID.
func (s *TenantStore) FindAdminByID(ctx context.Context, adminID uuid.UUID) (*models.Admin, error) {
	return s.findAdmin(ctx, "admin_id", adminID)
}

// InsertAdmin inserts a new admin.
func (s *TenantStore) InsertAdmin(ctx context.Context, admin *models.Admin) error {
	query := `INSERT INTO admins (` + adminColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		admin.AdminID,
		admin.Email,
		admin.PasswordHash,
		admin.OrganizationName,
		admin.CreatedAt,
		admin.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert admin: %w", mapPostgresError(err))
	}

	log.Debug().Str("admin_id", admin.AdminID.String()).Msg("Inserted admin")

	return nil
}

// UpdateAdminCredentials changes the email and/or password hash of one admin.
func (s *TenantStore) UpdateAdminCredentials(ctx context.Context, adminID uuid.UUID, update store.AdminCredentialsUpdate) error {
	query := `
		UPDATE admins SET
			email = COALESCE($2, email),
			password_hash = COALESCE($3, password_hash),
			updated_at = $4
		WHERE admin_id = $1
	`

	result, err := s.pool.Exec(ctx, query, adminID, update.Email, update.PasswordHash, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update admin: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}

// RenameAdminsOrganization rewrites the organization back-reference of every matching admin.
func (s *TenantStore) RenameAdminsOrganization(ctx context.Context, oldName, newName string) (int64, error) {
	query := `UPDATE admins SET organization_name = $2, updated_at = $3 WHERE organization_name = $1`

	result, err := s.pool.Exec(ctx, query, oldName, newName, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to rename admin organization: %w", mapPostgresError(err))
	}

	return result.RowsAffected(), nil
}

// DeleteAdmin removes one admin.
func (s *TenantStore) DeleteAdmin(ctx context.Context, adminID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM admins WHERE admin_id = $1`, adminID)
	if err != nil {
		return fmt.Errorf("failed to delete admin: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return nil
}

// DeleteAdminsByOrganization removes every admin referencing the organization.
func (s *TenantStore) DeleteAdminsByOrganization(ctx context.Context, organizationName string) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM admins WHERE organization_name = $1`, organizationName)
	if err != nil {
		return 0, fmt.Errorf("failed to delete admins: %w", mapPostgresError(err))
	}

	return result.RowsAffected(), nil
}

// tableName validates a container name and quotes it as a table identifier.
func tableName(name string) (string, error) {
	if !store.ValidContainerName(name) || len(name) > maxIdentifierLength {
		return "", fmt.Errorf("%w: %q", store.ErrInvalidContainerName, name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
		seq        BIGINT GENERATED ALWAYS AS IDENTITY,
		id         TEXT PRIMARY KEY,
		data       JSONB       NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
}

// ListContainers returns the tenant tables of the current schema in sorted order.
func (s *TenantStore) ListContainers(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema()
			AND table_type = 'BASE TABLE'
			AND table_name LIKE $1
		ORDER BY table_name
	`

	rows, err := s.pool.Query(ctx, query, strings.ReplaceAll(models.ContainerPrefix, "_", `\_`)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", mapPostgresError(err))
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan containers: %w", mapPostgresError(err))
	}

	containers := names[:0]
	for _, name := range names {
		if store.ValidContainerName(name) {
			containers = append(containers, name)
		}
	}

	return containers, nil
}

// CreateContainer creates an empty tenant table if it doesn't exist yet.
func (s *TenantStore) CreateContainer(ctx context.Context, name string) error {
	table, err := tableName(name)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, createTableSQL(table)); err != nil {
		if isAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("failed to create container %s: %w", name, mapPostgresError(err))
	}

	return nil
}

// RenameContainer renames a tenant table in place.
func (s *TenantStore) RenameContainer(ctx context.Context, from, to string) error {
	fromTable, err := tableName(from)
	if err != nil {
		return err
	}
	toTable, err := tableName(to)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `ALTER TABLE `+fromTable+` RENAME TO `+toTable); err != nil {
		return fmt.Errorf("failed to rename container %s to %s: %w", from, to, mapRenameError(err))
	}

	log.Debug().Str("from", from).Str("to", to).Msg("Renamed container")

	return nil
}

// DropContainer drops a tenant table; a missing table is ignored.
func (s *TenantStore) DropContainer(ctx context.Context, name string) error {
	table, err := tableName(name)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return fmt.Errorf("failed to drop container %s: %w", name, mapPostgresError(err))
	}

	return nil
}

// InsertDocuments copies documents into a tenant table in one transaction,
// creating the table first if needed. A duplicate ID aborts the whole batch.
func (s *TenantStore) InsertDocuments(ctx context.Context, name string, docs []models.Document) error {
	table, err := tableName(name)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	if _, err := tx.Exec(ctx, createTableSQL(table)); err != nil {
		return fmt.Errorf("failed to create container %s: %w", name, mapPostgresError(err))
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{name}, []string{"id", "data"},
		pgx.CopyFromSlice(len(docs), func(i int) ([]any, error) {
			fields := docs[i].Fields
			if fields == nil {
				fields = map[string]any{}
			}
			return []any{docs[i].ID, fields}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert documents into %s: %w", name, mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit documents into %s: %w", name, mapPostgresError(err))
	}

	return nil
}

// ListDocuments returns every document of a tenant table in insertion order.
// JSON numbers come back as float64.
func (s *TenantStore) ListDocuments(ctx context.Context, name string) ([]models.Document, error) {
	table, err := tableName(name)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT id, data FROM `+table+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents in %s: %w", name, mapPostgresError(err))
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Document, error) {
		var doc models.Document
		err := row.Scan(&doc.ID, &doc.Fields)
		return doc, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan documents in %s: %w", name, mapPostgresError(err))
	}

	return docs, nil
}

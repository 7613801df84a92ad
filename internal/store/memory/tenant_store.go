package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgtenant/internal/models"
	"github.com/wolfeidau/orgtenant/internal/store"
)

var _ store.TenantStore = (*TenantStore)(nil)

// container holds documents in insertion order.
type container struct {
	order []string
	docs  map[string]models.Document
}

func newContainer() *container {
	return &container{docs: make(map[string]models.Document)}
}

// TenantStore implements store.TenantStore using in-memory storage.
// This implementation is for testing and development only - data is lost on restart.
type TenantStore struct {
	mu sync.RWMutex

	organizations map[uuid.UUID]*models.Organization // org_id -> Organization
	admins        map[uuid.UUID]*models.Admin        // admin_id -> Admin
	containers    map[string]*container              // collection_name -> documents

	renameDisabled bool
}

// Option configures a TenantStore.
type Option func(*TenantStore)

// WithRenameDisabled makes RenameContainer always report store.ErrRenameUnsupported,
// mimicking storage layouts that cannot rename in place.
func WithRenameDisabled() Option {
	return func(s *TenantStore) {
		s.renameDisabled = true
	}
}

// NewTenantStore creates a new in-memory tenant store.
func NewTenantStore(opts ...Option) *TenantStore {
	s := &TenantStore{
		organizations: make(map[uuid.UUID]*models.Organization),
		admins:        make(map[uuid.UUID]*models.Admin),
		containers:    make(map[string]*container),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping always succeeds.
func (s *TenantStore) Ping(ctx context.Context) error {
	return nil
}

// FindOrganizationByName retrieves an organization by name.
func (s *TenantStore) FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, org := range s.organizations {
		if org.OrganizationName == name {
			clone := *org
			return &clone, nil
		}
	}

	return nil, store.ErrNotFound
}

// InsertOrganization inserts a new organization, enforcing unique names.
func (s *TenantStore) InsertOrganization(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.organizations[org.OrgID]; exists {
		return store.ErrDuplicateKey
	}
	if s.organizationNameTaken(org.OrganizationName, uuid.Nil) {
		return store.ErrDuplicateKey
	}

	clone := *org
	s.organizations[org.OrgID] = &clone

	return nil
}

// UpdateOrganization sets the name and collection of one organization.
func (s *TenantStore) UpdateOrganization(ctx context.Context, orgID uuid.UUID, update store.OrganizationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, exists := s.organizations[orgID]
	if !exists {
		return store.ErrNotFound
	}
	if s.organizationNameTaken(update.OrganizationName, orgID) {
		return store.ErrDuplicateKey
	}

	org.OrganizationName = update.OrganizationName
	org.CollectionName = update.CollectionName
	org.UpdatedAt = time.Now()

	return nil
}

// DeleteOrganization removes one organization.
func (s *TenantStore) DeleteOrganization(ctx context.Context, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.organizations[orgID]; !exists {
		return store.ErrNotFound
	}

	delete(s.organizations, orgID)

	return nil
}

// organizationNameTaken must be called with the lock held.
func (s *TenantStore) organizationNameTaken(name string, except uuid.UUID) bool {
	for id, org := range s.organizations {
		if id != except && org.OrganizationName == name {
			return true
		}
	}
	return false
}

// FindAdminByEmail retrieves an admin by email.
func (s *TenantStore) FindAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, admin := range s.admins {
		if admin.Email == email {
			clone := *admin
			return &clone, nil
		}
	}

	return nil, store.ErrNotFound
}

// FindAdminByID retrieves an admin by ID.
func (s *TenantStore) FindAdminByID(ctx context.Context, adminID uuid.UUID) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admin, exists := s.admins[adminID]
	if !exists {
		return nil, store.ErrNotFound
	}

	clone := *admin
	return &clone, nil
}

// InsertAdmin inserts a new admin, enforcing unique emails.
func (s *TenantStore) InsertAdmin(ctx context.Context, admin *models.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.admins[admin.AdminID]; exists {
		return store.ErrDuplicateKey
	}
	if s.emailTaken(admin.Email, uuid.Nil) {
		return store.ErrDuplicateKey
	}

	clone := *admin
	s.admins[admin.AdminID] = &clone

	return nil
}

// UpdateAdminCredentials changes the email and/or password hash of one admin.
func (s *TenantStore) UpdateAdminCredentials(ctx context.Context, adminID uuid.UUID, update store.AdminCredentialsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	admin, exists := s.admins[adminID]
	if !exists {
		return store.ErrNotFound
	}
	if update.Email != nil && s.emailTaken(*update.Email, adminID) {
		return store.ErrDuplicateKey
	}

	if update.Email != nil {
		admin.Email = *update.Email
	}
	if update.PasswordHash != nil {
		admin.PasswordHash = *update.PasswordHash
	}
	admin.UpdatedAt = time.Now()

	return nil
}

// RenameAdminsOrganization rewrites the back-reference of every matching admin.
func (s *TenantStore) RenameAdminsOrganization(ctx context.Context, oldName, newName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := time.Now()
	for _, admin := range s.admins {
		if admin.OrganizationName == oldName {
			admin.OrganizationName = newName
			admin.UpdatedAt = now
			n++
		}
	}

	return n, nil
}

// DeleteAdmin removes one admin.
func (s *TenantStore) DeleteAdmin(ctx context.Context, adminID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.admins[adminID]; !exists {
		return store.ErrNotFound
	}

	delete(s.admins, adminID)

	return nil
}

// DeleteAdminsByOrganization removes every admin referencing the organization.
func (s *TenantStore) DeleteAdminsByOrganization(ctx context.Context, organizationName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, admin := range s.admins {
		if admin.OrganizationName == organizationName {
			delete(s.admins, id)
			n++
		}
	}

	return n, nil
}

// emailTaken must be called with the lock held.
func (s *TenantStore) emailTaken(email string, except uuid.UUID) bool {
	for id, admin := range s.admins {
		if id != except && admin.Email == email {
			return true
		}
	}
	return false
}

// ListContainers returns container names in sorted order.
func (s *TenantStore) ListContainers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.containers))
	for name := range s.containers {
		names = append(names, name)
	}
	slices.Sort(names)

	return names, nil
}

// CreateContainer creates an empty container if it doesn't exist yet.
func (s *TenantStore) CreateContainer(ctx context.Context, name string) error {
	if !store.ValidContainerName(name) {
		return fmt.Errorf("%w: %q", store.ErrInvalidContainerName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.containers[name]; !exists {
		s.containers[name] = newContainer()
	}

	return nil
}

// RenameContainer moves a container to a new name.
func (s *TenantStore) RenameContainer(ctx context.Context, from, to string) error {
	if !store.ValidContainerName(from) || !store.ValidContainerName(to) {
		return fmt.Errorf("%w: %q -> %q", store.ErrInvalidContainerName, from, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.renameDisabled {
		return store.ErrRenameUnsupported
	}

	c, exists := s.containers[from]
	if !exists {
		return store.ErrContainerNotFound
	}
	if _, exists := s.containers[to]; exists {
		return fmt.Errorf("%w: target %q already exists", store.ErrRenameUnsupported, to)
	}

	s.containers[to] = c
	delete(s.containers, from)

	return nil
}

// DropContainer removes a container; a missing container is ignored.
func (s *TenantStore) DropContainer(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.containers, name)

	return nil
}

// InsertDocuments stores documents, rejecting the whole batch on a duplicate ID.
func (s *TenantStore) InsertDocuments(ctx context.Context, name string, docs []models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.containers[name]
	if !exists {
		// Inserting into a missing container creates it, as document stores do.
		if !store.ValidContainerName(name) {
			return fmt.Errorf("%w: %q", store.ErrInvalidContainerName, name)
		}
		c = newContainer()
		s.containers[name] = c
	}

	seen := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if _, dup := c.docs[doc.ID]; dup {
			return fmt.Errorf("%w: document %q", store.ErrDuplicateKey, doc.ID)
		}
		if _, dup := seen[doc.ID]; dup {
			return fmt.Errorf("%w: document %q", store.ErrDuplicateKey, doc.ID)
		}
		seen[doc.ID] = struct{}{}
	}

	for _, doc := range docs {
		c.docs[doc.ID] = doc.Clone()
		c.order = append(c.order, doc.ID)
	}

	return nil
}

// ListDocuments returns copies of every document in insertion order.
func (s *TenantStore) ListDocuments(ctx context.Context, name string) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.containers[name]
	if !exists {
		return nil, store.ErrContainerNotFound
	}

	docs := make([]models.Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, c.docs[id].Clone())
	}

	return docs, nil
}

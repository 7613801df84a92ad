package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgtenant/internal/models"
	"github.com/wolfeidau/orgtenant/internal/store"
)

func newOrganization(t *testing.T, name string) *models.Organization {
	t.Helper()
	orgID, err := uuid.NewV7()
	require.NoError(t, err)
	adminID, err := uuid.NewV7()
	require.NoError(t, err)
	return &models.Organization{
		OrgID:            orgID,
		OrganizationName: name,
		CollectionName:   models.ContainerName(name),
		AdminID:          adminID,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
}

func newAdmin(t *testing.T, email, orgName string) *models.Admin {
	t.Helper()
	adminID, err := uuid.NewV7()
	require.NoError(t, err)
	return &models.Admin{
		AdminID:          adminID,
		Email:            email,
		PasswordHash:     "hash",
		OrganizationName: orgName,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
}

func TestTenantStore_Organizations(t *testing.T) {
	ctx := context.Background()

	t.Run("insert and find by name", func(t *testing.T) {
		st := NewTenantStore()
		org := newOrganization(t, "acme")

		require.NoError(t, st.InsertOrganization(ctx, org))

		found, err := st.FindOrganizationByName(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, org.OrgID, found.OrgID)
		require.Equal(t, "org_acme", found.CollectionName)
	})

	t.Run("duplicate name returns ErrDuplicateKey", func(t *testing.T) {
		st := NewTenantStore()
		require.NoError(t, st.InsertOrganization(ctx, newOrganization(t, "acme")))

		err := st.InsertOrganization(ctx, newOrganization(t, "acme"))
		require.ErrorIs(t, err, store.ErrDuplicateKey)
	})

	t.Run("find missing returns ErrNotFound", func(t *testing.T) {
		st := NewTenantStore()
		_, err := st.FindOrganizationByName(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("update rejects a name held by another organization", func(t *testing.T) {
		st := NewTenantStore()
		acme := newOrganization(t, "acme")
		require.NoError(t, st.InsertOrganization(ctx, acme))
		require.NoError(t, st.InsertOrganization(ctx, newOrganization(t, "globex")))

		err := st.UpdateOrganization(ctx, acme.OrgID, store.OrganizationUpdate{
			OrganizationName: "globex",
			CollectionName:   "org_globex",
		})
		require.ErrorIs(t, err, store.ErrDuplicateKey)

		err = st.UpdateOrganization(ctx, acme.OrgID, store.OrganizationUpdate{
			OrganizationName: "initech",
			CollectionName:   "org_initech",
		})
		require.NoError(t, err)

		found, err := st.FindOrganizationByName(ctx, "initech")
		require.NoError(t, err)
		require.Equal(t, "org_initech", found.CollectionName)
	})

	t.Run("returned organizations are copies", func(t *testing.T) {
		st := NewTenantStore()
		require.NoError(t, st.InsertOrganization(ctx, newOrganization(t, "acme")))

		found, err := st.FindOrganizationByName(ctx, "acme")
		require.NoError(t, err)
		found.OrganizationName = "mutated"

		_, err = st.FindOrganizationByName(ctx, "acme")
		require.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		st := NewTenantStore()
		org := newOrganization(t, "acme")
		require.NoError(t, st.InsertOrganization(ctx, org))

		require.NoError(t, st.DeleteOrganization(ctx, org.OrgID))
		require.ErrorIs(t, st.DeleteOrganization(ctx, org.OrgID), store.ErrNotFound)
	})
}

func TestTenantStore_Admins(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate email returns ErrDuplicateKey", func(t *testing.T) {
		st := NewTenantStore()
		require.NoError(t, st.InsertAdmin(ctx, newAdmin(t, "a@acme.io", "acme")))

		err := st.InsertAdmin(ctx, newAdmin(t, "a@acme.io", "globex"))
		require.ErrorIs(t, err, store.ErrDuplicateKey)
	})

	t.Run("update credentials", func(t *testing.T) {
		st := NewTenantStore()
		admin := newAdmin(t, "a@acme.io", "acme")
		require.NoError(t, st.InsertAdmin(ctx, admin))
		require.NoError(t, st.InsertAdmin(ctx, newAdmin(t, "b@globex.io", "globex")))

		taken := "b@globex.io"
		err := st.UpdateAdminCredentials(ctx, admin.AdminID, store.AdminCredentialsUpdate{Email: &taken})
		require.ErrorIs(t, err, store.ErrDuplicateKey)

		email, hash := "new@acme.io", "new-hash"
		err = st.UpdateAdminCredentials(ctx, admin.AdminID, store.AdminCredentialsUpdate{Email: &email, PasswordHash: &hash})
		require.NoError(t, err)

		found, err := st.FindAdminByID(ctx, admin.AdminID)
		require.NoError(t, err)
		require.Equal(t, "new@acme.io", found.Email)
		require.Equal(t, "new-hash", found.PasswordHash)
	})

	t.Run("rename and delete by organization touch every match", func(t *testing.T) {
		st := NewTenantStore()
		require.NoError(t, st.InsertAdmin(ctx, newAdmin(t, "a@acme.io", "acme")))
		require.NoError(t, st.InsertAdmin(ctx, newAdmin(t, "b@acme.io", "acme")))
		require.NoError(t, st.InsertAdmin(ctx, newAdmin(t, "c@globex.io", "globex")))

		n, err := st.RenameAdminsOrganization(ctx, "acme", "acme2")
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		n, err = st.DeleteAdminsByOrganization(ctx, "acme2")
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		_, err = st.FindAdminByEmail(ctx, "c@globex.io")
		require.NoError(t, err)
	})
}

func TestTenantStore_Containers(t *testing.T) {
	ctx := context.Background()

	t.Run("create is idempotent", func(t *testing.T) {
		st := NewTenantStore()
		require.NoError(t, st.CreateContainer(ctx, "org_acme"))
		require.NoError(t, st.InsertDocuments(ctx, "org_acme", []models.Document{{ID: "1"}}))
		require.NoError(t, st.CreateContainer(ctx, "org_acme"))

		names, err := st.ListContainers(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"org_acme"}, names)

		docs, err := st.ListDocuments(ctx, "org_acme")
		require.NoError(t, err)
		require.Len(t, docs, 1)
	})

	t.Run("create rejects names outside the tenant pattern", func(t *testing.T) {
		st := NewTenantStore()
		require.ErrorIs(t, st.CreateContainer(ctx, "admins"), store.ErrInvalidContainerName)
		require.ErrorIs(t, st.CreateContainer(ctx, "org_a;drop"), store.ErrInvalidContainerName)
	})

	t.Run("rename moves documents", func(t *testing.T) {
		st := NewTenantStore()
		require.NoError(t, st.InsertDocuments(ctx, "org_acme", []models.Document{
			{ID: "1", Fields: map[string]any{"k": "v"}},
		}))

		require.NoError(t, st.RenameContainer(ctx, "org_acme", "org_globex"))

		names, err := st.ListContainers(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"org_globex"}, names)

		docs, err := st.ListDocuments(ctx, "org_globex")
		require.NoError(t, err)
		require.Equal(t, "v", docs[0].Fields["k"])
	})

	t.Run("rename onto an existing container is unsupported", func(t *testing.T) {
		st := NewTenantStore()
		require.NoError(t, st.CreateContainer(ctx, "org_acme"))
		require.NoError(t, st.CreateContainer(ctx, "org_globex"))

		err := st.RenameContainer(ctx, "org_acme", "org_globex")
		require.ErrorIs(t, err, store.ErrRenameUnsupported)
	})

	t.Run("rename of missing container", func(t *testing.T) {
		st := NewTenantStore()
		err := st.RenameContainer(ctx, "org_acme", "org_globex")
		require.ErrorIs(t, err, store.ErrContainerNotFound)
	})

	t.Run("rename disabled", func(t *testing.T) {
		st := NewTenantStore(WithRenameDisabled())
		require.NoError(t, st.CreateContainer(ctx, "org_acme"))

		err := st.RenameContainer(ctx, "org_acme", "org_globex")
		require.ErrorIs(t, err, store.ErrRenameUnsupported)
	})

	t.Run("duplicate document ids reject the batch", func(t *testing.T) {
		st := NewTenantStore()
		require.NoError(t, st.InsertDocuments(ctx, "org_acme", []models.Document{{ID: "1"}}))

		err := st.InsertDocuments(ctx, "org_acme", []models.Document{{ID: "2"}, {ID: "1"}})
		require.ErrorIs(t, err, store.ErrDuplicateKey)

		docs, err := st.ListDocuments(ctx, "org_acme")
		require.NoError(t, err)
		require.Len(t, docs, 1)
	})

	t.Run("drop missing container is not an error", func(t *testing.T) {
		st := NewTenantStore()
		require.NoError(t, st.DropContainer(ctx, "org_acme"))

		_, err := st.ListDocuments(ctx, "org_acme")
		require.ErrorIs(t, err, store.ErrContainerNotFound)
	})
}

//go:build integration

package mongo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wolfeidau/orgtenant/internal/models"
	"github.com/wolfeidau/orgtenant/internal/store"
	"github.com/wolfeidau/orgtenant/internal/tenant"
)

func setupMongoContainer(t *testing.T, ctx context.Context) *TenantStore {
	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	client, err := Connect(ctx, &Config{
		URI:      fmt.Sprintf("mongodb://%s:%s", host, port.Port()),
		Database: "orgtenant_test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	st := NewTenantStore(client, "orgtenant_test")
	require.NoError(t, st.EnsureIndexes(ctx))
	require.NoError(t, st.EnsureIndexes(ctx))

	return st
}

func TestIntegration_TenantStore(t *testing.T) {
	ctx := context.Background()
	st := setupMongoContainer(t, ctx)

	t.Run("organization unique name", func(t *testing.T) {
		orgID, err := uuid.NewV7()
		require.NoError(t, err)
		adminID, err := uuid.NewV7()
		require.NoError(t, err)

		org := &models.Organization{
			OrgID:            orgID,
			OrganizationName: "unique",
			CollectionName:   "org_unique",
			AdminID:          adminID,
			CreatedAt:        time.Now().UTC().Truncate(time.Millisecond),
			UpdatedAt:        time.Now().UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, st.InsertOrganization(ctx, org))

		dup := *org
		dup.OrgID = uuid.New()
		require.ErrorIs(t, st.InsertOrganization(ctx, &dup), store.ErrDuplicateKey)

		found, err := st.FindOrganizationByName(ctx, "unique")
		require.NoError(t, err)
		require.Equal(t, org.OrgID, found.OrgID)
		require.True(t, org.CreatedAt.Equal(found.CreatedAt))

		require.NoError(t, st.DeleteOrganization(ctx, org.OrgID))
		require.ErrorIs(t, st.DeleteOrganization(ctx, org.OrgID), store.ErrNotFound)
	})

	t.Run("container lifecycle", func(t *testing.T) {
		require.NoError(t, st.CreateContainer(ctx, "org_lifecycle"))
		require.NoError(t, st.CreateContainer(ctx, "org_lifecycle"))

		require.NoError(t, st.InsertDocuments(ctx, "org_lifecycle", []models.Document{
			{ID: "a", Fields: map[string]any{"n": "one"}},
			{ID: "b", Fields: map[string]any{"n": "two"}},
		}))

		err := st.InsertDocuments(ctx, "org_lifecycle", []models.Document{{ID: "c"}, {ID: "a"}})
		require.ErrorIs(t, err, store.ErrDuplicateKey)

		docs, err := st.ListDocuments(ctx, "org_lifecycle")
		require.NoError(t, err)
		require.Len(t, docs, 2, "partial insert must be removed")
		require.Equal(t, "one", docs[0].Fields["n"])

		require.NoError(t, st.RenameContainer(ctx, "org_lifecycle", "org_lifecycle2"))
		_, err = st.ListDocuments(ctx, "org_lifecycle")
		require.ErrorIs(t, err, store.ErrContainerNotFound)

		require.NoError(t, st.CreateContainer(ctx, "org_lifecycle"))
		err = st.RenameContainer(ctx, "org_lifecycle", "org_lifecycle2")
		require.ErrorIs(t, err, store.ErrRenameUnsupported)

		err = st.RenameContainer(ctx, "org_missing", "org_missing2")
		require.ErrorIs(t, err, store.ErrContainerNotFound)

		containers, err := st.ListContainers(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"org_lifecycle", "org_lifecycle2"}, containers)

		require.NoError(t, st.DropContainer(ctx, "org_lifecycle"))
		require.NoError(t, st.DropContainer(ctx, "org_lifecycle2"))
		require.NoError(t, st.DropContainer(ctx, "org_lifecycle2"))
	})

	t.Run("engine lifecycle", func(t *testing.T) {
		e := tenant.NewEngine(st)

		_, err := e.Create(ctx, "acme", "admin@acme.io", "secret1")
		require.NoError(t, err)

		require.NoError(t, st.InsertDocuments(ctx, "org_acme", []models.Document{{ID: "invoice-1"}}))

		summary, err := e.Rename(ctx, "acme", tenant.UpdateRequest{NewOrganizationName: "acme2", Email: "owner@acme.io"})
		require.NoError(t, err)
		require.Equal(t, "org_acme2", summary.CollectionName)
		require.Equal(t, "owner@acme.io", summary.AdminEmail)

		admin, err := st.FindAdminByEmail(ctx, "owner@acme.io")
		require.NoError(t, err)
		require.Equal(t, "acme2", admin.OrganizationName)

		_, err = e.Delete(ctx, "acme2", "owner@acme.io")
		require.NoError(t, err)

		containers, err := st.ListContainers(ctx)
		require.NoError(t, err)
		require.Empty(t, containers)
	})
}

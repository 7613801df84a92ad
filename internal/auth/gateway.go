package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/orgtenant/internal/credential"
	"github.com/wolfeidau/orgtenant/internal/models"
	"github.com/wolfeidau/orgtenant/internal/store"
	"github.com/wolfeidau/orgtenant/internal/telemetry"
)

// ErrInvalidCredentials is returned for an unknown email and for a wrong
// password alike.
var ErrInvalidCredentials = errors.New("invalid email or password")

// IdentityStore is the read-only view of the tenant store the gateway needs.
type IdentityStore interface {
	FindAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
	FindOrganizationByName(ctx context.Context, name string) (*models.Organization, error)
}

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	hash, err := credential.HashPassword(uuid.NewString())
	if err != nil {
		panic(fmt.Sprintf("failed to create dummy password hash: %v", err))
	}
	return hash
})

// Gateway authenticates admins and mints their access tokens.
type Gateway struct {
	store   IdentityStore
	codec   *credential.TokenCodec
	metrics *telemetry.Metrics
}

// NewGateway creates an auth gateway.
func NewGateway(st IdentityStore, codec *credential.TokenCodec) *Gateway {
	return &Gateway{
		store:   st,
		codec:   codec,
		metrics: telemetry.GetMetrics(),
	}
}

// Authenticate checks an email and password pair and resolves the admin's
// organization. OrgID is left empty when the organization cannot be found.
func (g *Gateway) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	admin, err := g.store.FindAdminByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to load admin: %w", err)
		}
		credential.VerifyPassword(password, dummyHash())
		g.metrics.LoginFailuresTotal.Add(ctx, 1)
		return nil, ErrInvalidCredentials
	}

	if !credential.VerifyPassword(password, admin.PasswordHash) {
		g.metrics.LoginFailuresTotal.Add(ctx, 1)
		log.Info().Str("admin_id", admin.AdminID.String()).Msg("Rejected login with wrong password")
		return nil, ErrInvalidCredentials
	}

	identity := &models.Identity{
		AdminID:          admin.AdminID.String(),
		Email:            admin.Email,
		OrganizationName: admin.OrganizationName,
	}

	org, err := g.store.FindOrganizationByName(ctx, admin.OrganizationName)
	switch {
	case err == nil:
		identity.OrgID = org.OrgID.String()
	case errors.Is(err, store.ErrNotFound):
		log.Warn().
			Str("admin_id", identity.AdminID).
			Str("organization_name", admin.OrganizationName).
			Msg("Admin references a missing organization")
	default:
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	g.metrics.LoginsTotal.Add(ctx, 1)

	return identity, nil
}

// IssueToken signs an access token for an authenticated identity.
func (g *Gateway) IssueToken(identity *models.Identity) (string, error) {
	return g.codec.Issue(identity.AdminID, credential.Claims{
		Email:            identity.Email,
		OrganizationName: identity.OrganizationName,
		OrgID:            identity.OrgID,
	})
}

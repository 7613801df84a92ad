package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/orgtenant/internal/apperror"
	"github.com/wolfeidau/orgtenant/internal/auth"
	httpmiddleware "github.com/wolfeidau/orgtenant/internal/http"
	"github.com/wolfeidau/orgtenant/internal/tenant"
)

func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	summary, err := s.engine.Create(r.Context(), req.OrganizationName, req.Email, req.Password)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	httpmiddleware.WriteJSON(w, r, http.StatusOK, summary)
}

func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	name, err := queryParam(r, "organization_name")
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	summary, err := s.engine.Get(r.Context(), name)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	if summary == nil {
		httpmiddleware.WriteError(w, r, apperror.NotFound("organization does not exist"))
		return
	}

	httpmiddleware.WriteJSON(w, r, http.StatusOK, summary)
}

func (s *Server) updateOrganization(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrganizationRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	summary, err := s.engine.Rename(r.Context(), req.OrganizationName, tenant.UpdateRequest{
		NewOrganizationName: req.NewOrganizationName,
		Email:               req.Email,
		Password:            req.Password,
	})
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	httpmiddleware.WriteJSON(w, r, http.StatusOK, summary)
}

func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	name, err := queryParam(r, "organization_name")
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	var requestingEmail string
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		requestingEmail = claims.Email
	}

	result, err := s.engine.Delete(r.Context(), name, requestingEmail)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	httpmiddleware.WriteJSON(w, r, http.StatusOK, result)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	identity, err := s.gateway.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			zerolog.Ctx(r.Context()).Info().
				Str("client_ip", httpmiddleware.ClientIPFromContext(r.Context())).
				Msg("Admin login rejected")
			httpmiddleware.WriteError(w, r, apperror.Unauthorized("invalid credentials"))
			return
		}
		httpmiddleware.WriteError(w, r, apperror.Internal(err, "failed to authenticate admin"))
		return
	}

	token, err := s.gateway.IssueToken(identity)
	if err != nil {
		httpmiddleware.WriteError(w, r, apperror.Internal(err, "failed to issue token"))
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("admin_id", identity.AdminID).
		Str("client_ip", httpmiddleware.ClientIPFromContext(r.Context())).
		Msg("Admin logged in")

	httpmiddleware.WriteJSON(w, r, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Database ping failed")
		httpmiddleware.WriteJSON(w, r, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", DB: "unavailable"})
		return
	}

	httpmiddleware.WriteJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", DB: "ok"})
}

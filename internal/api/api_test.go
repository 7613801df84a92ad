package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/orgtenant/internal/auth"
	"github.com/wolfeidau/orgtenant/internal/credential"
	"github.com/wolfeidau/orgtenant/internal/store/memory"
	"github.com/wolfeidau/orgtenant/internal/tenant"
)

const testSecret = "test-secret"

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error {
	return errors.New("connection refused")
}

type testAPI struct {
	handler http.Handler
	store   *memory.TenantStore
}

func newTestAPI(t *testing.T, db Pinger) *testAPI {
	t.Helper()

	st := memory.NewTenantStore()
	codec, err := credential.NewTokenCodec(testSecret, "")
	require.NoError(t, err)

	if db == nil {
		db = st
	}

	srv := NewServer(tenant.NewEngine(st), auth.NewGateway(st, codec), db)
	return &testAPI{handler: srv.Routes(zerolog.Nop()), store: st}
}

func (a *testAPI) do(t *testing.T, method, target string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func (a *testAPI) create(t *testing.T, name, email string) {
	t.Helper()
	rec, body := a.do(t, http.MethodPost, "/org/create", map[string]string{
		"organization_name": name,
		"email":             email,
		"password":          "secret1",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, body)
}

func (a *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()
	rec, body := a.do(t, http.MethodPost, "/admin/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, body)
	require.Equal(t, "bearer", body["token_type"])

	token, ok := body["access_token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)
	return token
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %v", body)
	code, _ := envelope["code"].(string)
	return code
}

func TestAPI_AcmeScenario(t *testing.T) {
	a := newTestAPI(t, nil)

	a.create(t, "acme", "admin@acme.io")

	rec, body := a.do(t, http.MethodGet, "/org/get?organization_name=acme", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "acme", body["organization_name"])
	require.Equal(t, "org_acme", body["collection_name"])
	require.Equal(t, "admin@acme.io", body["admin_email"])
	require.NotEmpty(t, body["created_at"])

	token := a.login(t, "admin@acme.io", "secret1")

	a.create(t, "globex", "admin@globex.io")
	foreign := a.login(t, "admin@globex.io", "secret1")

	rec, body = a.do(t, http.MethodDelete, "/org/delete?organization_name=acme", nil, foreign)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", errorCode(t, body))

	rec, body = a.do(t, http.MethodDelete, "/org/delete?organization_name=acme", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["deleted"])
	require.Equal(t, "acme", body["organization_name"])

	rec, body = a.do(t, http.MethodGet, "/org/get?organization_name=acme", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", errorCode(t, body))

	containers, err := a.store.ListContainers(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"org_globex"}, containers)
}

func TestAPI_CreateOrganization(t *testing.T) {
	t.Run("duplicate name conflicts", func(t *testing.T) {
		a := newTestAPI(t, nil)
		a.create(t, "acme", "admin@acme.io")

		rec, body := a.do(t, http.MethodPost, "/org/create", map[string]string{
			"organization_name": "acme",
			"email":             "other@acme.io",
			"password":          "secret1",
		}, "")
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "conflict", errorCode(t, body))
	})

	t.Run("surrounding whitespace is trimmed from the name", func(t *testing.T) {
		a := newTestAPI(t, nil)

		rec, body := a.do(t, http.MethodPost, "/org/create", map[string]string{
			"organization_name": "  acme ",
			"email":             "admin@acme.io",
			"password":          "secret1",
		}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "acme", body["organization_name"])
	})

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{
			name:  "invalid email",
			body:  map[string]string{"organization_name": "acme", "email": "not-an-email", "password": "secret1"},
			field: "email",
		},
		{
			name:  "short password",
			body:  map[string]string{"organization_name": "acme", "email": "admin@acme.io", "password": "abc"},
			field: "password",
		},
		{
			name:  "bad organization name",
			body:  map[string]string{"organization_name": "acme corp!", "email": "admin@acme.io", "password": "secret1"},
			field: "organization_name",
		},
		{
			name:  "missing organization name",
			body:  map[string]string{"email": "admin@acme.io", "password": "secret1"},
			field: "organization_name",
		},
		{
			name:  "malformed json",
			body:  `{"organization_name":`,
			field: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t, nil)

			rec, body := a.do(t, http.MethodPost, "/org/create", tt.body, "")
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			require.Equal(t, "validation_error", errorCode(t, body))

			details, ok := body["error"].(map[string]any)["details"].([]any)
			require.True(t, ok)
			require.NotEmpty(t, details)

			if tt.field != "" {
				loc := details[0].(map[string]any)["loc"].([]any)
				require.Equal(t, []any{"body", tt.field}, loc)
			}

			containers, err := a.store.ListContainers(context.Background())
			require.NoError(t, err)
			require.Empty(t, containers)
		})
	}
}

func TestAPI_GetOrganization(t *testing.T) {
	a := newTestAPI(t, nil)

	t.Run("missing query parameter", func(t *testing.T) {
		rec, body := a.do(t, http.MethodGet, "/org/get", nil, "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.Equal(t, "validation_error", errorCode(t, body))
	})

	t.Run("unknown organization", func(t *testing.T) {
		rec, body := a.do(t, http.MethodGet, "/org/get?organization_name=nobody", nil, "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "organization does not exist", body["error"].(map[string]any)["message"])
	})
}

func TestAPI_UpdateOrganization(t *testing.T) {
	t.Run("rename moves the container and keeps the login", func(t *testing.T) {
		a := newTestAPI(t, nil)
		a.create(t, "acme", "admin@acme.io")

		rec, body := a.do(t, http.MethodPut, "/org/update", map[string]string{
			"organization_name":     "acme",
			"new_organization_name": "acme2",
		}, "")
		require.Equal(t, http.StatusOK, rec.Code, body)
		require.Equal(t, "acme2", body["organization_name"])
		require.Equal(t, "org_acme2", body["collection_name"])
		require.Equal(t, "admin@acme.io", body["admin_email"])

		containers, err := a.store.ListContainers(context.Background())
		require.NoError(t, err)
		require.Equal(t, []string{"org_acme2"}, containers)

		a.login(t, "admin@acme.io", "secret1")
	})

	t.Run("credential change takes effect on login", func(t *testing.T) {
		a := newTestAPI(t, nil)
		a.create(t, "acme", "admin@acme.io")

		rec, body := a.do(t, http.MethodPut, "/org/update", map[string]string{
			"organization_name": "acme",
			"email":             "owner@acme.io",
			"password":          "newsecret9",
		}, "")
		require.Equal(t, http.StatusOK, rec.Code, body)
		require.Equal(t, "owner@acme.io", body["admin_email"])

		a.login(t, "owner@acme.io", "newsecret9")

		rec, _ = a.do(t, http.MethodPost, "/admin/login", map[string]string{
			"email":    "admin@acme.io",
			"password": "secret1",
		}, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("same new name fails validation", func(t *testing.T) {
		a := newTestAPI(t, nil)
		a.create(t, "acme", "admin@acme.io")

		rec, body := a.do(t, http.MethodPut, "/org/update", map[string]string{
			"organization_name":     "acme",
			"new_organization_name": "acme",
		}, "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		details := body["error"].(map[string]any)["details"].([]any)
		require.Equal(t, "nefield", details[0].(map[string]any)["type"])
	})

	t.Run("taken name conflicts", func(t *testing.T) {
		a := newTestAPI(t, nil)
		a.create(t, "acme", "admin@acme.io")
		a.create(t, "globex", "admin@globex.io")

		rec, body := a.do(t, http.MethodPut, "/org/update", map[string]string{
			"organization_name":     "acme",
			"new_organization_name": "globex",
		}, "")
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, "new organization name already exists", body["error"].(map[string]any)["message"])
	})

	t.Run("unknown organization", func(t *testing.T) {
		a := newTestAPI(t, nil)

		rec, _ := a.do(t, http.MethodPut, "/org/update", map[string]string{
			"organization_name":     "nobody",
			"new_organization_name": "somebody",
		}, "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAPI_DeleteOrganization(t *testing.T) {
	a := newTestAPI(t, nil)
	a.create(t, "acme", "admin@acme.io")

	t.Run("missing token", func(t *testing.T) {
		rec, body := a.do(t, http.MethodDelete, "/org/delete?organization_name=acme", nil, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "unauthorized", errorCode(t, body))
	})

	t.Run("garbage token", func(t *testing.T) {
		rec, _ := a.do(t, http.MethodDelete, "/org/delete?organization_name=acme", nil, "not.a.token")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token from another secret", func(t *testing.T) {
		codec, err := credential.NewTokenCodec("other-secret", "")
		require.NoError(t, err)
		forged, err := codec.Issue("someone", credential.Claims{Email: "admin@acme.io"})
		require.NoError(t, err)

		rec, _ := a.do(t, http.MethodDelete, "/org/delete?organization_name=acme", nil, forged)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown organization", func(t *testing.T) {
		token := a.login(t, "admin@acme.io", "secret1")

		rec, _ := a.do(t, http.MethodDelete, "/org/delete?organization_name=nobody", nil, token)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAPI_Login(t *testing.T) {
	a := newTestAPI(t, nil)
	a.create(t, "acme", "admin@acme.io")

	t.Run("token carries the identity", func(t *testing.T) {
		token := a.login(t, "admin@acme.io", "secret1")

		codec, err := credential.NewTokenCodec(testSecret, "")
		require.NoError(t, err)
		claims, err := codec.Verify(token)
		require.NoError(t, err)
		require.Equal(t, "admin@acme.io", claims.Email)
		require.Equal(t, "acme", claims.OrganizationName)
		require.NotEmpty(t, claims.OrgID)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		rec1, body1 := a.do(t, http.MethodPost, "/admin/login", map[string]string{"email": "admin@acme.io", "password": "wrong!"}, "")
		rec2, body2 := a.do(t, http.MethodPost, "/admin/login", map[string]string{"email": "nobody@acme.io", "password": "secret1"}, "")

		require.Equal(t, http.StatusUnauthorized, rec1.Code)
		require.Equal(t, http.StatusUnauthorized, rec2.Code)
		require.Equal(t, body1, body2)
	})
}

func TestAPI_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		a := newTestAPI(t, nil)

		rec, body := a.do(t, http.MethodGet, "/health", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, map[string]any{"status": "ok", "db": "ok"}, body)
	})

	t.Run("database unreachable", func(t *testing.T) {
		a := newTestAPI(t, failingPinger{})

		rec, body := a.do(t, http.MethodGet, "/health", nil, "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "unavailable", body["db"])
	})
}

func TestAPI_Routing(t *testing.T) {
	a := newTestAPI(t, nil)

	t.Run("unknown route uses the error envelope", func(t *testing.T) {
		rec, body := a.do(t, http.MethodGet, "/nope", nil, "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "not_found", errorCode(t, body))
	})

	t.Run("wrong method", func(t *testing.T) {
		rec, _ := a.do(t, http.MethodGet, "/org/create", nil, "")
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

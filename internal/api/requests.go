package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wolfeidau/orgtenant/internal/apperror"
	"github.com/wolfeidau/orgtenant/internal/tenant"
)

const maxBodyBytes = 1 << 20

// CreateOrganizationRequest is the body of POST /org/create.
type CreateOrganizationRequest struct {
	OrganizationName string `json:"organization_name" validate:"required,orgname"`
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=6"`
}

// UpdateOrganizationRequest is the body of PUT /org/update.
// Omitted optional fields are left unchanged.
type UpdateOrganizationRequest struct {
	OrganizationName    string `json:"organization_name" validate:"required,orgname"`
	NewOrganizationName string `json:"new_organization_name,omitempty" validate:"omitempty,orgname,nefield=OrganizationName"`
	Email               string `json:"email,omitempty" validate:"omitempty,email"`
	Password            string `json:"password,omitempty" validate:"omitempty,min=6"`
}

func (req *CreateOrganizationRequest) normalize() {
	req.OrganizationName = strings.TrimSpace(req.OrganizationName)
}

func (req *UpdateOrganizationRequest) normalize() {
	req.OrganizationName = strings.TrimSpace(req.OrganizationName)
	req.NewOrganizationName = strings.TrimSpace(req.NewOrganizationName)
}

// LoginRequest is the body of POST /admin/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HealthResponse reports service and database readiness.
type HealthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
}

// FieldError describes one request validation failure.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// normalizer is implemented by requests that clean up fields before validation.
type normalizer interface {
	normalize()
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("orgname", func(fl validator.FieldLevel) bool {
		return tenant.ValidateOrganizationName(fl.Field().String()) == nil
	}); err != nil {
		panic(fmt.Sprintf("failed to register orgname validation: %v", err))
	}

	return v
}

// decodeJSON reads a JSON body into dst and validates it.
// Malformed bodies and validation failures both surface as validation errors.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		msg := "malformed JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		return apperror.Validation([]FieldError{{Loc: []string{"body"}, Msg: msg, Type: "json_invalid"}})
	}

	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}

	return s.validateStruct(dst)
}

func (s *Server) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Internal(err, "failed to validate request")
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{
			Loc:  []string{"body", fe.Field()},
			Msg:  fieldMessage(fe),
			Type: fe.Tag(),
		})
	}

	return apperror.Validation(details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "orgname":
		return "must be 2-64 characters of letters, digits, '-' or '_'"
	case "nefield":
		return "new_organization_name must be different from organization_name"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// queryParam returns a required, whitespace trimmed query parameter.
func queryParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return "", apperror.Validation([]FieldError{{Loc: []string{"query", name}, Msg: "field required", Type: "required"}})
	}
	return value, nil
}

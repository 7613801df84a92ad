package api

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestNewValidator_orgname(t *testing.T) {
	var v *validator.Validate
	require.NotPanics(t, func() { v = newValidator() })

	tests := []struct {
		name    string
		orgName string
		valid   bool
	}{
		{name: "letters and digits", orgName: "acme2", valid: true},
		{name: "dash and underscore", orgName: "acme_co-eu", valid: true},
		{name: "too short", orgName: "a", valid: false},
		{name: "too long", orgName: strings.Repeat("a", 65), valid: false},
		{name: "space", orgName: "acme co", valid: false},
		{name: "dot", orgName: "acme.io", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(&CreateOrganizationRequest{
				OrganizationName: tt.orgName,
				Email:            "admin@acme.io",
				Password:         "secret1",
			})
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
		})
	}
}

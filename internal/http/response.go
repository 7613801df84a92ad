package http

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/orgtenant/internal/apperror"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    apperror.Code `json:"code"`
	Message string        `json:"message"`
	Details any           `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to write response body")
	}
}

// WriteError renders err in the uniform error envelope.
// Internal errors are logged with their cause and reach the client only as
// a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.As(err)

	payload := errorPayload{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}

	if appErr.Code == apperror.CodeInternal {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		payload.Message = apperror.InternalMessage
		payload.Details = nil
	}

	WriteJSON(w, r, appErr.Code.HTTPStatus(), errorBody{Error: payload})
}

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/task-manager-be/internal/auth"
	"github.com/isdelr/task-manager-be/internal/errs"
	"github.com/isdelr/task-manager-be/internal/models"
	"github.com/isdelr/task-manager-be/internal/services"
	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError answers with the error's JSON body. Failures that are not the
// client's fault are logged with the request id; their details never leave
// the process.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errs.HTTPStatus(err) >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	errs.Write(w, err)
}

// decodeFields reads a JSON object body without binding it to a struct so
// the service can reject unknown keys.
func decodeFields(r *http.Request) (services.Fields, error) {
	var fields services.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return services.Fields{}, nil
		}
		return nil, errs.Validation("invalid request body")
	}
	if fields == nil {
		fields = services.Fields{}
	}
	return fields, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errs.Validation("invalid request body")
	}
	return nil
}

// currentUser returns the user attached by the authenticator. Only routes
// behind auth.Authenticator.Middleware call it.
func currentUser(r *http.Request) models.User {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

package errs

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", Validation("name is required"), http.StatusBadRequest, CodeValidation},
		{"credentials", InvalidCredentials(), http.StatusBadRequest, CodeInvalidCredentials},
		{"conflict", Conflict("email already registered"), http.StatusBadRequest, CodeConflict},
		{"unauthenticated", Unauthenticated(), http.StatusUnauthorized, CodeUnauthenticated},
		{"not found", NotFound("task"), http.StatusNotFound, CodeNotFound},
		{"internal", Internal("query", errors.New("disk I/O error")), http.StatusInternalServerError, CodeInternal},
		{"plain", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
		{"wrapped", fmt.Errorf("handler: %w", NotFound("task")), http.StatusNotFound, CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.code, Code(tt.err))
		})
	}
}

func TestSentinels(t *testing.T) {
	assert.ErrorIs(t, NotFound("task"), ErrNotFound)
	assert.ErrorIs(t, Validation("x"), ErrValidation)
	assert.ErrorIs(t, Unauthenticated(), ErrUnauthenticated)
	assert.ErrorIs(t, Conflict("x"), ErrConflict)
	assert.ErrorIs(t, InvalidCredentials(), ErrInvalidCredentials)
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "task not found", PublicMessage(NotFound("task")))
	assert.Equal(t, "invalid updates: location", PublicMessage(Validation("invalid updates: %s", "location")))
	assert.Equal(t, "internal server error", PublicMessage(Internal("insert user", errors.New("database is locked"))))
	assert.Equal(t, "internal server error", PublicMessage(errors.New("raw")))
}

func TestInternal_KeepsExistingCode(t *testing.T) {
	err := Internal("get task", NotFound("task"))
	assert.Equal(t, CodeNotFound, Code(err))
}

type brokenWriter struct {
	header http.Header
	status int
}

func (w *brokenWriter) Header() http.Header       { return w.header }
func (w *brokenWriter) WriteHeader(status int)    { w.status = status }
func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWrite_LogsEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	w := &brokenWriter{header: http.Header{}}
	Write(w, NotFound("task"))

	assert.Equal(t, http.StatusNotFound, w.status)
	assert.Equal(t, "application/json", w.header.Get("Content-Type"))
	assert.Contains(t, buf.String(), "Failed to encode error response")
	assert.Contains(t, buf.String(), "connection reset")
	assert.Contains(t, buf.String(), CodeNotFound)
}

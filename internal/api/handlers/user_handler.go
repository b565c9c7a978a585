package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/task-manager-be/internal/auth"
	"github.com/isdelr/task-manager-be/internal/avatar"
	"github.com/isdelr/task-manager-be/internal/errs"
	"github.com/isdelr/task-manager-be/internal/metrics"
	"github.com/isdelr/task-manager-be/internal/services"
	"github.com/rs/zerolog/log"
)

// Room for multipart boundaries and headers on top of the file itself.
const multipartOverhead = 64 << 10

// FeedCloser closes the live task feeds of revoked sessions.
type FeedCloser interface {
	CloseSession(ownerID, token string)
	CloseOwner(ownerID string)
}

// UserHandler handles HTTP requests for accounts and sessions.
type UserHandler struct {
	service services.UserServiceProvider
	metrics metrics.Recorder
	feeds   FeedCloser
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider, recorder metrics.Recorder, feeds FeedCloser) *UserHandler {
	return &UserHandler{service: service, metrics: recorder, feeds: feeds}
}

// SignupPayload defines the structure for signup requests.
type SignupPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup creates an account and answers with its first session.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload SignupPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.service.Signup(r.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.RecordSignup()
	log.Info().Str("user_id", session.User.ID).Msg("User signed up")

	writeJSON(w, http.StatusCreated, session)
}

// Login appends a new session for valid credentials.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errs.Code(err) == errs.CodeInvalidCredentials {
			h.metrics.RecordLogin(metrics.LoginInvalidCredentials)
		} else {
			h.metrics.RecordLogin(metrics.LoginError)
		}
		writeError(w, r, err)
		return
	}
	h.metrics.RecordLogin(metrics.LoginSuccess)

	writeJSON(w, http.StatusOK, session)
}

// Logout revokes the token the request was made with.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	token, _ := auth.TokenFromContext(r.Context())

	n, err := h.service.Logout(r.Context(), user.ID, token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.SessionsRevoked("logout", n)
	h.feeds.CloseSession(user.ID, token)
	w.WriteHeader(http.StatusOK)
}

// LogoutAll revokes every session of the caller.
func (h *UserHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	n, err := h.service.LogoutAll(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.SessionsRevoked("logout_all", n)
	h.feeds.CloseOwner(user.ID)
	w.WriteHeader(http.StatusOK)
}

// SelfOnly lets a /users/{id} request through only when {id} is the caller.
// Any other id answers 404, the same as an id that does not exist.
func SelfOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != currentUser(r).ID {
			writeError(w, r, errs.NotFound("user"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetMe returns the caller's profile.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

// UpdateMe applies a partial profile update.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), currentUser(r).ID, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteMe deletes the caller's account and all of their tasks.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.DeleteUser(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.feeds.CloseOwner(user.ID)
	log.Info().Str("user_id", user.ID).Msg("User deleted")
	writeJSON(w, http.StatusOK, user)
}

// UploadAvatar stores the image sent in the multipart field "avatar".
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, avatar.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(avatar.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, errs.Validation("file must be at most %d bytes", avatar.MaxUploadBytes))
			return
		}
		writeError(w, r, errs.Validation("please upload an image"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, r, errs.Validation("please upload an image"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, avatar.MaxUploadBytes+1))
	if err != nil {
		writeError(w, r, errs.Internal("read upload", err))
		return
	}

	if err := h.service.SetAvatar(r.Context(), currentUser(r).ID, header.Filename, data); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DeleteAvatar clears the caller's avatar.
func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveAvatar(r.Context(), currentUser(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetAvatar serves a user's avatar as PNG. It needs no session.
func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.GetAvatar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", avatar.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write avatar")
	}
}

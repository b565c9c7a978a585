package auth

import (
	"context"
	"net/http"
	"regexp"

	"github.com/isdelr/task-manager-be/internal/errs"
	"github.com/isdelr/task-manager-be/internal/models"
	"github.com/rs/zerolog/log"
)

// SessionStore is what the authenticator needs from the credential store.
type SessionStore interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
	HasSession(ctx context.Context, userID, token string) (bool, error)
}

type contextKey string

const (
	userKey  = contextKey("user")
	tokenKey = contextKey("token")
)

var bearerTokenRE = regexp.MustCompile(`^Bearer ([^\s]+)$`)

// Authenticator gates protected routes behind a live session token.
type Authenticator struct {
	tokens   *TokenIssuer
	sessions SessionStore
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(tokens *TokenIssuer, sessions SessionStore) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions}
}

// Middleware rejects the request with 401 unless it carries a bearer token
// that verifies and is still in the user's session list. On success the
// user and the raw token are stored in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, token, ok := a.authenticate(r)
		if !ok {
			errs.Write(w, errs.Unauthenticated())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), user, token)))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (models.User, string, bool) {
	ctx := r.Context()

	groups := bearerTokenRE.FindStringSubmatch(r.Header.Get("Authorization"))
	if len(groups) == 0 {
		return models.User{}, "", false
	}
	token := groups[1]

	userID, err := a.tokens.Verify(token)
	if err != nil {
		log.Debug().Err(err).Msg("Rejected session token")
		return models.User{}, "", false
	}

	user, err := a.sessions.GetUserByID(ctx, userID)
	if err != nil {
		if errs.Code(err) != errs.CodeNotFound {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to load user for session")
		}
		return models.User{}, "", false
	}

	// A token that verifies but was logged out is no longer listed.
	active, err := a.sessions.HasSession(ctx, userID, token)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to check session list")
		return models.User{}, "", false
	}
	if !active {
		return models.User{}, "", false
	}
	return user, token, true
}

// UserFromContext returns the authenticated user stored by Middleware.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

// TokenFromContext returns the raw token of the current request.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok && token != ""
}

// WithSession stores user and token the way Middleware does.
// Useful for tests of handlers behind the authenticator.
func WithSession(ctx context.Context, user models.User, token string) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, tokenKey, token)
}

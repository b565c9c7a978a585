package auth

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/isdelr/task-manager-be/internal/errs"
	"github.com/isdelr/task-manager-be/internal/models"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	first, err := h.Hash("Testing123")
	require.NoError(t, err)
	second, err := h.Hash("Testing123")
	require.NoError(t, err)

	assert.NotEqual(t, "Testing123", first)
	assert.NotEqual(t, first, second, "hashes must be salted")
	assert.True(t, h.Verify("Testing123", first))
	assert.True(t, h.Verify("Testing123", second))
	assert.False(t, h.Verify("Testing124", first))
	assert.False(t, h.Verify("Testing123", "not-a-hash"))
}

func TestBcryptHasher_LongPasswords(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	prefix := strings.Repeat("x", 80)

	hash, err := h.Hash(prefix + "-first")
	require.NoError(t, err)

	assert.True(t, h.Verify(prefix+"-first", hash))
	assert.False(t, h.Verify(prefix+"-other", hash), "bytes past 72 must still count")
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
	}{
		{"Testing22342342", true},
		{"seven77", true},
		{"tesing", false},
		{"      abc      ", false},
		{"myPassword123", false},
		{"PASSWORD!!", false},
		{"ääää", false},
		{"日本語", false},
		{"äöüäöüä", true},
		{"  日本語の秘密です  ", true},
		{strings.Repeat("a", 200), true},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, errs.CodeValidation, errs.Code(err))
		})
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", 0)

	first, err := issuer.Issue("user-1")
	require.NoError(t, err)
	second, err := issuer.Issue("user-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "each login gets its own token")

	for _, tok := range []string{first, second} {
		userID, err := issuer.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)
	}
}

func TestTokenIssuer_RejectsForeignSignature(t *testing.T) {
	tok, err := NewTokenIssuer("other-secret", 0).Issue("user-1")
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", 0).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsMalformed(t *testing.T) {
	_, err := NewTokenIssuer("secret", 0).Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", 0).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_Expiry(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	start := time.Now()
	issuer.now = func() time.Time { return start }

	tok, err := issuer.Issue("user-1")
	require.NoError(t, err)

	_, err = issuer.Verify(tok)
	require.NoError(t, err)

	issuer.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, err = issuer.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

type fakeSessions struct {
	users  map[string]models.User
	tokens map[string][]string
}

func (f *fakeSessions) GetUserByID(_ context.Context, id string) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, errs.NotFound("user")
	}
	return u, nil
}

func (f *fakeSessions) HasSession(_ context.Context, userID, token string) (bool, error) {
	for _, t := range f.tokens[userID] {
		if t == token {
			return true, nil
		}
	}
	return false, nil
}

func TestMiddleware(t *testing.T) {
	issuer := NewTokenIssuer("secret", 0)
	active, err := issuer.Issue("u1")
	require.NoError(t, err)
	revoked, err := issuer.Issue("u1")
	require.NoError(t, err)
	orphan, err := issuer.Issue("deleted-user")
	require.NoError(t, err)

	store := &fakeSessions{
		users:  map[string]models.User{"u1": {ID: "u1", Name: "Jess"}},
		tokens: map[string][]string{"u1": {active}, "deleted-user": {orphan}},
	}

	var calls uint32
	protected := NewAuthenticator(issuer, store).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint32(&calls, 1)
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		token, ok := TokenFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, active, token)
		w.WriteHeader(http.StatusOK)
	}))

	unauthorized := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic " + active},
		{"garbage token", "Bearer abc123"},
		{"logged out token", "Bearer " + revoked},
		{"unknown user", "Bearer " + orphan},
	}
	for _, tt := range unauthorized {
		t.Run(tt.name, func(t *testing.T) {
			req := apitest.Handler(protected).Get("/users/me")
			if tt.header != "" {
				req = req.Header("Authorization", tt.header)
			}
			req.Expect(t).
				Status(http.StatusUnauthorized).
				Body(`{"code":"UNAUTHENTICATED","message":"please authenticate"}`).
				End()
		})
	}
	assert.Zero(t, atomic.LoadUint32(&calls), "no downstream call on failure")

	apitest.Handler(protected).
		Get("/users/me").
		Header("Authorization", "Bearer "+active).
		Expect(t).
		Status(http.StatusOK).
		End()
	assert.Equal(t, uint32(1), atomic.LoadUint32(&calls))
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/task-manager-be/internal/auth"
	"github.com/isdelr/task-manager-be/internal/avatar"
	"github.com/isdelr/task-manager-be/internal/database"
	"github.com/isdelr/task-manager-be/internal/errs"
	"github.com/isdelr/task-manager-be/internal/models"
	"github.com/rs/zerolog/log"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Signup(ctx context.Context, name, email, password string) (models.Session, error)
	Login(ctx context.Context, email, password string) (models.Session, error)
	Logout(ctx context.Context, userID, token string) (int64, error)
	LogoutAll(ctx context.Context, userID string) (int64, error)
	HasSession(ctx context.Context, userID, token string) (bool, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
	UpdateUser(ctx context.Context, id string, fields Fields) (models.User, error)
	DeleteUser(ctx context.Context, id string) (models.User, error)
	SetAvatar(ctx context.Context, id, filename string, data []byte) error
	GetAvatar(ctx context.Context, id string) ([]byte, error)
	RemoveAvatar(ctx context.Context, id string) error
	PruneSessions(ctx context.Context, issuedBefore time.Time) (int64, error)
}

// UserService provides business logic for accounts and their sessions.
type UserService struct {
	db          *sql.DB
	hasher      auth.PasswordHasher
	tokens      *auth.TokenIssuer
	avatars     avatar.Store
	maxSessions int
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService creates a new UserService. maxSessions caps the session
// list of a user; zero leaves it unbounded.
func NewUserService(db *sql.DB, hasher auth.PasswordHasher, tokens *auth.TokenIssuer, avatars avatar.Store, maxSessions int) *UserService {
	return &UserService{
		db:          db,
		hasher:      hasher,
		tokens:      tokens,
		avatars:     avatars,
		maxSessions: maxSessions,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

const userColumns = "id, name, email, password_hash, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Signup creates the account and its first session in one transaction.
func (s *UserService) Signup(ctx context.Context, name, email, password string) (models.Session, error) {
	name, err := normalizeName(name)
	if err != nil {
		return models.Session{}, err
	}
	email, err = normalizeEmail(email)
	if err != nil {
		return models.Session{}, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return models.Session{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.Session{}, err
	}

	now := s.now()
	user := models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return models.Session{}, errs.Internal("issue token", err)
	}

	err = database.WithTx(ctx, s.db, func(ctx context.Context, tx database.DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, name, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return errs.Conflict("email is already in use")
			}
			return errs.Internal("insert user", err)
		}
		return s.appendSession(ctx, tx, user.ID, token)
	})
	if err != nil {
		return models.Session{}, err
	}

	user.PasswordHash = ""
	return models.Session{User: user, Token: token}, nil
}

// Login checks the credentials and appends a new session. The session is
// committed before Login returns.
func (s *UserService) Login(ctx context.Context, email, password string) (models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		// Spend the same time as a real comparison so unknown emails
		// cannot be told apart by latency.
		s.hasher.Verify(password, s.dummy())
		return models.Session{}, errs.InvalidCredentials()
	}
	if err != nil {
		return models.Session{}, errs.Internal("load user by email", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return models.Session{}, errs.InvalidCredentials()
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return models.Session{}, errs.Internal("issue token", err)
	}
	err = database.WithTx(ctx, s.db, func(ctx context.Context, tx database.DBTX) error {
		return s.appendSession(ctx, tx, user.ID, token)
	})
	if err != nil {
		return models.Session{}, err
	}

	user.PasswordHash = ""
	return models.Session{User: user, Token: token}, nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			log.Error().Err(err).Msg("Failed to compute dummy password hash")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// appendSession adds token to the end of the user's session list and, when
// a cap is set, drops the oldest entries beyond it.
func (s *UserService) appendSession(ctx context.Context, tx database.DBTX, userID, token string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO user_tokens (user_id, token, created_at) VALUES (?, ?, ?)`,
		userID, token, s.now())
	if err != nil {
		return errs.Internal("insert session", err)
	}
	if s.maxSessions <= 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM user_tokens
		WHERE user_id = ? AND seq NOT IN (
			SELECT seq FROM user_tokens WHERE user_id = ? ORDER BY seq DESC LIMIT ?
		)`, userID, userID, s.maxSessions)
	if err != nil {
		return errs.Internal("trim sessions", err)
	}
	return nil
}

// Logout removes exactly one session of the user.
func (s *UserService) Logout(ctx context.Context, userID, token string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ? AND token = ?`, userID, token)
	if err != nil {
		return 0, errs.Internal("delete session", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// LogoutAll clears the user's session list.
func (s *UserService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return 0, errs.Internal("delete sessions", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// HasSession reports whether token is still in the user's session list.
func (s *UserService) HasSession(ctx context.Context, userID, token string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_tokens WHERE user_id = ? AND token = ?)`,
		userID, token).Scan(&exists)
	if err != nil {
		return false, errs.Internal("check session", err)
	}
	return exists, nil
}

// PruneSessions deletes every session issued before the given time.
func (s *UserService) PruneSessions(ctx context.Context, issuedBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE created_at < ?`, issuedBefore.UTC())
	if err != nil {
		return 0, errs.Internal("prune sessions", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// GetUserByID retrieves a single user by their ID, without the password hash.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, errs.NotFound("user")
	}
	if err != nil {
		return models.User{}, errs.Internal("load user", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateUser applies a partial update. Only name, email and password may be
// set; every value is validated before the single UPDATE runs, and the
// password is hashed only when it is part of the update.
func (s *UserService) UpdateUser(ctx context.Context, id string, fields Fields) (models.User, error) {
	if err := fields.checkAllowed("name", "email", "password"); err != nil {
		return models.User{}, err
	}

	var (
		sets []string
		args []any
	)
	if fields.has("name") {
		name, err := fields.stringValue("name")
		if err != nil {
			return models.User{}, err
		}
		if name, err = normalizeName(name); err != nil {
			return models.User{}, err
		}
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if fields.has("email") {
		email, err := fields.stringValue("email")
		if err != nil {
			return models.User{}, err
		}
		if email, err = normalizeEmail(email); err != nil {
			return models.User{}, err
		}
		sets = append(sets, "email = ?")
		args = append(args, email)
	}
	if fields.has("password") {
		password, err := fields.stringValue("password")
		if err != nil {
			return models.User{}, err
		}
		if err := auth.ValidatePassword(password); err != nil {
			return models.User{}, err
		}
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return models.User{}, err
		}
		sets = append(sets, "password_hash = ?")
		args = append(args, hash)
	}

	if len(sets) == 0 {
		return s.GetUserByID(ctx, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, s.now(), id)
	res, err := s.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, errs.Conflict("email is already in use")
		}
		return models.User{}, errs.Internal("update user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.User{}, errs.NotFound("user")
	}
	return s.GetUserByID(ctx, id)
}

// DeleteUser removes the account together with its tasks and sessions in
// one transaction. An externally stored avatar is removed after commit.
func (s *UserService) DeleteUser(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx database.DBTX) error {
		var err error
		user, err = scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("user")
		}
		if err != nil {
			return errs.Internal("load user", err)
		}

		for _, stmt := range []string{
			`DELETE FROM tasks WHERE owner_id = ?`,
			`DELETE FROM user_tokens WHERE user_id = ?`,
			`DELETE FROM users WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return errs.Internal("delete user", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.User{}, err
	}

	if err := s.avatars.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Str("user_id", id).Msg("Failed to remove avatar of deleted user")
	}

	user.PasswordHash = ""
	return user, nil
}

// SetAvatar validates, resizes and stores a new avatar for the user.
func (s *UserService) SetAvatar(ctx context.Context, id, filename string, data []byte) error {
	normalized, err := avatar.Normalize(filename, data)
	if err != nil {
		return err
	}
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return err
	}
	return s.avatars.Put(ctx, id, normalized)
}

// GetAvatar returns the PNG avatar of the user.
func (s *UserService) GetAvatar(ctx context.Context, id string) ([]byte, error) {
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return nil, err
	}
	return s.avatars.Get(ctx, id)
}

// RemoveAvatar clears the user's avatar.
func (s *UserService) RemoveAvatar(ctx context.Context, id string) error {
	return s.avatars.Delete(ctx, id)
}

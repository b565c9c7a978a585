package avatar

import (
	"context"
	"database/sql"
	"errors"

	"github.com/isdelr/task-manager-be/internal/errs"
)

// SQLStore keeps avatars in the users.avatar column.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Put(ctx context.Context, userID string, data []byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET avatar = ? WHERE id = ?`, data, userID)
	if err != nil {
		return errs.Internal("store avatar", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NotFound("user")
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, userID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT avatar FROM users WHERE id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(data) == 0) {
		return nil, errs.NotFound("avatar")
	}
	if err != nil {
		return nil, errs.Internal("load avatar", err)
	}
	return data, nil
}

func (s *SQLStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET avatar = NULL WHERE id = ?`, userID); err != nil {
		return errs.Internal("delete avatar", err)
	}
	return nil
}

package pgshipments

import (
	"context"

	"github.com/BearBump/TrackView/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx, `
SELECT id::text, email, password_hash, created_at
FROM users
WHERE lower(email) = lower($1)
`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return &u, nil
}

func (s *Storage) GetDriver(ctx context.Context, userID string) (*models.Driver, error) {
	var d models.Driver
	var displayName *string
	err := s.pool.QueryRow(ctx, `
SELECT user_id::text, display_name
FROM drivers
WHERE user_id = $1::uuid
`, userID).Scan(&d.UserID, &displayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select driver")
	}
	d.DisplayName = displayName
	return &d, nil
}

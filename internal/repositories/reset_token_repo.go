package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/BradenHooton/tresor/internal/database"
	"github.com/BradenHooton/tresor/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResetTokenRepository struct {
	pool *pgxpool.Pool
}

func NewResetTokenRepository(db *database.DB) *ResetTokenRepository {
	return &ResetTokenRepository{pool: db.Pool}
}

// ReplaceForUser upserts the user's single reset token row. Requesting a
// reset twice leaves only the newest token valid.
func (r *ResetTokenRepository) ReplaceForUser(ctx context.Context, token *models.PasswordResetToken) (*models.PasswordResetToken, error) {
	token.ID = uuid.New().String()
	token.CreatedAt = time.Now()

	query := `
		INSERT INTO password_reset_tokens (id, user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET id = EXCLUDED.id, token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
	`

	if _, err := r.pool.Exec(ctx, query,
		token.ID, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt,
	); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return token, nil
}

// GetByToken returns a live token row. Expired rows are deleted on sight
// rather than waiting for the background sweep.
func (r *ResetTokenRepository) GetByToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at
		FROM password_reset_tokens WHERE token = $1
	`

	var t models.PasswordResetToken
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if t.IsExpired() {
		_, _ = r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE id = $1`, t.ID)
		return nil, models.ErrInvalidOrExpiredCode
	}

	return &t, nil
}

// Consume deletes a live token, returning its row. The DELETE ...
// RETURNING makes consumption single-use under concurrency.
func (r *ResetTokenRepository) Consume(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	query := `
		DELETE FROM password_reset_tokens
		WHERE token = $1 AND expires_at > NOW()
		RETURNING id, user_id, token, expires_at, created_at
	`

	var t models.PasswordResetToken
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		mapped := database.MapPostgresError(err)
		if errors.Is(mapped, models.ErrNotFound) {
			return nil, models.ErrInvalidOrExpiredCode
		}
		return nil, mapped
	}

	return &t, nil
}

// DeleteExpired purges tokens past their expiry.
func (r *ResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM password_reset_tokens WHERE expires_at <= NOW()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

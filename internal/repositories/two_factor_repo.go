package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/tresor/internal/database"
	"github.com/BradenHooton/tresor/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TwoFactorRepository struct {
	pool *pgxpool.Pool
}

func NewTwoFactorRepository(db *database.DB) *TwoFactorRepository {
	return &TwoFactorRepository{pool: db.Pool}
}

func (r *TwoFactorRepository) GetByUserID(ctx context.Context, userID string) (*models.TwoFactorAuth, error) {
	query := `
		SELECT id, user_id, secret, enabled, created_at, updated_at
		FROM two_factor_auth WHERE user_id = $1
	`

	var tfa models.TwoFactorAuth
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&tfa.ID, &tfa.UserID, &tfa.Secret, &tfa.Enabled,
		&tfa.CreatedAt, &tfa.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &tfa, nil
}

// Upsert stores a (new) TOTP secret for the user. Re-running setup before
// enabling replaces the pending secret.
func (r *TwoFactorRepository) Upsert(ctx context.Context, tfa *models.TwoFactorAuth) (*models.TwoFactorAuth, error) {
	tfa.ID = uuid.New().String()

	now := time.Now()
	tfa.CreatedAt = now
	tfa.UpdatedAt = now

	query := `
		INSERT INTO two_factor_auth (id, user_id, secret, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET secret = EXCLUDED.secret, enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.pool.Exec(ctx, query,
		tfa.ID, tfa.UserID, tfa.Secret, tfa.Enabled, tfa.CreatedAt, tfa.UpdatedAt,
	); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return tfa, nil
}

// SetEnabled flips the enrollment flag once possession is proven.
func (r *TwoFactorRepository) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	query := `
		UPDATE two_factor_auth SET enabled = $1, updated_at = NOW()
		WHERE user_id = $2
	`

	result, err := r.pool.Exec(ctx, query, enabled, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *TwoFactorRepository) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM two_factor_auth WHERE user_id = $1`

	result, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

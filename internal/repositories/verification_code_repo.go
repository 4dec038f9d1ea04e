package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/tresor/internal/database"
	"github.com/BradenHooton/tresor/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VerificationCodeRepository struct {
	pool *pgxpool.Pool
}

func NewVerificationCodeRepository(db *database.DB) *VerificationCodeRepository {
	return &VerificationCodeRepository{pool: db.Pool}
}

// Create stores a fresh code and invalidates any older unused codes for
// the same user, so only the most recently issued code can succeed.
func (r *VerificationCodeRepository) Create(ctx context.Context, code *models.VerificationCode) (*models.VerificationCode, error) {
	code.ID = uuid.New().String()
	code.CreatedAt = time.Now()

	invalidate := `UPDATE verification_codes SET used = TRUE WHERE user_id = $1 AND used = FALSE`
	if _, err := r.pool.Exec(ctx, invalidate, code.UserID); err != nil {
		return nil, database.MapPostgresError(err)
	}

	query := `
		INSERT INTO verification_codes (id, user_id, code, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
	`

	if _, err := r.pool.Exec(ctx, query,
		code.ID, code.UserID, code.Code, code.ExpiresAt, code.CreatedAt,
	); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return code, nil
}

// Consume atomically marks a matching live code as used. The single
// UPDATE is the race guard: two concurrent submissions of the same code
// cannot both see RowsAffected == 1.
func (r *VerificationCodeRepository) Consume(ctx context.Context, userID, code string) error {
	query := `
		UPDATE verification_codes
		SET used = TRUE
		WHERE user_id = $1 AND code = $2 AND used = FALSE AND expires_at > NOW()
	`

	result, err := r.pool.Exec(ctx, query, userID, code)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrInvalidOrExpiredCode
	}
	return nil
}

// DeleteExpired purges rows past their expiry. Run periodically; lookups
// never match expired rows regardless.
func (r *VerificationCodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM verification_codes WHERE expires_at <= NOW()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/tresor/internal/database"
	"github.com/BradenHooton/tresor/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SecretRepository struct {
	pool *pgxpool.Pool
}

func NewSecretRepository(db *database.DB) *SecretRepository {
	return &SecretRepository{pool: db.Pool}
}

const secretColumns = `id, user_id, content, version, created_at, updated_at`

func scanSecretRow(scanner rowScanner) (*models.Secret, error) {
	var secret models.Secret

	err := scanner.Scan(
		&secret.ID, &secret.UserID, &secret.Content, &secret.Version,
		&secret.CreatedAt, &secret.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &secret, nil
}

func scanSecretRows(rows pgx.Rows) ([]*models.Secret, error) {
	defer rows.Close()

	secrets := make([]*models.Secret, 0)

	for rows.Next() {
		secret, err := scanSecretRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan secret: %w", err)
		}
		secrets = append(secrets, secret)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return secrets, nil
}

func (r *SecretRepository) GetByID(ctx context.Context, id string) (*models.Secret, error) {
	query := fmt.Sprintf(`SELECT %s FROM secrets WHERE id = $1`, secretColumns)

	return scanSecretRow(r.pool.QueryRow(ctx, query, id))
}

func (r *SecretRepository) ListByUser(ctx context.Context, userID string) ([]*models.Secret, error) {
	query := fmt.Sprintf(`SELECT %s FROM secrets WHERE user_id = $1 ORDER BY created_at DESC`, secretColumns)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query secrets: %w", err)
	}

	return scanSecretRows(rows)
}

func (r *SecretRepository) Create(ctx context.Context, secret *models.Secret) (*models.Secret, error) {
	secret.ID = uuid.New().String()
	secret.Version = 1

	now := time.Now()
	secret.CreatedAt = now
	secret.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO secrets (id, user_id, content, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s
	`, secretColumns)

	return scanSecretRow(r.pool.QueryRow(ctx, query,
		secret.ID, secret.UserID, secret.Content, secret.Version,
		secret.CreatedAt, secret.UpdatedAt,
	))
}

// Update rewrites the ciphertext with a compare-and-swap on version so a
// concurrent rewrite cannot be silently clobbered. A version mismatch
// surfaces as ErrConflict.
func (r *SecretRepository) Update(ctx context.Context, id string, content string, expectedVersion int64) (*models.Secret, error) {
	query := fmt.Sprintf(`
		UPDATE secrets SET content = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
		RETURNING %s
	`, secretColumns)

	secret, err := scanSecretRow(r.pool.QueryRow(ctx, query, content, id, expectedVersion))
	if errors.Is(err, models.ErrNotFound) {
		// Distinguish a missing row from a stale version.
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, models.ErrConflict
		}
		return nil, models.ErrNotFound
	}
	return secret, err
}

// Delete is idempotent: removing an already-absent secret is not an error.
func (r *SecretRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM secrets WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

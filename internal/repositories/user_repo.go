package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/tresor/internal/database"
	"github.com/BradenHooton/tresor/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const userColumns = `id, first_name, last_name, email, password_hash, mfa_enabled, oauth_provider, oauth_id, role, failed_attempts, locked_until, password_changed_at, created_at, updated_at`

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var oauthProvider, oauthID *string
	var lockedUntil, passwordChangedAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email,
		&user.PasswordHash, &user.MFAEnabled, &oauthProvider, &oauthID,
		&user.Role, &user.FailedAttempts, &lockedUntil, &passwordChangedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if oauthProvider != nil {
		user.OAuthProvider = *oauthProvider
	}
	if oauthID != nil {
		user.OAuthID = *oauthID
	}
	user.LockedUntil = lockedUntil
	user.PasswordChangedAt = passwordChangedAt

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail matches case-insensitively; addresses are stored as entered
// but treated as one identity regardless of case.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE LOWER(email) = LOWER($1)`, userColumns)

	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByOAuth(ctx context.Context, provider, oauthID string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE oauth_provider = $1 AND oauth_id = $2`, userColumns)

	return scanUserRow(r.pool.QueryRow(ctx, query, provider, oauthID))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()
	user.Email = strings.TrimSpace(user.Email)

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = "user"
	}

	query := fmt.Sprintf(`
		INSERT INTO users (id, first_name, last_name, email, password_hash, mfa_enabled, oauth_provider, oauth_id, role, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING %s
	`, userColumns)

	var oauthProvider, oauthID *string
	if user.OAuthProvider != "" {
		oauthProvider = &user.OAuthProvider
	}
	if user.OAuthID != "" {
		oauthID = &user.OAuthID
	}

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Email,
		user.PasswordHash, user.MFAEnabled, oauthProvider, oauthID,
		user.Role, user.PasswordChangedAt, user.CreatedAt, user.UpdatedAt,
	))
}

func (r *UserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	user.UpdatedAt = time.Now()

	query := fmt.Sprintf(`
		UPDATE users SET first_name = $1, last_name = $2, mfa_enabled = $3, role = $4, updated_at = $5
		WHERE id = $6
		RETURNING %s
	`, userColumns)

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.FirstName, user.LastName, user.MFAEnabled, user.Role, user.UpdatedAt, id,
	))
}

// UpdatePassword stores a new bcrypt hash and stamps the change time.
// Callers are responsible for re-encrypting the user's secrets first.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users SET password_hash = $1, password_changed_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePasswordWithSecrets commits a new password hash and the
// re-encrypted secret contents in a single transaction. Either the hash
// and every rewritten record land together, or nothing changes.
func (r *UserRepository) UpdatePasswordWithSecrets(ctx context.Context, id, passwordHash string, contents map[string]string) error {
	return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		secretQuery := `
			UPDATE secrets SET content = $1, version = version + 1, updated_at = NOW()
			WHERE id = $2 AND user_id = $3
		`
		for secretID, content := range contents {
			result, err := tx.Exec(ctx, secretQuery, content, secretID, id)
			if err != nil {
				return database.MapPostgresError(err)
			}
			if result.RowsAffected() == 0 {
				return models.ErrConflict
			}
		}

		userQuery := `
			UPDATE users SET password_hash = $1, password_changed_at = NOW(), updated_at = NOW()
			WHERE id = $2
		`
		result, err := tx.Exec(ctx, userQuery, passwordHash, id)
		if err != nil {
			return database.MapPostgresError(err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

// LinkOAuth attaches an external identity to an existing account.
func (r *UserRepository) LinkOAuth(ctx context.Context, id, provider, oauthID string) error {
	query := `
		UPDATE users SET oauth_provider = $1, oauth_id = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, provider, oauthID, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RecordFailedAttempt bumps the counter and applies a lockout once the
// threshold is crossed. A zero threshold disables tracking entirely.
func (r *UserRepository) RecordFailedAttempt(ctx context.Context, id string, maxAttempts int, lockout time.Duration) error {
	if maxAttempts <= 0 {
		return nil
	}

	query := `
		UPDATE users
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE WHEN failed_attempts + 1 >= $2 THEN NOW() + $3 ELSE locked_until END,
		    updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, maxAttempts, lockout)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// ClearFailedAttempts resets the counter after a fully successful login.
func (r *UserRepository) ClearFailedAttempts(ctx context.Context, id string) error {
	query := `
		UPDATE users SET failed_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

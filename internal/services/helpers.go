package services

import (
	"errors"

	"github.com/BradenHooton/tresor/internal/models"
	pkgauth "github.com/BradenHooton/tresor/pkg/auth"
)

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}

// verifyPassword maps a bcrypt mismatch to the credentials sentinel.
func verifyPassword(user *models.User, password string) error {
	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return models.ErrInvalidCredentials
	}
	return nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/tresor/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum HMAC signing key size (256 bits).
const MinSecretLength = 32

var (
	// ErrTokenExpired means the token was valid but its expiry has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrSignatureInvalid means the signature does not verify.
	ErrSignatureInvalid = errors.New("token signature invalid")

	// ErrTokenInvalid covers malformed tokens and bad claims.
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenManager issues and verifies the two stateless JWT kinds: full
// session tokens and the short-lived pending marker handed out between
// password verification and the second factor.
type TokenManager struct {
	secret     []byte
	sessionTTL time.Duration
	pendingTTL time.Duration
}

// NewTokenManager creates a TokenManager. The secret comes from
// deployment configuration and must be at least 256 bits.
func NewTokenManager(secret string, sessionTTL, pendingTTL time.Duration) (*TokenManager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}

	return &TokenManager{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		pendingTTL: pendingTTL,
	}, nil
}

// IssueSession creates a signed session token carrying the user's
// identity claims.
func (tm *TokenManager) IssueSession(userID, email, role string) (string, error) {
	return tm.sign(&models.TokenClaims{
		Type:   models.TokenTypeSession,
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tm.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	})
}

// IssuePending creates the marker returned by a successful password step
// while the second factor is still outstanding. It is not a session: the
// auth middleware rejects it.
func (tm *TokenManager) IssuePending(userID, email string) (string, error) {
	return tm.sign(&models.TokenClaims{
		Type:   models.TokenTypeMFAPending,
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tm.pendingTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	})
}

func (tm *TokenManager) sign(claims *models.TokenClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (tm *TokenManager) Verify(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrSignatureInvalid
	default:
		return nil, ErrTokenInvalid
	}

	if !token.Valid || claims.Type == "" || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token types issued by the TokenManager.
const (
	TokenTypeSession    = "session"
	TokenTypeMFAPending = "mfa_pending"
)

// TokenClaims are the JWT claims carried by session and pending-MFA
// tokens. Sessions are stateless; nothing here is persisted.
type TokenClaims struct {
	Type   string `json:"typ"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

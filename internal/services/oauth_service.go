package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/tresor/internal/auth"
	"github.com/BradenHooton/tresor/internal/models"
	pkgauth "github.com/BradenHooton/tresor/pkg/auth"
	pkglogger "github.com/BradenHooton/tresor/pkg/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

const oauthProviderGoogle = "google"

// googleUserInfo is the subset of the userinfo payload we consume.
type googleUserInfo struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// OAuthService links Google identities to accounts. Linked accounts keep
// an unusable random password, so the vault stays empty until the user
// sets a real one; OAuth grants a session, never elevated trust.
type OAuthService struct {
	users       UserRepository
	tm          *auth.TokenManager
	config      *oauth2.Config
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewOAuthService(users UserRepository, tm *auth.TokenManager, clientID, clientSecret, redirectURL string, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *OAuthService {
	return &OAuthService{
		users: users,
		tm:    tm,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// AuthURL returns the consent-screen redirect for the given CSRF state.
func (s *OAuthService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// HandleCallback exchanges the authorization code, resolves the Google
// identity, and returns a session for the linked (or newly created)
// account.
func (s *OAuthService) HandleCallback(ctx context.Context, code string) (*LoginResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("oauth code exchange failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: identity provider exchange failed", models.ErrExternalService)
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, models.ErrOAuthEmailMissing
	}

	user, err := s.findOrCreate(ctx, info)
	if err != nil {
		return nil, err
	}

	sessionToken, err := s.tm.IssueSession(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthEvent(pkglogger.AuditEvent{
		EventType: "oauth_login",
		UserID:    user.ID,
		Success:   true,
	})
	return &LoginResponse{
		SessionToken: sessionToken,
		User:         toUserResponse(user),
	}, nil
}

func (s *OAuthService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := s.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo request failed", models.ErrExternalService)
	}

	resp, err := client.Do(req)
	if err != nil {
		s.logger.Error("oauth userinfo request failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: userinfo request failed", models.ErrExternalService)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("oauth userinfo unexpected status", slog.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: userinfo request failed", models.ErrExternalService)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: userinfo decode failed", models.ErrExternalService)
	}
	return &info, nil
}

// findOrCreate resolves the Google subject to an account. Matching order:
// provider subject id, then email (re-link), then create.
func (s *OAuthService) findOrCreate(ctx context.Context, info *googleUserInfo) (*models.User, error) {
	user, err := s.users.GetByOAuth(ctx, oauthProviderGoogle, info.Sub)
	if err == nil {
		return user, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	user, err = s.users.GetByEmail(ctx, info.Email)
	if err == nil {
		// Existing local account with the same verified email: link it.
		if linkErr := s.users.LinkOAuth(ctx, user.ID, oauthProviderGoogle, info.Sub); linkErr != nil {
			return nil, linkErr
		}
		user.OAuthProvider = oauthProviderGoogle
		user.OAuthID = info.Sub
		return user, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	placeholder, err := pkgauth.GeneratePlaceholderPassword()
	if err != nil {
		s.logger.Error("placeholder password generation failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	hash, err := pkgauth.HashPassword(placeholder)
	if err != nil {
		return nil, models.ErrInternalServer
	}

	firstName, lastName := info.GivenName, info.FamilyName
	if firstName == "" {
		firstName = info.Name
	}

	created, err := s.users.Create(ctx, &models.User{
		FirstName:     firstName,
		LastName:      lastName,
		Email:         info.Email,
		PasswordHash:  hash,
		OAuthProvider: oauthProviderGoogle,
		OAuthID:       info.Sub,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created via oauth",
		slog.String("user_id", created.ID),
		slog.String("email", pkglogger.SanitizedEmail(created.Email)))
	return created, nil
}

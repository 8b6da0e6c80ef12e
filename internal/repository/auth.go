package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/api"
	"github.com/AndrewKorobchuk/tsd/pkg/settings"

	"go.uber.org/zap"
)

const (
	oauthClientName  = "TSD Mobile App"
	oauthRedirectURI = "http://localhost:3000/callback"
	oauthScope       = "read write"
)

// AuthRepository drives the OAuth login flow and owns the session
type AuthRepository struct {
	settings *settings.Store
	clients  *ClientProvider
	log      *zap.Logger
}

func NewAuthRepository(store *settings.Store, clients *ClientProvider, log *zap.Logger) *AuthRepository {
	return &AuthRepository{
		settings: store,
		clients:  clients,
		log:      orNop(log),
	}
}

// RegisterOAuthClient self-registers this terminal as an OAuth client and
// persists the returned credentials.
func (r *AuthRepository) RegisterOAuthClient(ctx context.Context) (*api.OAuthClientResponse, error) {
	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}

	registered, err := client.RegisterClient(ctx, api.OAuthClientRequest{
		ClientName:   oauthClientName,
		RedirectURIs: []string{oauthRedirectURI},
		Scope:        oauthScope,
	})
	if err != nil {
		r.log.Warn("OAuth client registration failed", zap.Error(err))
		return nil, fmt.Errorf("register oauth client: %w", err)
	}

	if err := r.settings.SaveOAuthClient(registered.ClientID, registered.ClientSecret); err != nil {
		return nil, err
	}

	r.log.Info("OAuth client registered", zap.String("client_id", registered.ClientID))
	return registered, nil
}

// Login registers the OAuth client if needed, obtains a token with the
// password grant, stores it and loads the current user. When the user
// cannot be loaded the stored token is discarded again.
func (r *AuthRepository) Login(ctx context.Context, username, password string) (*model.User, error) {
	log := r.log.With(zap.String("username", username))

	if r.settings.OAuthClientID() == "" {
		if _, err := r.RegisterOAuthClient(ctx); err != nil {
			return nil, err
		}
	}

	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}

	token, err := client.PasswordToken(ctx, api.PasswordGrant{
		ClientID:     r.settings.OAuthClientID(),
		ClientSecret: r.settings.OAuthClientSecret(),
		Username:     username,
		Password:     password,
		Scope:        oauthScope,
	})
	if err != nil {
		log.Warn("Token request failed", zap.Error(err))
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := r.settings.SaveAuthData(token.AccessToken, token.RefreshToken, token.ExpiresIn); err != nil {
		return nil, err
	}

	user, err := client.Me(ctx, token.AccessToken)
	if err != nil {
		log.Warn("Loading current user failed, discarding token", zap.Error(err))
		if rollbackErr := r.settings.Logout(); rollbackErr != nil {
			err = errors.Join(err, rollbackErr)
		}
		return nil, fmt.Errorf("load current user: %w", err)
	}

	if err := r.settings.SaveUserData(settings.UserData{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}); err != nil {
		return nil, err
	}

	log.Info("User logged in", zap.Int64("user_id", user.ID))
	return user, nil
}

// CurrentUser asks the backend who the stored token belongs to
func (r *AuthRepository) CurrentUser(ctx context.Context) (*model.User, error) {
	if !r.settings.IsTokenValid() {
		return nil, ErrTokenExpired
	}

	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}
	return client.Me(ctx, r.settings.AccessToken())
}

// Logout ends the session locally. The backend is not contacted.
func (r *AuthRepository) Logout() error {
	if err := r.settings.Logout(); err != nil {
		return err
	}
	r.log.Info("User logged out")
	return nil
}

// ClearAuthData ends the session and forgets the OAuth client
func (r *AuthRepository) ClearAuthData() error {
	return r.settings.ClearAuthData()
}

func (r *AuthRepository) IsLoggedIn() bool {
	return r.settings.IsLoggedIn()
}

func (r *AuthRepository) CurrentUserData() settings.UserData {
	return r.settings.UserData()
}

// AccessToken returns the stored token, or ErrTokenExpired when it is no longer valid
func (r *AuthRepository) AccessToken() (string, error) {
	if !r.settings.IsTokenValid() {
		return "", ErrTokenExpired
	}
	return r.settings.AccessToken(), nil
}

// ResetClient makes the next call use freshly saved connection settings
func (r *AuthRepository) ResetClient() {
	r.clients.Reset()
}

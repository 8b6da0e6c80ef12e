package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/AndrewKorobchuk/tsd/internal/model"
)

// OAuthClientRequest registers a new OAuth client
type OAuthClientRequest struct {
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
	Scope        string   `json:"scope"`
}

// OAuthClientResponse is a registered OAuth client. The secret is only
// returned by the registration call.
type OAuthClientResponse struct {
	ID           int64    `json:"id"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
	Scope        string   `json:"scope"`
	IsActive     bool     `json:"is_active"`
	CreatedAt    string   `json:"created_at"`
}

// PasswordGrant holds the resource owner password credentials
type PasswordGrant struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Scope        string
}

// TokenResponse represents the response from the OAuth token endpoint
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// ClientInfo describes the OAuth client a token was issued to
type ClientInfo struct {
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name"`
	Scope      string `json:"scope"`
	IsActive   bool   `json:"is_active"`
}

// RegisterClient self-registers an OAuth client
func (c *Client) RegisterClient(ctx context.Context, in OAuthClientRequest) (*OAuthClientResponse, error) {
	var out OAuthClientResponse
	err := c.do(ctx, request{
		op:     "register_client",
		method: http.MethodPost,
		path:   "oauth/register",
		body:   in,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PasswordToken obtains an access token using the password grant
func (c *Client) PasswordToken(ctx context.Context, grant PasswordGrant) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("client_id", grant.ClientID)
	data.Set("client_secret", grant.ClientSecret)
	data.Set("username", grant.Username)
	data.Set("password", grant.Password)
	if grant.Scope != "" {
		data.Set("scope", grant.Scope)
	}

	var out TokenResponse
	err := c.do(ctx, request{
		op:     "token",
		method: http.MethodPost,
		path:   "oauth/token",
		form:   data,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user the token belongs to
func (c *Client) Me(ctx context.Context, token string) (*model.User, error) {
	var out model.User
	err := c.do(ctx, request{
		op:     "me",
		method: http.MethodGet,
		path:   "oauth/me",
		token:  token,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ClientInfo returns the OAuth client the token was issued to
func (c *Client) ClientInfo(ctx context.Context, token string) (*ClientInfo, error) {
	var out ClientInfo
	err := c.do(ctx, request{
		op:     "client_info",
		method: http.MethodGet,
		path:   "oauth/client-info",
		token:  token,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

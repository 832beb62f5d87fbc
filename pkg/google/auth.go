// Package google handles OAuth2 for the Google Workspace APIs Orion uses
// (Calendar, Gmail, People) and builds the API services from it.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/teslashibe/go-orion/internal/httpc"
	"github.com/teslashibe/go-orion/internal/log"
)

// Scopes requested from the user. Changing them requires deleting the
// stored token.
var Scopes = []string{
	"https://www.googleapis.com/auth/calendar",
	"https://mail.google.com/",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/contacts",
}

const oauthState = "orion-state"

// AuthConfig configures the OAuth client.
type AuthConfig struct {
	CredentialsPath string // OAuth client JSON downloaded from the Cloud console
	TokenPath       string // Where the user token is stored
	RedirectURL     string // Overrides the redirect URL of the credentials file
}

// Auth holds the OAuth configuration and the current user token.
type Auth struct {
	config    *oauth2.Config
	tokenPath string
	logger    *slog.Logger

	mu    sync.RWMutex
	token *oauth2.Token
}

// NewAuth reads the OAuth client from cfg.CredentialsPath and loads the
// stored token if there is one.
func NewAuth(cfg AuthConfig) (*Auth, error) {
	data, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
	}
	oauthConfig, err := googleoauth.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("google: parse credentials: %w", err)
	}
	if cfg.RedirectURL != "" {
		oauthConfig.RedirectURL = cfg.RedirectURL
	}
	return NewAuthFromConfig(oauthConfig, cfg.TokenPath), nil
}

// NewAuthFromConfig creates an Auth from an existing oauth2 config.
func NewAuthFromConfig(oauthConfig *oauth2.Config, tokenPath string) *Auth {
	a := &Auth{
		config:    oauthConfig,
		tokenPath: tokenPath,
		logger:    log.Component("google"),
	}
	if err := a.loadToken(); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("ignoring unreadable token", "path", tokenPath, "error", err)
	}
	return a
}

// IsAuthenticated reports whether a usable token is held. An expired
// token still counts when it carries a refresh token.
func (a *Auth) IsAuthenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token != nil && (a.token.Valid() || a.token.RefreshToken != "")
}

// AuthURL returns the consent URL the user must visit.
func (a *Auth) AuthURL() string {
	return a.config.AuthCodeURL(oauthState, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// CheckState validates the state parameter echoed by the callback.
func (a *Auth) CheckState(state string) error {
	if state != oauthState {
		return ErrBadState
	}
	return nil
}

// HandleCallback exchanges the authorization code and stores the token.
func (a *Auth) HandleCallback(ctx context.Context, code string) error {
	if code == "" {
		return ErrMissingCode
	}
	token, err := a.config.Exchange(httpc.OAuthContext(ctx), code)
	if err != nil {
		return fmt.Errorf("google: exchange code: %w", err)
	}
	a.setToken(token)
	if err := a.saveToken(token); err != nil {
		a.logger.Warn("failed to save token", "path", a.tokenPath, "error", err)
	}
	a.logger.Info("google account connected")
	return nil
}

// Disconnect drops the token and removes it from disk.
func (a *Auth) Disconnect() error {
	a.setToken(nil)
	if err := os.Remove(a.tokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("google: remove token: %w", err)
	}
	return nil
}

// Status describes the connection for the dashboard.
type Status struct {
	Connected bool   `json:"connected"`
	AuthURL   string `json:"auth_url,omitempty"`
}

// Status returns the current connection status.
func (a *Auth) Status() Status {
	if a.IsAuthenticated() {
		return Status{Connected: true}
	}
	return Status{AuthURL: a.AuthURL()}
}

// TokenSource returns a token source that refreshes through the shared
// HTTP client and writes refreshed tokens back to disk.
func (a *Auth) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	a.mu.RLock()
	token := a.token
	a.mu.RUnlock()
	if token == nil {
		return nil, ErrNotAuthenticated
	}
	base := a.config.TokenSource(httpc.OAuthContext(ctx), token)
	return &persistingSource{auth: a, base: base, last: token.AccessToken}, nil
}

func (a *Auth) setToken(t *oauth2.Token) {
	a.mu.Lock()
	a.token = t
	a.mu.Unlock()
}

func (a *Auth) loadToken() error {
	data, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}
	a.setToken(&token)
	return nil
}

func (a *Auth) saveToken(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("google: no token to save")
	}
	if err := os.MkdirAll(filepath.Dir(a.tokenPath), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(a.tokenPath, data, 0600)
}

// persistingSource saves the token whenever the access token changes.
type persistingSource struct {
	auth *Auth
	base oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := token.AccessToken != s.last
	s.last = token.AccessToken
	s.mu.Unlock()

	if changed {
		s.auth.setToken(token)
		if err := s.auth.saveToken(token); err != nil {
			s.auth.logger.Warn("failed to persist refreshed token", "error", err)
		}
	}
	return token, nil
}

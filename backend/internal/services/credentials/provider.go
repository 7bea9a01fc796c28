// Package credentials resolves the bearer token used against the REMApp API.
package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
)

// Authenticator performs the login exchange.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// TokenStore persists a token for later runs.
type TokenStore interface {
	SaveToken(token string) error
}

// Credentials are the configured auth inputs. Any of them may be empty.
type Credentials struct {
	Token    string
	Username string
	Password string
}

// Provider hands out a token, logging in only when one is needed.
type Provider struct {
	mu     sync.Mutex
	auth   Authenticator
	store  TokenStore
	creds  Credentials
	logger *slog.Logger
}

// NewProvider creates a provider. store may be nil.
func NewProvider(auth Authenticator, store TokenStore, creds Credentials, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{auth: auth, store: store, creds: creds, logger: logger}
}

// Token returns the token currently held, possibly empty.
func (p *Provider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creds.Token
}

// CanLogin reports whether a username and password are configured.
func (p *Provider) CanLogin() bool {
	return p.creds.Username != "" && p.creds.Password != ""
}

// Resolve returns the configured token unchanged. Without one it logs in when
// a username and password are available. Having neither is not an error here:
// the public list endpoint works without auth.
func (p *Provider) Resolve(ctx context.Context) (string, error) {
	if token := p.Token(); token != "" {
		return token, nil
	}
	if !p.CanLogin() {
		return "", nil
	}
	return p.login(ctx)
}

// Ensure is Resolve for endpoints that answered 401 or 403.
func (p *Provider) Ensure(ctx context.Context) (string, error) {
	token, err := p.Resolve(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", domain.ErrAuthConfiguration
	}
	return token, nil
}

// Renew discards the held token and logs in again.
func (p *Provider) Renew(ctx context.Context) (string, error) {
	if !p.CanLogin() {
		return "", domain.ErrAuthConfiguration
	}
	return p.login(ctx)
}

func (p *Provider) login(ctx context.Context) (string, error) {
	p.logger.Info("logging in", "username", p.creds.Username)

	token, err := p.auth.Login(ctx, p.creds.Username, p.creds.Password)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	p.mu.Lock()
	p.creds.Token = token
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.SaveToken(token); err != nil {
			return "", fmt.Errorf("persist token: %w", err)
		}
	}
	return token, nil
}

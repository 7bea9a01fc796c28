// backend/internal/scraping/collectors/remapp/lister.go
package remapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
)

// PageClient fetches one list page. token may be empty.
type PageClient interface {
	FetchPage(ctx context.Context, page int, token string) (domain.Page, error)
}

// TokenSource hands out bearer tokens.
type TokenSource interface {
	Token() string
	Ensure(ctx context.Context) (string, error)
	Renew(ctx context.Context) (string, error)
}

// Lister walks the public project list.
type Lister struct {
	client PageClient
	tokens TokenSource
	logger *slog.Logger

	// authRequired is set once the list endpoint has rejected an
	// anonymous request; later pages go straight out with the token.
	authRequired bool
}

// NewLister creates a list fetcher.
func NewLister(client PageClient, tokens TokenSource, logger *slog.Logger) *Lister {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Lister{client: client, tokens: tokens, logger: logger}
}

// FetchPage requests one page. The list is public, so the first request is
// anonymous; a 401 or 403 gets one retry with a token from the TokenSource.
func (l *Lister) FetchPage(ctx context.Context, page int) (domain.Page, error) {
	token := ""
	if l.authRequired {
		token = l.tokens.Token()
	}

	result, err := l.client.FetchPage(ctx, page, token)
	if err == nil || l.authRequired || !domain.IsAuthFailure(err) {
		return result, err
	}

	l.logger.Info("list endpoint requires auth", "page", page, "status", domain.StatusCode(err))
	token, tokenErr := l.tokens.Ensure(ctx)
	if tokenErr != nil {
		return domain.Page{}, errors.Join(tokenErr, err)
	}
	l.authRequired = true

	result, err = l.client.FetchPage(ctx, page, token)
	if err != nil {
		return domain.Page{}, fmt.Errorf("page %d with token: %w", page, err)
	}
	return result, nil
}

// FetchAll reads every page starting at 1. It stops at the first empty page
// or once the page count reported by the API has been read.
func (l *Lister) FetchAll(ctx context.Context) ([]domain.Record, error) {
	var all []domain.Record
	for page := 1; ; page++ {
		result, err := l.FetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(result.Projects) == 0 {
			break
		}
		all = append(all, result.Projects...)
		l.logger.Debug("fetched list page", "page", page, "total_pages", result.TotalPages, "projects", len(all))

		if result.IsLast() {
			break
		}
	}
	return all, nil
}

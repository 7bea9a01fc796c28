// backend/internal/scraping/collectors/remapp/detail.go
package remapp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
)

const (
	// DefaultMaxRetries is the rate-limit attempt budget per detail.
	DefaultMaxRetries = 5
	// DefaultBackoff is the first rate-limit wait; it doubles per attempt.
	DefaultBackoff = 5 * time.Second
)

// DetailClient issues a single detail request.
type DetailClient interface {
	FetchDetail(ctx context.Context, ref domain.ProjectRef, token string) (any, error)
}

// RetryPolicy bounds rate-limit retries.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DetailFetcher fetches project details, backing off on 429.
type DetailFetcher struct {
	client DetailClient
	policy RetryPolicy
	sleep  Sleeper
	logger *slog.Logger
}

// NewDetailFetcher creates a detail fetcher. A nil sleep uses Sleep.
func NewDetailFetcher(client DetailClient, policy RetryPolicy, sleep Sleeper, logger *slog.Logger) *DetailFetcher {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = DefaultMaxRetries
	}
	if policy.Backoff < 0 {
		policy.Backoff = 0
	}
	if sleep == nil {
		sleep = Sleep
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DetailFetcher{client: client, policy: policy, sleep: sleep, logger: logger}
}

// Fetch returns the raw detail response for ref.
//
// A 429 waits Backoff*2^attempt and tries again, up to MaxRetries attempts,
// then fails with domain.ErrRateLimitExceeded. Any other error, auth failures
// included, is returned as is for the caller to handle.
func (f *DetailFetcher) Fetch(ctx context.Context, ref domain.ProjectRef, token string) (any, error) {
	if !ref.Valid() {
		return nil, domain.ErrInvalidRequest
	}

	for attempt := 0; attempt < f.policy.MaxRetries; attempt++ {
		payload, err := f.fetchOnce(ctx, ref, token)
		if err == nil {
			return payload, nil
		}
		if !domain.IsRateLimited(err) {
			return nil, err
		}
		if attempt == f.policy.MaxRetries-1 {
			break
		}

		wait := f.policy.Backoff * time.Duration(1<<attempt)
		f.logger.Warn("rate limited, backing off",
			"project", ref.String(),
			"attempt", attempt+1,
			"max_retries", f.policy.MaxRetries,
			"backoff", wait)
		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("detail %s: %w", ref, domain.ErrRateLimitExceeded)
}

// fetchOnce requests by id when there is one. A 422 on an id request is
// retried once by slug alone when the ref has a slug.
func (f *DetailFetcher) fetchOnce(ctx context.Context, ref domain.ProjectRef, token string) (any, error) {
	payload, err := f.client.FetchDetail(ctx, ref, token)
	if err == nil || !ref.HasID || ref.Slug == "" || !domain.IsUnprocessable(err) {
		return payload, err
	}

	f.logger.Debug("id lookup unprocessable, retrying by slug", "project", ref.String())
	return f.client.FetchDetail(ctx, domain.ProjectRef{Slug: ref.Slug}, token)
}

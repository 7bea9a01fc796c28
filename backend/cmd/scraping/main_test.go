package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
)

func TestFatalMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing credentials", fmt.Errorf("list phase: %w", domain.ErrAuthConfiguration), "authentication required"},
		{"rejected token", &domain.HTTPError{StatusCode: 403, URL: "u"}, "rejected our credentials"},
		{"rate limited", fmt.Errorf("detail phase: %w", domain.ErrRateLimitExceeded), "rate limit"},
		{"interrupted", fmt.Errorf("detail phase: %w", context.Canceled), "interrupted"},
		{"other", errors.New("disk full"), "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, fatalMessage(tt.err), tt.want)
		})
	}
}

func TestRootCmdFlags(t *testing.T) {
	cmd := rootCmd()
	for _, name := range []string{"incremental", "use-local-list", "rehydrate", "output-dir"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

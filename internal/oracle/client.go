// Package oracle calls an external reasoning service to judge whether an
// incoming transaction and a batch of candidate records describe the same
// real-world purchase. The service is treated as fallible: every failure
// mode degrades to a no-correlation verdict, never to an error.
package oracle

import (
	"context"
	"time"
)

// Client defines the interface for oracle providers. Implementations return
// the raw completion text; parsing is centralized in the gateway so that the
// defensive fallbacks behave identically across providers.
type Client interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Config holds configuration for the oracle gateway.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	RateLimit   int // requests per minute
	CacheTTL    time.Duration
}

package oracle

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/quiltmoney/quilt/internal/common"
	"github.com/quiltmoney/quilt/internal/model"
)

// Gateway batches correlation judgments through an oracle client. It is
// read-only: it calls out and parses, it never touches the store.
type Gateway struct {
	client    Client
	logger    *slog.Logger
	limiter   *rate.Limiter
	cache     *gocache.Cache
	timeout   time.Duration
	retryOpts common.RetryOptions
}

// NewGateway creates a gateway backed by the configured provider.
func NewGateway(cfg Config, logger *slog.Logger) (*Gateway, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}
	return NewGatewayWithClient(client, cfg, logger), nil
}

// NewGatewayWithClient creates a gateway around an existing client. Used
// directly by tests to inject doubles.
func NewGatewayWithClient(client Client, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	requestsPerMinute := cfg.RateLimit
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 15 * time.Minute
	}

	retryOpts := common.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Gateway{
		client:    client,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
		cache:     gocache.New(cacheTTL, 5*time.Minute),
		timeout:   timeout,
		retryOpts: retryOpts,
	}
}

// Judge returns one verdict per candidate, in candidate order. It never
// returns an error: timeouts, transport failures, and malformed output all
// degrade to the no-correlation default so that the worst case is "no merge
// performed", never inconsistent data.
func (g *Gateway) Judge(ctx context.Context, incoming model.Transaction, candidates []model.Transaction) []model.Verdict {
	if len(candidates) == 0 {
		return nil
	}

	key := judgmentKey(incoming, candidates)
	if cached, found := g.cache.Get(key); found {
		if verdicts, ok := cached.([]model.Verdict); ok {
			g.logger.Debug("cache hit for judgment",
				"owner", incoming.Owner,
				"candidate_count", len(candidates))
			return verdicts
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		g.logger.Warn("rate limiter interrupted, substituting default verdicts", "error", err)
		return defaultVerdicts(candidates)
	}

	prompt := buildJudgePrompt(incoming, candidates)

	var verdicts []model.Verdict
	err := common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		content, err := g.client.Complete(callCtx, judgeSystemPrompt, prompt)
		if err != nil {
			g.logger.Warn("oracle judgment attempt failed",
				"error", err,
				"owner", incoming.Owner)
			return &common.RetryableError{Err: err, Retryable: true}
		}

		parsed, parseErr := parseVerdicts(content, candidates)
		if parseErr != nil {
			g.logger.Warn("oracle returned unparsable output",
				"error", parseErr,
				"owner", incoming.Owner)
			return &common.RetryableError{Err: parseErr, Retryable: true}
		}

		verdicts = parsed
		return nil
	}, g.retryOpts)

	if err != nil {
		g.logger.Warn("oracle judgment failed, substituting default verdicts",
			"error", err,
			"owner", incoming.Owner,
			"candidate_count", len(candidates))
		return defaultVerdicts(candidates)
	}

	g.cache.Set(key, verdicts, gocache.DefaultExpiration)

	g.logger.Debug("oracle judgment complete",
		"owner", incoming.Owner,
		"candidate_count", len(candidates))

	return verdicts
}

func defaultVerdicts(candidates []model.Transaction) []model.Verdict {
	verdicts := make([]model.Verdict, len(candidates))
	for i, candidate := range candidates {
		verdicts[i] = model.DefaultVerdict(candidate.ID)
	}
	return verdicts
}

// judgmentKey identifies a judged pair set. Revisions participate so that a
// candidate updated by a merge is re-judged instead of served stale.
func judgmentKey(incoming model.Transaction, candidates []model.Transaction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%s:%s:%s:%d",
		incoming.Owner,
		incoming.Merchant,
		incoming.Amount.String(),
		incoming.OccurredAt.UTC().Format(time.RFC3339),
		len(incoming.Sources))
	for _, candidate := range candidates {
		fmt.Fprintf(&sb, "|%s:%d", candidate.ID, candidate.Revision)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("%x", sum)
}

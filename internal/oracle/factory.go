package oracle

import (
	"fmt"
	"strings"

	"github.com/quiltmoney/quilt/internal/common"
)

// NewClient creates an oracle client based on the provided configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported oracle provider %q", common.ErrInvalidConfig, cfg.Provider)
	}
}

package generator

import (
	"context"
	"fmt"

	"github.com/jaam8/lingua_bot/pkg/openai"
	"github.com/jaam8/lingua_bot/pkg/retry"
	"go.uber.org/zap"
)

// New picks the generator named by cfg.Provider. client may be nil for "gemini".
func New(ctx context.Context, cfg Config, client *openai.Client, rc retry.Config, l *zap.Logger) (Generator, error) {
	switch cfg.Provider {
	case "openai", "":
		if client == nil {
			return nil, fmt.Errorf("generator: openai provider needs OPENAI_API_KEY")
		}
		return NewOpenAI(client, cfg, l), nil
	case "gemini":
		return NewGenAI(ctx, cfg, rc, l)
	}
	return nil, fmt.Errorf("generator: unknown provider %q", cfg.Provider)
}

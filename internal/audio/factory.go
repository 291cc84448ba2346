package audio

import (
	"context"
	"fmt"

	"github.com/jaam8/lingua_bot/pkg/openai"
	"github.com/jaam8/lingua_bot/pkg/retry"
	"go.uber.org/zap"
)

// New picks the renderer named by cfg.Provider.
func New(ctx context.Context, cfg Config, client *openai.Client, geminiKey string, rc retry.Config, l *zap.Logger) (Renderer, error) {
	switch cfg.Provider {
	case "openai", "":
		if client == nil {
			return nil, fmt.Errorf("audio: openai provider needs OPENAI_API_KEY")
		}
		return NewOpenAISpeech(client, cfg, l), nil
	case "gemini":
		return NewGenAISpeech(ctx, geminiKey, cfg, rc, l)
	}
	return nil, fmt.Errorf("audio: unknown provider %q", cfg.Provider)
}

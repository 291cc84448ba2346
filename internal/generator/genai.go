package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/jaam8/lingua_bot/pkg/retry"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GenAIGenerator generates content with Google's Gemini API.
type GenAIGenerator struct {
	client      *genai.Client
	model       string
	timeout     time.Duration
	temperature float32
	retry       retry.Config
	l           *zap.Logger
}

func NewGenAI(ctx context.Context, cfg Config, rc retry.Config, l *zap.Logger) (*GenAIGenerator, error) {
	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("generator: GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: failed to create GenAI client: %w", err)
	}
	return &GenAIGenerator{
		client:      client,
		model:       cfg.GeminiModel,
		timeout:     cfg.Timeout,
		temperature: float32(cfg.Temperature),
		retry:       rc,
		l:           l,
	}, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, prompt *Prompt, vars map[string]string) (string, error) {
	text, err := prompt.Render(vars)
	if err != nil {
		return "", err
	}
	g.l.Debug("generating content",
		zap.String("prompt", prompt.Name()),
		zap.String("model", g.model),
		zap.Any("vars", vars))
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()
	out, err := retry.Do(ctx, g.retry, g.l, "genai "+prompt.Name(), func(ctx context.Context) (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(text), &genai.GenerateContentConfig{
			Temperature: genai.Ptr(g.temperature),
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	})
	if err != nil {
		return "", fmt.Errorf("generator: %s: %w: %w", prompt.Name(), models.ErrGenerationFailure, err)
	}
	return checkOutput(prompt, out)
}

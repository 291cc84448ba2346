package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/jaam8/lingua_bot/pkg/openai"
	"go.uber.org/zap"
)

type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	temperature float64
	l           *zap.Logger
}

func NewOpenAI(client *openai.Client, cfg Config, l *zap.Logger) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:      client,
		model:       cfg.OpenAIModel,
		timeout:     cfg.Timeout,
		temperature: cfg.Temperature,
		l:           l,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt *Prompt, vars map[string]string) (string, error) {
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
	out, err := g.client.ChatCompletion(ctx, g.model, g.temperature, text)
	if err != nil {
		return "", fmt.Errorf("generator: %s: %w: %w", prompt.Name(), models.ErrGenerationFailure, err)
	}
	return checkOutput(prompt, out)
}

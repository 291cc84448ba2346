package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/jaam8/lingua_bot/pkg/openai"
	"go.uber.org/zap"
)

// OpenAISpeech renders mp3 with the OpenAI speech endpoint. The endpoint detects
// the language from the text.
type OpenAISpeech struct {
	client *openai.Client
	cfg    Config
	l      *zap.Logger
}

func NewOpenAISpeech(client *openai.Client, cfg Config, l *zap.Logger) *OpenAISpeech {
	return &OpenAISpeech{
		client: client,
		cfg:    cfg,
		l:      l,
	}
}

func (s *OpenAISpeech) Render(ctx context.Context, text, languageCode string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("audio: empty text: %w", models.ErrRenderFailure)
	}
	data, err := s.client.Speech(ctx, s.cfg.Model, s.cfg.Voice, "mp3", text)
	if err != nil {
		return "", fmt.Errorf("audio: speech request: %w: %w", models.ErrRenderFailure, err)
	}
	path, err := writeFile(s.cfg.Dir, ".mp3", data)
	if err != nil {
		return "", err
	}
	s.l.Debug("audio rendered",
		zap.String("path", path),
		zap.String("language", languageCode),
		zap.Int("bytes", len(data)))
	return path, nil
}

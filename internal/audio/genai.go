package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/jaam8/lingua_bot/pkg/retry"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Gemini speech models answer with raw 16-bit mono PCM at 24 kHz.
const (
	pcmSampleRate    = 24000
	pcmBitsPerSample = 16
	pcmChannels      = 1
)

type GenAISpeech struct {
	client *genai.Client
	cfg    Config
	retry  retry.Config
	l      *zap.Logger
}

func NewGenAISpeech(ctx context.Context, apiKey string, cfg Config, rc retry.Config, l *zap.Logger) (*GenAISpeech, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("audio: GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("audio: failed to create GenAI client: %w", err)
	}
	return &GenAISpeech{
		client: client,
		cfg:    cfg,
		retry:  rc,
		l:      l,
	}, nil
}

func (s *GenAISpeech) Render(ctx context.Context, text, languageCode string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("audio: empty text: %w", models.ErrRenderFailure)
	}
	pcm, err := retry.Do(ctx, s.retry, s.l, "genai speech", func(ctx context.Context) ([]byte, error) {
		resp, err := s.client.Models.GenerateContent(ctx, s.cfg.GeminiModel, genai.Text(text), &genai.GenerateContentConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genai.SpeechConfig{
				LanguageCode: languageTag(languageCode),
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: s.cfg.GeminiVoice},
				},
			},
		})
		if err != nil {
			return nil, err
		}
		return inlineAudio(resp)
	})
	if err != nil {
		return "", fmt.Errorf("audio: speech request: %w: %w", models.ErrRenderFailure, err)
	}
	path, err := writeFile(s.cfg.Dir, ".wav", wavFromPCM(pcm))
	if err != nil {
		return "", err
	}
	s.l.Debug("audio rendered",
		zap.String("path", path),
		zap.String("language", languageTag(languageCode)),
		zap.Int("bytes", len(pcm)))
	return path, nil
}

func inlineAudio(resp *genai.GenerateContentResponse) ([]byte, error) {
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return p.InlineData.Data, nil
			}
		}
	}
	return nil, retry.Permanent(fmt.Errorf("audio: response has no audio data"))
}

// wavFromPCM prefixes raw PCM with a canonical 44-byte RIFF header.
func wavFromPCM(pcm []byte) []byte {
	var buf bytes.Buffer
	byteRate := pcmSampleRate * pcmChannels * pcmBitsPerSample / 8
	blockAlign := pcmChannels * pcmBitsPerSample / 8

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(pcmChannels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(pcmSampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(pcmBitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

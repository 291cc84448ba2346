// Package audio renders story text to speech files.
package audio

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaam8/lingua_bot/internal/models"
)

type Config struct {
	Provider string `yaml:"TTS_PROVIDER" env:"TTS_PROVIDER" env-default:"openai"`
	Model    string `yaml:"TTS_MODEL" env:"TTS_MODEL" env-default:"tts-1"`
	Voice    string `yaml:"TTS_VOICE" env:"TTS_VOICE" env-default:"alloy"`

	GeminiModel string `yaml:"TTS_GEMINI_MODEL" env:"TTS_GEMINI_MODEL" env-default:"gemini-2.5-flash-preview-tts"`
	GeminiVoice string `yaml:"TTS_GEMINI_VOICE" env:"TTS_GEMINI_VOICE" env-default:"Kore"`
	// Dir holds rendered files until they are sent; empty means os.TempDir().
	Dir      string `yaml:"AUDIO_DIR" env:"AUDIO_DIR"`
	Language string `yaml:"LANGUAGE" env:"LANGUAGE" env-default:"de"`
}

// Renderer writes speech for text to a new file. The caller owns the file and
// must remove it once it is sent.
type Renderer interface {
	Render(ctx context.Context, text, languageCode string) (string, error)
}

// ContentType guesses the MIME type from the file extension.
func ContentType(path string) string {
	switch ext := filepath.Ext(path); ext {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}

// writeFile stores data as story_<timestamp>_<random><ext> under dir.
func writeFile(dir, ext string, data []byte) (string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("audio: create dir: %w: %w", models.ErrRenderFailure, err)
		}
	}
	f, err := os.CreateTemp(dir, "story_"+time.Now().Format("20060102_150405")+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("audio: create file: %w: %w", models.ErrRenderFailure, err)
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("audio: write file: %w: %w", models.ErrRenderFailure, err)
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("audio: close file: %w: %w", models.ErrRenderFailure, err)
	}
	return f.Name(), nil
}

// languageTag expands a bare language code such as "de" to "de-DE".
func languageTag(code string) string {
	code = strings.TrimSpace(code)
	if len(code) == 2 {
		return strings.ToLower(code) + "-" + strings.ToUpper(code)
	}
	return code
}

package audio

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/jaam8/lingua_bot/pkg/openai"
	"github.com/jaam8/lingua_bot/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWavFromPCM(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}

	wav := wavFromPCM(pcm)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint32(pcmSampleRate), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, pcm, wav[44:])
}

func TestLanguageTag(t *testing.T) {
	assert.Equal(t, "de-DE", languageTag("de"))
	assert.Equal(t, "de-AT", languageTag("de-AT"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", ContentType("/tmp/story.mp3"))
	assert.True(t, strings.HasPrefix(ContentType("/tmp/story.wav"), "audio/"))
}

func TestOpenAISpeechRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		_, _ = w.Write([]byte("ID3fake"))
	}))
	t.Cleanup(srv.Close)
	client, err := openai.New(openai.Config{APIKey: "sk-test", BaseURL: srv.URL},
		retry.Config{MaxTries: 1, InitialInterval: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	dir := t.TempDir()
	r := NewOpenAISpeech(client, Config{Model: "tts-1", Voice: "alloy", Dir: dir}, zap.NewNop())

	path, err := r.Render(context.Background(), "Ein Mann übt jeden Tag.", "de")

	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "story_"))
	assert.Equal(t, ".mp3", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID3fake", string(data))
}

func TestOpenAISpeechRenderEmptyText(t *testing.T) {
	r := NewOpenAISpeech(nil, Config{}, zap.NewNop())

	_, err := r.Render(context.Background(), "  ", "de")

	assert.ErrorIs(t, err, models.ErrRenderFailure)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "espeak"}, nil, "", retry.Default(), zap.NewNop())
	assert.Error(t, err)
}

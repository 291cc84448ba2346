package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAudioKey(t *testing.T) {
	day := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "audio/2026-10-18/story_1.mp3", AudioKey(day, "/tmp/lingua/story_1.mp3"))
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{Region: "eu-central-1"}.Enabled())
	assert.True(t, Config{Region: "eu-central-1", AudioBucket: "lingua-audio"}.Enabled())
}

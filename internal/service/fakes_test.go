package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jaam8/lingua_bot/internal/generator"
	"github.com/jaam8/lingua_bot/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	story    *models.StoryRecord
	err      error
	gets     int
	inserted []models.StoryRecord
	entered  chan struct{}
	gate     chan struct{}
}

func (f *fakeStore) GetRandomStory(ctx context.Context) (*models.StoryRecord, error) {
	f.mu.Lock()
	f.gets++
	entered, gate := f.entered, f.gate
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.story == nil {
		return nil, models.ErrStoryNotFound
	}
	s := *f.story
	return &s, nil
}

func (f *fakeStore) InsertStory(_ context.Context, story models.StoryRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.inserted = append(f.inserted, story)
	return int64(len(f.inserted)), nil
}

func (f *fakeStore) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

type fakeGenerator struct {
	mu      sync.Mutex
	outputs []string
	err     error
	calls   []map[string]string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt *generator.Prompt, vars map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, vars)
	if f.err != nil {
		return "", f.err
	}
	if len(f.outputs) == 0 {
		return "", fmt.Errorf("fake: no output for %s: %w", prompt.Name(), models.ErrGenerationFailure)
	}
	out := f.outputs[0]
	if len(f.outputs) > 1 {
		f.outputs = f.outputs[1:]
	}
	return out, nil
}

type fakeRenderer struct {
	dir   string
	err   error
	paths []string
}

func (f *fakeRenderer) Render(_ context.Context, text, languageCode string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.dir, fmt.Sprintf("story_%d.mp3", len(f.paths)))
	if err := os.WriteFile(path, []byte(languageCode+":"+text), 0o600); err != nil {
		return "", err
	}
	f.paths = append(f.paths, path)
	return path, nil
}

type sent struct {
	kind string
	text string
}

type fakeMessenger struct {
	mu        sync.Mutex
	sent      []sent
	operator  []string
	failKind  string
	nextPoll  int
	pollOpts  [][3]string
	correctIx []int
}

func (f *fakeMessenger) record(kind, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKind == kind {
		return errors.New("mattermost: 500")
	}
	f.sent = append(f.sent, sent{kind: kind, text: text})
	return nil
}

func (f *fakeMessenger) SendText(_ context.Context, text string) error {
	return f.record("text", text)
}

func (f *fakeMessenger) SendAudio(_ context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return f.record("audio", path)
}

func (f *fakeMessenger) SendPoll(_ context.Context, question string, options [3]string, correctIndex int, explanation string) (string, error) {
	if err := f.record("poll", question); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPoll++
	f.pollOpts = append(f.pollOpts, options)
	f.correctIx = append(f.correctIx, correctIndex)
	return fmt.Sprintf("post%d", f.nextPoll), nil
}

func (f *fakeMessenger) SendOperator(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.operator = append(f.operator, text)
	return nil
}

func (f *fakeMessenger) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.kind)
	}
	return out
}

type fakeLocker struct {
	err      error
	released bool
}

func (f *fakeLocker) Lock(context.Context, string, time.Duration) (func(context.Context), error) {
	if f.err != nil {
		return nil, f.err
	}
	return func(context.Context) { f.released = true }, nil
}

type fakeArchive struct {
	keys []string
}

func (f *fakeArchive) ArchiveAudio(_ context.Context, path, contentType string) (string, error) {
	f.keys = append(f.keys, filepath.Base(path)+"|"+contentType)
	return "audio/" + filepath.Base(path), nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jaam8/lingua_bot/internal/audio"
	"github.com/jaam8/lingua_bot/internal/generator"
	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/jaam8/lingua_bot/internal/parser"
	"github.com/jaam8/lingua_bot/internal/tally"
	"github.com/jaam8/lingua_bot/pkg/redis"
	"github.com/jaam8/lingua_bot/pkg/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	cycleKey      = "cycle"
	cycleLockKey  = "lingua_bot:cycle"
	noticeTimeout = 10 * time.Second
)

type StoryStore interface {
	GetRandomStory(ctx context.Context) (*models.StoryRecord, error)
	InsertStory(ctx context.Context, story models.StoryRecord) (int64, error)
}

// Messenger is the outbound side of the messaging channel.
type Messenger interface {
	SendText(ctx context.Context, text string) error
	SendAudio(ctx context.Context, path string) error
	SendPoll(ctx context.Context, question string, options [models.OptionCount]string, correctIndex int, explanation string) (string, error)
	SendOperator(ctx context.Context, text string) error
}

// Locker guards a cycle across processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error)
}

type AudioArchive interface {
	ArchiveAudio(ctx context.Context, path, contentType string) (string, error)
}

type DeliveryConfig struct {
	CycleTimeout time.Duration `yaml:"CYCLE_TIMEOUT" env:"CYCLE_TIMEOUT" env-default:"5m"`
	GrammarLevel string        `yaml:"GRAMMAR_LEVEL" env:"GRAMMAR_LEVEL" env-default:"A2"`
}

// CycleReport says what a cycle managed to send.
type CycleReport struct {
	ID            string
	StorySent     bool
	StoryPollID   string
	GrammarSent   bool
	GrammarPollID string
	Skipped       []error
}

type DeliveryService struct {
	stories  StoryStore
	gen      generator.Generator
	renderer audio.Renderer
	msg      Messenger
	tally    *tally.Tally
	l        *zap.Logger

	archive  AudioArchive
	lock     Locker
	cfg      DeliveryConfig
	language string
	retry    retry.Config

	group singleflight.Group
}

type DeliveryOption func(*DeliveryService)

func WithArchive(a AudioArchive) DeliveryOption {
	return func(s *DeliveryService) {
		s.archive = a
	}
}

func WithLocker(lk Locker) DeliveryOption {
	return func(s *DeliveryService) {
		s.lock = lk
	}
}

func WithRetry(rc retry.Config) DeliveryOption {
	return func(s *DeliveryService) {
		s.retry = rc
	}
}

func NewDeliveryService(
	stories StoryStore,
	gen generator.Generator,
	renderer audio.Renderer,
	msg Messenger,
	t *tally.Tally,
	cfg DeliveryConfig,
	language string,
	l *zap.Logger,
	opts ...DeliveryOption,
) *DeliveryService {
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 5 * time.Minute
	}
	if !models.DifficultyLevel(cfg.GrammarLevel).Valid() {
		cfg.GrammarLevel = string(models.LevelA2)
	}
	s := &DeliveryService{
		stories:  stories,
		gen:      gen,
		renderer: renderer,
		msg:      msg,
		tally:    t,
		l:        l,
		cfg:      cfg,
		language: language,
		retry:    retry.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunCycle delivers one story and one grammar topic with their polls. A call made
// while a cycle is running in this process joins it and gets the same result; a
// cycle running in another process yields models.ErrCycleInProgress.
func (s *DeliveryService) RunCycle(ctx context.Context) (*CycleReport, error) {
	v, err, shared := s.group.Do(cycleKey, func() (interface{}, error) {
		return s.runCycle(ctx)
	})
	if shared {
		s.l.Info("joined in-flight delivery cycle")
	}
	report, _ := v.(*CycleReport)
	return report, err
}

func (s *DeliveryService) runCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{ID: uuid.NewString()}
	l := s.l.With(zap.String("cycle_id", report.ID))

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	if s.lock != nil {
		release, err := s.lock.Lock(ctx, cycleLockKey, s.cfg.CycleTimeout)
		if err != nil {
			if errors.Is(err, redis.ErrLockHeld) {
				l.Warn("delivery cycle is running elsewhere")
				return report, models.ErrCycleInProgress
			}
			l.Error("failed to take cycle lock", zap.Error(err))
			return report, fmt.Errorf("service: cycle lock: %w", err)
		}
		defer release(context.WithoutCancel(ctx))
	}

	l.Info("delivery cycle started")
	start := time.Now()
	if err := s.deliverStory(ctx, l, report); err != nil {
		s.notifyOperator(ctx, l, err)
		return report, err
	}
	if err := s.deliverGrammar(ctx, l, report); err != nil {
		s.notifyOperator(ctx, l, err)
		return report, err
	}
	l.Info("story, audio, grammar and polls sent",
		zap.Bool("story_sent", report.StorySent),
		zap.String("story_poll_id", report.StoryPollID),
		zap.Bool("grammar_sent", report.GrammarSent),
		zap.String("grammar_poll_id", report.GrammarPollID),
		zap.Int("skipped", len(report.Skipped)),
		zap.Duration("took", time.Since(start)))
	return report, nil
}

func (s *DeliveryService) deliverStory(ctx context.Context, l *zap.Logger, report *CycleReport) error {
	story, err := retry.Do(ctx, s.retry, l, "get random story", func(ctx context.Context) (*models.StoryRecord, error) {
		st, err := s.stories.GetRandomStory(ctx)
		if errors.Is(err, models.ErrStoryNotFound) {
			return nil, retry.Permanent(err)
		}
		return st, err
	})
	switch {
	case errors.Is(err, models.ErrStoryNotFound):
		l.Warn("no story in storage")
		if err = s.msg.SendText(ctx, NoStoryMessage); err != nil {
			return fmt.Errorf("service: send no-story notice: %w: %w", models.ErrDeliveryFailure, err)
		}
		return nil
	case err != nil:
		l.Error("failed to get story", zap.Error(err))
		if errors.Is(err, models.ErrStorageUnavailable) {
			return fmt.Errorf("service: failed to get story: %w", err)
		}
		return fmt.Errorf("service: failed to get story: %w: %w", models.ErrStorageUnavailable, err)
	}
	l.Debug("story selected", zap.Int64("story_id", story.ID), zap.String("title", story.Title))

	if err = s.msg.SendText(ctx, StoryMessage(story)); err != nil {
		l.Error("failed to send story", zap.Error(err))
		return fmt.Errorf("service: send story: %w: %w", models.ErrDeliveryFailure, err)
	}
	report.StorySent = true

	if err = s.sendAudio(ctx, l, story.Content); err != nil {
		return err
	}

	if err = story.Validate(); err != nil {
		l.Warn("story poll skipped", zap.Int64("story_id", story.ID), zap.Error(err))
		report.Skipped = append(report.Skipped, err)
		return nil
	}
	pollID, err := s.sendQuiz(ctx, l, story.Question, story.Options, story.Correct)
	if err != nil {
		return err
	}
	report.StoryPollID = pollID
	return nil
}

func (s *DeliveryService) sendAudio(ctx context.Context, l *zap.Logger, text string) error {
	path, err := s.renderer.Render(ctx, text, s.language)
	if err != nil {
		l.Error("failed to render audio", zap.Error(err))
		if errors.Is(err, models.ErrRenderFailure) {
			return fmt.Errorf("service: render audio: %w", err)
		}
		return fmt.Errorf("service: render audio: %w: %w", models.ErrRenderFailure, err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			l.Warn("failed to remove audio file", zap.String("path", path), zap.Error(err))
		}
	}()

	if s.archive != nil {
		if key, err := s.archive.ArchiveAudio(ctx, path, audio.ContentType(path)); err != nil {
			l.Warn("failed to archive audio", zap.Error(err))
		} else {
			l.Debug("audio archived", zap.String("key", key))
		}
	}

	if err = s.msg.SendAudio(ctx, path); err != nil {
		l.Error("failed to send audio", zap.Error(err))
		return fmt.Errorf("service: send audio: %w: %w", models.ErrDeliveryFailure, err)
	}
	return nil
}

func (s *DeliveryService) deliverGrammar(ctx context.Context, l *zap.Logger, report *CycleReport) error {
	level := models.DifficultyLevel(s.cfg.GrammarLevel)
	raw, err := s.gen.Generate(ctx, generator.GrammarPrompt, generator.GrammarVars(level))
	if err != nil {
		l.Error("failed to generate grammar", zap.Error(err))
		if errors.Is(err, models.ErrGenerationFailure) {
			return fmt.Errorf("service: generate grammar: %w", err)
		}
		return fmt.Errorf("service: generate grammar: %w: %w", models.ErrGenerationFailure, err)
	}

	fields := parser.Scan(raw)
	if fields.Content == nil {
		perr := &models.ParseError{Field: "content"}
		l.Warn("grammar skipped", zap.Error(perr), zap.String("raw", raw))
		report.Skipped = append(report.Skipped, perr)
		return nil
	}
	if err = s.msg.SendText(ctx, GrammarMessage(level, *fields.Content)); err != nil {
		l.Error("failed to send grammar", zap.Error(err))
		return fmt.Errorf("service: send grammar: %w: %w", models.ErrDeliveryFailure, err)
	}
	report.GrammarSent = true

	rec, err := fields.Grammar()
	if err != nil {
		l.Warn("grammar poll skipped", zap.Error(err), zap.String("raw", raw))
		report.Skipped = append(report.Skipped, err)
		return nil
	}
	pollID, err := s.sendQuiz(ctx, l, rec.Question, rec.Options, rec.Correct)
	if err != nil {
		return err
	}
	report.GrammarPollID = pollID
	return nil
}

func (s *DeliveryService) sendQuiz(ctx context.Context, l *zap.Logger, question string, options [models.OptionCount]string, correct models.Option) (string, error) {
	pollID, err := s.msg.SendPoll(ctx, question, options, correct.Index(), Explanation(correct))
	if err != nil {
		l.Error("failed to send poll", zap.String("question", question), zap.Error(err))
		return "", fmt.Errorf("service: send poll: %w: %w", models.ErrDeliveryFailure, err)
	}
	if err = s.tally.Register(pollID, correct); err != nil {
		l.Error("failed to register poll", zap.String("poll_id", pollID), zap.Error(err))
		return pollID, nil
	}
	l.Info("poll sent", zap.String("poll_id", pollID), zap.String("correct", string(correct)))
	return pollID, nil
}

func (s *DeliveryService) notifyOperator(ctx context.Context, l *zap.Logger, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), noticeTimeout)
	defer cancel()
	if err := s.msg.SendOperator(ctx, OperatorMessage(cause)); err != nil {
		l.Error("failed to notify operator", zap.NamedError("cause", cause), zap.Error(err))
	}
}

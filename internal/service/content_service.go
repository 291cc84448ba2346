package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jaam8/lingua_bot/internal/generator"
	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/jaam8/lingua_bot/internal/parser"
	"go.uber.org/zap"
)

// ContentService fills the story table offline.
type ContentService struct {
	stories StoryStore
	gen     generator.Generator
	l       *zap.Logger

	pickTopic func() string
	pickLevel func() models.DifficultyLevel
}

func NewContentService(stories StoryStore, gen generator.Generator, l *zap.Logger) *ContentService {
	return &ContentService{
		stories:   stories,
		gen:       gen,
		l:         l,
		pickTopic: generator.RandomTopic,
		pickLevel: generator.RandomLevel,
	}
}

type PopulateReport struct {
	Inserted []int64
	Skipped  int
}

// Populate generates and stores n stories. Stories the model formats badly are
// skipped; a generation or storage failure stops the run.
func (s *ContentService) Populate(ctx context.Context, n int) (PopulateReport, error) {
	var report PopulateReport
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		id, err := s.generateOne(ctx)
		if err != nil {
			if errors.Is(err, models.ErrParse) {
				s.l.Warn("generated story skipped", zap.Int("n", i+1), zap.Error(err))
				report.Skipped++
				continue
			}
			s.l.Error("failed to populate stories", zap.Int("inserted", len(report.Inserted)), zap.Error(err))
			return report, err
		}
		report.Inserted = append(report.Inserted, id)
	}
	s.l.Info("german stories have been added to the database",
		zap.Int("inserted", len(report.Inserted)),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

func (s *ContentService) generateOne(ctx context.Context) (int64, error) {
	topic, level := s.pickTopic(), s.pickLevel()
	raw, err := s.gen.Generate(ctx, generator.StoryPrompt, generator.StoryVars(topic, level))
	if err != nil {
		return 0, fmt.Errorf("service: generate story: %w", err)
	}
	story, err := parser.ParseStory(raw, level, parser.WithBodyContinuation())
	if err != nil {
		return 0, err
	}
	story = withoutEszett(story)
	id, err := s.stories.InsertStory(ctx, story)
	if err != nil {
		return 0, fmt.Errorf("service: insert story: %w", err)
	}
	s.l.Debug("story stored",
		zap.Int64("id", id),
		zap.String("topic", topic),
		zap.String("level", string(level)),
		zap.String("title", story.Title))
	return id, nil
}

var eszett = strings.NewReplacer("ß", "ss")

// withoutEszett spells ß as ss in every text field.
func withoutEszett(story models.StoryRecord) models.StoryRecord {
	story.Title = eszett.Replace(story.Title)
	story.Content = eszett.Replace(story.Content)
	story.Question = eszett.Replace(story.Question)
	for i := range story.Options {
		story.Options[i] = eszett.Replace(story.Options[i])
	}
	return story
}

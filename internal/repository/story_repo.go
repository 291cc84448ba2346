package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaam8/lingua_bot/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type storyRow struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Title           string    `gorm:"column:title;not null"`
	Content         string    `gorm:"column:content;not null"`
	DifficultyLevel string    `gorm:"column:difficulty_level;not null"`
	CreationDate    time.Time `gorm:"column:creation_date;autoCreateTime"`
	PollQuestion    string    `gorm:"column:poll_question;not null"`
	PollOptionA     string    `gorm:"column:poll_option_a;not null"`
	PollOptionB     string    `gorm:"column:poll_option_b;not null"`
	PollOptionC     string    `gorm:"column:poll_option_c;not null"`
	CorrectOption   string    `gorm:"column:correct_option;not null"`
}

func (storyRow) TableName() string {
	return "german_stories"
}

func (r storyRow) record() models.StoryRecord {
	return models.StoryRecord{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Level:     models.DifficultyLevel(r.DifficultyLevel),
		Question:  r.PollQuestion,
		Options:   [models.OptionCount]string{r.PollOptionA, r.PollOptionB, r.PollOptionC},
		Correct:   models.Option(r.CorrectOption),
		CreatedAt: r.CreationDate,
	}
}

type StoryRepository struct {
	db *gorm.DB
	l  *zap.Logger
}

func NewStoryRepository(db *gorm.DB, l *zap.Logger) *StoryRepository {
	return &StoryRepository{
		db: db,
		l:  l,
	}
}

// Migrate creates the german_stories table when it is missing.
func (r *StoryRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&storyRow{}); err != nil {
		return fmt.Errorf("repository: migrate german_stories: %w: %w", models.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *StoryRepository) InsertStory(ctx context.Context, story models.StoryRecord) (int64, error) {
	if err := story.Validate(); err != nil {
		r.l.Debug("refusing malformed story", zap.Error(err))
		return 0, err
	}
	row := storyRow{
		Title:           story.Title,
		Content:         story.Content,
		DifficultyLevel: string(story.Level),
		PollQuestion:    story.Question,
		PollOptionA:     story.Options[0],
		PollOptionB:     story.Options[1],
		PollOptionC:     story.Options[2],
		CorrectOption:   string(story.Correct),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.l.Debug("error inserting story", zap.Error(err))
		return 0, fmt.Errorf("repository: database insert error: %w: %w", models.ErrStorageUnavailable, err)
	}
	r.l.Debug("story inserted", zap.Int64("id", row.ID), zap.String("title", row.Title))
	return row.ID, nil
}

// GetRandomStory returns models.ErrStoryNotFound when the table is empty.
func (r *StoryRepository) GetRandomStory(ctx context.Context) (*models.StoryRecord, error) {
	var rows []storyRow
	err := r.db.WithContext(ctx).Order("RANDOM()").Limit(1).Find(&rows).Error
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		r.l.Debug("failed to select story", zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w: %w", models.ErrStorageUnavailable, err)
	}
	if len(rows) == 0 {
		return nil, models.ErrStoryNotFound
	}
	story := rows[0].record()
	r.l.Debug("random story selected", zap.Int64("id", story.ID), zap.String("level", string(story.Level)))
	return &story, nil
}

func (r *StoryRepository) CountStories(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&storyRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("repository: database count error: %w: %w", models.ErrStorageUnavailable, err)
	}
	return n, nil
}

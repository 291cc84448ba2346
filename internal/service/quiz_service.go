package service

import (
	"errors"
	"fmt"

	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/jaam8/lingua_bot/internal/tally"
	"go.uber.org/zap"
)

// QuizService answers poll events on behalf of the messaging handler.
type QuizService struct {
	t *tally.Tally
	l *zap.Logger
}

func NewQuizService(t *tally.Tally, l *zap.Logger) *QuizService {
	return &QuizService{
		t: t,
		l: l,
	}
}

// Vote records an answer event. Unknown polls come back as models.ErrUnknownPoll
// and are meant to be ignored.
func (s *QuizService) Vote(event models.AnswerEvent) (models.PollSnapshot, models.Option, error) {
	selected, err := models.OptionFromIndex(event.Selected)
	if err != nil {
		return models.PollSnapshot{}, "", models.ErrOptionIsNotFound
	}
	snap, err := s.t.RecordVote(event.PollID, event.UserID, selected)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownPoll):
			return snap, "", err
		case errors.Is(err, models.ErrVoteAlreadyExists):
			return snap, "", err
		default:
			s.l.Error("failed to vote", zap.Error(err))
			return snap, "", fmt.Errorf("service: failed to vote: %w", err)
		}
	}
	correct, _ := s.t.Correct(event.PollID)
	s.l.Info("answer recorded",
		zap.String("poll_id", event.PollID),
		zap.String("user_id", event.UserID),
		zap.String("selected", string(selected)),
		zap.Int("total_votes", snap.TotalVotes),
		zap.Int("correct_votes", snap.CorrectVotes))
	return snap, correct, nil
}

func (s *QuizService) Result(pollID string) (models.PollSnapshot, error) {
	snap, ok := s.t.Snapshot(pollID)
	if !ok {
		return snap, models.ErrUnknownPoll
	}
	return snap, nil
}

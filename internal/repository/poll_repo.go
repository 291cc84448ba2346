package repository

import (
	"context"
	"fmt"
	"math"

	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/tarantool/go-tarantool"
	"go.uber.org/zap"
)

const quizPollsSpace = "quiz_polls"

// QuizPollRepository mirrors poll tallies into a tarantool space with tuples
// {poll_id, correct_answer, total_votes, correct_votes, voters}.
type QuizPollRepository struct {
	db *tarantool.Connection
	l  *zap.Logger
}

func NewQuizPollRepository(db *tarantool.Connection, l *zap.Logger) *QuizPollRepository {
	return &QuizPollRepository{
		db: db,
		l:  l,
	}
}

func (r *QuizPollRepository) SavePoll(ctx context.Context, state models.PollState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	voters := state.Voters
	if voters == nil {
		voters = []string{}
	}
	resp, err := r.db.Replace(quizPollsSpace, []interface{}{
		state.PollID,
		string(state.Correct),
		state.TotalVotes,
		state.CorrectVotes,
		voters,
	})
	if err != nil {
		r.l.Debug("error replacing poll", zap.Error(err))
		return fmt.Errorf("repository: database replace error: %w", err)
	}
	r.l.Debug("tarantool response",
		zap.Uint32("status_code", resp.Code),
		zap.Any("resp", resp.Data),
		zap.String("error", resp.Error))
	return nil
}

func (r *QuizPollRepository) ListPolls(ctx context.Context) ([]models.PollState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := r.db.Select(quizPollsSpace, "primary", 0, math.MaxUint32, tarantool.IterAll, []interface{}{})
	if err != nil {
		r.l.Debug("failed to select polls", zap.Error(err))
		return nil, fmt.Errorf("repository: database select error: %w", err)
	}
	r.l.Debug("tarantool response",
		zap.Uint32("status_code", resp.Code),
		zap.Int("tuples", len(resp.Data)),
		zap.String("error", resp.Error))

	states := make([]models.PollState, 0, len(resp.Data))
	for _, raw := range resp.Data {
		tuple, ok := raw.([]interface{})
		if !ok {
			r.l.Debug("unexpected data type", zap.Any("data", raw))
			return nil, models.ErrFailedToProcessData
		}
		state, err := pollFromTuple(tuple)
		if err != nil {
			r.l.Debug("failed to decode poll tuple", zap.Any("tuple", tuple), zap.Error(err))
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

func pollFromTuple(tuple []interface{}) (models.PollState, error) {
	var state models.PollState
	if len(tuple) < 4 {
		return state, fmt.Errorf("repository: poll tuple has %d fields: %w", len(tuple), models.ErrFailedToProcessData)
	}
	id, ok := tuple[0].(string)
	if !ok {
		return state, fmt.Errorf("repository: unexpected type for poll id: %w", models.ErrFailedToProcessData)
	}
	correct, ok := tuple[1].(string)
	if !ok {
		return state, fmt.Errorf("repository: unexpected type for correct answer: %w", models.ErrFailedToProcessData)
	}
	total, err := toInt(tuple[2])
	if err != nil {
		return state, err
	}
	correctVotes, err := toInt(tuple[3])
	if err != nil {
		return state, err
	}
	state = models.PollState{
		PollID:       id,
		Correct:      models.Option(correct),
		TotalVotes:   total,
		CorrectVotes: correctVotes,
	}
	if len(tuple) > 4 {
		votersRaw, ok := tuple[4].([]interface{})
		if !ok {
			return state, fmt.Errorf("repository: unexpected type for voters: %w", models.ErrFailedToProcessData)
		}
		for _, v := range votersRaw {
			if s, ok := v.(string); ok {
				state.Voters = append(state.Voters, s)
			}
		}
	}
	return state, nil
}

// toInt accepts the integer kinds msgpack decoding may produce.
func toInt(v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int8:
		return int(x), nil
	case int16:
		return int(x), nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case uint:
		return int(x), nil
	case uint8:
		return int(x), nil
	case uint16:
		return int(x), nil
	case uint32:
		return int(x), nil
	case uint64:
		return int(x), nil
	}
	return 0, fmt.Errorf("repository: unexpected counter type %T: %w", v, models.ErrFailedToProcessData)
}

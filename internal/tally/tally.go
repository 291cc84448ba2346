// Package tally keeps per-poll vote counts for the quiz polls this process sent.
//
// State lives in memory for the life of the process and entries are never evicted.
// A Store may mirror every change so that Restore can reload it after a restart.
// Mirror writes run on one background goroutine in the order the changes were
// made; Close flushes them.
package tally

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jaam8/lingua_bot/internal/models"
	"go.uber.org/zap"
)

// Store persists poll states outside the process.
type Store interface {
	SavePoll(ctx context.Context, state models.PollState) error
	ListPolls(ctx context.Context) ([]models.PollState, error)
}

const (
	persistTimeout = 3 * time.Second
	writeBuffer    = 256
)

type entry struct {
	state  models.PollState
	voters map[string]struct{}
}

type Tally struct {
	mu     sync.Mutex
	polls  map[string]*entry
	store  Store
	writes chan models.PollState
	done   chan struct{}
	closed bool
	l      *zap.Logger
}

type Option func(*Tally)

func WithStore(s Store) Option {
	return func(t *Tally) {
		t.store = s
	}
}

func New(l *zap.Logger, opts ...Option) *Tally {
	t := &Tally{
		polls: make(map[string]*entry),
		l:     l,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.store != nil {
		t.writes = make(chan models.PollState, writeBuffer)
		t.done = make(chan struct{})
		go t.writer()
	}
	return t
}

// Close stops the mirror writer after it saved every queued state.
func (t *Tally) Close() {
	t.mu.Lock()
	if t.writes == nil || t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.writes)
	t.mu.Unlock()
	<-t.done
}

// Register starts tracking a poll with zero votes. Registering the same id twice
// fails and leaves the existing counters untouched.
func (t *Tally) Register(pollID string, correct models.Option) error {
	if !correct.Valid() {
		return fmt.Errorf("tally: register %s: %w", pollID,
			&models.ParseError{Field: "correct_option", Reason: fmt.Sprintf("%q is not one of A, B, C", correct)})
	}
	t.mu.Lock()
	if _, ok := t.polls[pollID]; ok {
		t.mu.Unlock()
		return models.ErrPollAlreadyRegistered
	}
	e := &entry{
		state:  models.PollState{PollID: pollID, Correct: correct},
		voters: make(map[string]struct{}),
	}
	t.polls[pollID] = e
	t.persist(e.copyState())
	t.mu.Unlock()

	t.l.Debug("poll registered", zap.String("poll_id", pollID), zap.String("correct", string(correct)))
	return nil
}

// RecordAnswer counts one answer. Unknown polls are ignored and reported with ok=false.
func (t *Tally) RecordAnswer(pollID string, selected models.Option) (snap models.PollSnapshot, ok bool) {
	t.mu.Lock()
	e, ok := t.polls[pollID]
	if !ok {
		t.mu.Unlock()
		t.l.Debug("answer for unknown poll ignored", zap.String("poll_id", pollID))
		return models.PollSnapshot{}, false
	}
	e.count(selected)
	state := e.copyState()
	t.persist(state)
	t.mu.Unlock()

	return state.Snapshot(), true
}

// RecordVote is RecordAnswer with one vote per user and poll.
func (t *Tally) RecordVote(pollID, userID string, selected models.Option) (models.PollSnapshot, error) {
	t.mu.Lock()
	e, ok := t.polls[pollID]
	if !ok {
		t.mu.Unlock()
		return models.PollSnapshot{}, models.ErrUnknownPoll
	}
	if _, voted := e.voters[userID]; voted {
		t.mu.Unlock()
		t.l.Debug("vote already exist",
			zap.String("poll_id", pollID),
			zap.String("user_id", userID))
		return e.state.Snapshot(), models.ErrVoteAlreadyExists
	}
	e.voters[userID] = struct{}{}
	e.state.Voters = append(e.state.Voters, userID)
	e.count(selected)
	state := e.copyState()
	t.persist(state)
	t.mu.Unlock()

	return state.Snapshot(), nil
}

func (t *Tally) Snapshot(pollID string) (models.PollSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.polls[pollID]
	if !ok {
		return models.PollSnapshot{}, false
	}
	return e.state.Snapshot(), true
}

// Correct returns the right answer of a tracked poll.
func (t *Tally) Correct(pollID string) (models.Option, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.polls[pollID]
	if !ok {
		return "", false
	}
	return e.state.Correct, true
}

func (t *Tally) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.polls)
}

// Restore loads mirrored states. Polls already tracked in memory win.
func (t *Tally) Restore(ctx context.Context) (int, error) {
	if t.store == nil {
		return 0, nil
	}
	states, err := t.store.ListPolls(ctx)
	if err != nil {
		return 0, fmt.Errorf("tally: failed to restore polls: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	restored := 0
	for _, s := range states {
		if _, ok := t.polls[s.PollID]; ok {
			continue
		}
		if s.CorrectVotes > s.TotalVotes || !s.Correct.Valid() {
			t.l.Warn("skipping inconsistent poll state", zap.Any("state", s))
			continue
		}
		e := &entry{state: s, voters: make(map[string]struct{}, len(s.Voters))}
		for _, v := range s.Voters {
			e.voters[v] = struct{}{}
		}
		t.polls[s.PollID] = e
		restored++
	}
	t.l.Info("poll states restored", zap.Int("count", restored))
	return restored, nil
}

func (e *entry) count(selected models.Option) {
	e.state.TotalVotes++
	if selected == e.state.Correct {
		e.state.CorrectVotes++
	}
}

func (e *entry) copyState() models.PollState {
	s := e.state
	s.Voters = append([]string(nil), e.state.Voters...)
	return s
}

// persist queues state for the mirror. It runs under t.mu, so the queue holds
// states in the order they were counted. A full queue holds counting back until
// the writer catches up.
func (t *Tally) persist(state models.PollState) {
	if t.writes == nil {
		return
	}
	if t.closed {
		t.l.Warn("poll state not mirrored, tally is closed", zap.String("poll_id", state.PollID))
		return
	}
	t.writes <- state
}

// writer saves queued states one at a time; a vote must not fail because the
// mirror is down.
func (t *Tally) writer() {
	defer close(t.done)
	for state := range t.writes {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := t.store.SavePoll(ctx, state); err != nil {
			t.l.Error("failed to persist poll state",
				zap.String("poll_id", state.PollID),
				zap.Error(err))
		}
		cancel()
	}
}

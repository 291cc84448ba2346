package tally

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memStore struct {
	mu     sync.Mutex
	states map[string]models.PollState
	saves  []models.PollState
	err    error
	gate   chan struct{}
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]models.PollState)}
}

func (m *memStore) SavePoll(_ context.Context, s models.PollState) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.states[s.PollID] = s
	m.saves = append(m.saves, s)
	return nil
}

func (m *memStore) ListPolls(context.Context) ([]models.PollState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PollState, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s)
	}
	return out, m.err
}

func TestRecordAnswerScenario(t *testing.T) {
	tl := New(zap.NewNop())
	require.NoError(t, tl.Register("p1", models.OptionB))

	_, ok := tl.RecordAnswer("p1", models.OptionB)
	require.True(t, ok)
	snap, ok := tl.RecordAnswer("p1", models.OptionA)
	require.True(t, ok)

	assert.Equal(t, 2, snap.TotalVotes)
	assert.Equal(t, 1, snap.CorrectVotes)
	pct, err := snap.PercentCorrect()
	require.NoError(t, err)
	assert.InDelta(t, 50.00, pct, 1e-9)
}

func TestRecordAnswerUnknownPoll(t *testing.T) {
	tl := New(zap.NewNop())

	snap, ok := tl.RecordAnswer("unknown", models.OptionA)

	assert.False(t, ok)
	assert.Equal(t, models.PollSnapshot{}, snap)
	assert.Equal(t, 0, tl.Len())
}

func TestRecordAnswerUnknownPollLeavesOthersUntouched(t *testing.T) {
	tl := New(zap.NewNop())
	require.NoError(t, tl.Register("p1", models.OptionC))
	tl.RecordAnswer("p1", models.OptionC)

	tl.RecordAnswer("p2", models.OptionC)

	snap, ok := tl.Snapshot("p1")
	require.True(t, ok)
	assert.Equal(t, models.PollSnapshot{TotalVotes: 1, CorrectVotes: 1}, snap)
	assert.Equal(t, 1, tl.Len())
}

func TestRegisterTwiceFails(t *testing.T) {
	tl := New(zap.NewNop())
	require.NoError(t, tl.Register("p1", models.OptionA))
	tl.RecordAnswer("p1", models.OptionA)

	err := tl.Register("p1", models.OptionB)

	assert.ErrorIs(t, err, models.ErrPollAlreadyRegistered)
	correct, _ := tl.Correct("p1")
	assert.Equal(t, models.OptionA, correct)
	snap, _ := tl.Snapshot("p1")
	assert.Equal(t, 1, snap.TotalVotes)
}

func TestRegisterRejectsInvalidOption(t *testing.T) {
	tl := New(zap.NewNop())

	err := tl.Register("p1", models.Option("D"))

	assert.ErrorIs(t, err, models.ErrParse)
	assert.Equal(t, 0, tl.Len())
}

func TestCorrectVotesNeverExceedTotal(t *testing.T) {
	tl := New(zap.NewNop())
	require.NoError(t, tl.Register("p1", models.OptionA))

	answers := []models.Option{"A", "B", "A", "C", "C", "A", "B", "A"}
	for _, a := range answers {
		snap, ok := tl.RecordAnswer("p1", a)
		require.True(t, ok)
		assert.LessOrEqual(t, snap.CorrectVotes, snap.TotalVotes)
	}
	snap, _ := tl.Snapshot("p1")
	assert.Equal(t, models.PollSnapshot{TotalVotes: 8, CorrectVotes: 4}, snap)
}

func TestPercentCorrect(t *testing.T) {
	pct, err := models.PollSnapshot{TotalVotes: 4, CorrectVotes: 3}.PercentCorrect()
	require.NoError(t, err)
	assert.Equal(t, 75.0, pct)

	_, err = models.PollSnapshot{}.PercentCorrect()
	assert.ErrorIs(t, err, models.ErrDivisionUndefined)
}

func TestRecordVoteOncePerUser(t *testing.T) {
	tl := New(zap.NewNop())
	require.NoError(t, tl.Register("p1", models.OptionB))

	snap, err := tl.RecordVote("p1", "u1", models.OptionB)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.CorrectVotes)

	snap, err = tl.RecordVote("p1", "u1", models.OptionA)
	assert.ErrorIs(t, err, models.ErrVoteAlreadyExists)
	assert.Equal(t, models.PollSnapshot{TotalVotes: 1, CorrectVotes: 1}, snap)

	_, err = tl.RecordVote("p1", "u2", models.OptionA)
	require.NoError(t, err)

	_, err = tl.RecordVote("nope", "u1", models.OptionA)
	assert.ErrorIs(t, err, models.ErrUnknownPoll)
}

func TestConcurrentVotes(t *testing.T) {
	tl := New(zap.NewNop())
	require.NoError(t, tl.Register("p1", models.OptionA))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			opt := models.OptionA
			if i%2 == 1 {
				opt = models.OptionC
			}
			tl.RecordAnswer("p1", opt)
		}(i)
	}
	wg.Wait()

	snap, _ := tl.Snapshot("p1")
	assert.Equal(t, models.PollSnapshot{TotalVotes: 50, CorrectVotes: 25}, snap)
}

func TestStoreMirrorAndRestore(t *testing.T) {
	store := newMemStore()
	tl := New(zap.NewNop(), WithStore(store))
	require.NoError(t, tl.Register("p1", models.OptionC))
	_, err := tl.RecordVote("p1", "u1", models.OptionC)
	require.NoError(t, err)
	tl.Close()

	saved := store.states["p1"]
	assert.Equal(t, 1, saved.CorrectVotes)
	assert.Equal(t, []string{"u1"}, saved.Voters)

	restarted := New(zap.NewNop(), WithStore(store))
	t.Cleanup(restarted.Close)
	n, err := restarted.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = restarted.RecordVote("p1", "u1", models.OptionA)
	assert.ErrorIs(t, err, models.ErrVoteAlreadyExists)
	snap, err := restarted.RecordVote("p1", "u2", models.OptionA)
	require.NoError(t, err)
	assert.Equal(t, models.PollSnapshot{TotalVotes: 2, CorrectVotes: 1}, snap)
}

func TestRestoreSkipsInconsistentStates(t *testing.T) {
	store := newMemStore()
	store.states["bad"] = models.PollState{PollID: "bad", Correct: models.OptionA, TotalVotes: 1, CorrectVotes: 2}
	store.states["good"] = models.PollState{PollID: "good", Correct: models.OptionA, TotalVotes: 2, CorrectVotes: 1}

	tl := New(zap.NewNop(), WithStore(store))
	t.Cleanup(tl.Close)
	n, err := tl.Restore(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := tl.Snapshot("bad")
	assert.False(t, ok)
}

func TestStoreFailureDoesNotFailVote(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	tl := New(zap.NewNop(), WithStore(store))
	t.Cleanup(tl.Close)

	require.NoError(t, tl.Register("p1", models.OptionA))
	snap, ok := tl.RecordAnswer("p1", models.OptionA)

	assert.True(t, ok)
	assert.Equal(t, 1, snap.TotalVotes)

	_, err := tl.Restore(context.Background())
	assert.Error(t, err)
}

func TestSlowStoreDoesNotBlockVotes(t *testing.T) {
	store := newMemStore()
	store.gate = make(chan struct{})
	tl := New(zap.NewNop(), WithStore(store))

	voted := make(chan struct{})
	go func() {
		defer close(voted)
		assert.NoError(t, tl.Register("p1", models.OptionA))
		for i, user := range []string{"u1", "u2", "u3"} {
			selected := models.OptionA
			if i == 1 {
				selected = models.OptionB
			}
			_, err := tl.RecordVote("p1", user, selected)
			assert.NoError(t, err)
		}
	}()
	select {
	case <-voted:
	case <-time.After(time.Second):
		t.Fatal("votes waited for the mirror")
	}

	close(store.gate)
	tl.Close()

	require.Len(t, store.saves, 4)
	for i, s := range store.saves {
		assert.Equal(t, i, s.TotalVotes, "states are mirrored in counting order")
	}
	assert.Equal(t, models.PollSnapshot{TotalVotes: 3, CorrectVotes: 2}, store.states["p1"].Snapshot())
	assert.Equal(t, []string{"u1", "u2", "u3"}, store.states["p1"].Voters)
}

func TestCloseIsIdempotent(t *testing.T) {
	tl := New(zap.NewNop(), WithStore(newMemStore()))
	tl.Close()
	tl.Close()

	require.NoError(t, tl.Register("p1", models.OptionA))
	_, ok := tl.RecordAnswer("p1", models.OptionA)
	assert.True(t, ok)

	New(zap.NewNop()).Close()
}

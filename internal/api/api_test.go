package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/jaam8/lingua_bot/internal/service"
	"github.com/jaam8/lingua_bot/internal/tally"
	"github.com/mattermost/mattermost-server/v6/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	mu         sync.Mutex
	posts      []*model.Post
	ephemerals []*model.PostEphemeral
	reactions  []*model.Reaction
	uploads    []string
	postErr    error
}

func (f *fakeClient) CreatePost(post *model.Post) (*model.Post, *model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return nil, &model.Response{StatusCode: 500}, f.postErr
	}
	created := post.Clone()
	created.Id = fmt.Sprintf("post%d", len(f.posts)+1)
	f.posts = append(f.posts, created)
	return created, &model.Response{StatusCode: 201}, nil
}

func (f *fakeClient) CreatePostEphemeral(post *model.PostEphemeral) (*model.Post, *model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemerals = append(f.ephemerals, post)
	return post.Post, &model.Response{StatusCode: 201}, nil
}

func (f *fakeClient) UploadFile(data []byte, channelID string, filename string) (*model.FileUploadResponse, *model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filename)
	return &model.FileUploadResponse{FileInfos: []*model.FileInfo{{Id: "file1", Name: filename, Size: int64(len(data))}}},
		&model.Response{StatusCode: 201}, nil
}

func (f *fakeClient) SaveReaction(reaction *model.Reaction) (*model.Reaction, *model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reaction)
	return reaction, &model.Response{StatusCode: 200}, nil
}

func (f *fakeClient) CreateDirectChannel(userID1, userID2 string) (*model.Channel, *model.Response, error) {
	return &model.Channel{Id: "dm_" + userID2}, &model.Response{StatusCode: 201}, nil
}

type fakeDeliverer struct {
	err   error
	calls int
}

func (f *fakeDeliverer) RunCycle(context.Context) (*service.CycleReport, error) {
	f.calls++
	return &service.CycleReport{ID: "c1"}, f.err
}

type fakeArmer struct {
	armed bool
}

func (f *fakeArmer) Arm() (bool, error) {
	if f.armed {
		return false, nil
	}
	f.armed = true
	return true, nil
}

func (f *fakeArmer) DailyAt() string {
	return "09:00"
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    Command
		ok      bool
		wantErr error
	}{
		{name: "not for the bot", message: "hallo", ok: false},
		{name: "other command", message: "/poll vote 1 2", ok: false},
		{name: "bare command", message: "/deutsch", want: Command{Name: CmdHelp}, ok: true},
		{name: "start daily", message: "/deutsch start_daily", want: Command{Name: CmdStartDaily}, ok: true},
		{name: "story", message: "  /deutsch   story ", want: Command{Name: CmdStory}, ok: true},
		{name: "answer", message: "/deutsch answer abc b", want: Command{Name: CmdAnswer, PollID: "abc", Option: models.OptionB}, ok: true},
		{name: "answer bad option", message: "/deutsch answer abc D", ok: true, wantErr: models.ErrOptionIsNotFound},
		{name: "answer missing option", message: "/deutsch answer abc", ok: true, wantErr: errBadUsage},
		{name: "result", message: "/deutsch result abc", want: Command{Name: CmdResult, PollID: "abc"}, ok: true},
		{name: "result missing id", message: "/deutsch result", ok: true, wantErr: errBadUsage},
		{name: "unknown falls back to help", message: "/deutsch tanzen", want: Command{Name: CmdHelp}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok, err := ParseCommand(tt.message)
			assert.Equal(t, tt.ok, ok)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if ok {
				assert.Equal(t, tt.want, cmd)
			}
		})
	}
}

func TestReactionIndex(t *testing.T) {
	for i, emoji := range []string{"one", "two", "three"} {
		idx, ok := ReactionIndex(emoji)
		assert.True(t, ok)
		assert.Equal(t, i, idx)
	}
	_, ok := ReactionIndex("+1")
	assert.False(t, ok)
}

func TestPollMessage(t *testing.T) {
	msg := PollMessage("Wo ist Max?", [3]string{"Zu Hause", "Im Park", "In der Schule"})
	assert.Equal(t, "**Wo ist Max?**\n\n:one: A. Zu Hause\n:two: B. Im Park\n:three: C. In der Schule\n\n"+
		"Reagiere mit :one:, :two: oder :three:, um abzustimmen.", msg)
}

func TestChannelSendPoll(t *testing.T) {
	client := &fakeClient{}
	ch := NewChannel(client, "bot", "town", "", zap.NewNop())

	id, err := ch.SendPoll(context.Background(), "Frage?", [3]string{"a", "b", "c"}, 2, "Die richtige Antwort ist C")

	require.NoError(t, err)
	assert.Equal(t, "post1", id)
	require.Len(t, client.posts, 1)
	assert.Equal(t, "town", client.posts[0].ChannelId)
	assert.Equal(t, "Die richtige Antwort ist C", client.posts[0].GetProp(PropExplanation))
	require.Len(t, client.reactions, 3)
	for i, r := range client.reactions {
		assert.Equal(t, "bot", r.UserId)
		assert.Equal(t, "post1", r.PostId)
		assert.Equal(t, PollEmojis[i], r.EmojiName)
	}

	_, err = ch.SendPoll(context.Background(), "Frage?", [3]string{"a", "b", "c"}, 3, "")
	assert.Error(t, err)
}

func TestChannelSendAudio(t *testing.T) {
	client := &fakeClient{}
	ch := NewChannel(client, "bot", "town", "ops", zap.NewNop())
	path := filepath.Join(t.TempDir(), "story.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o600))

	require.NoError(t, ch.SendAudio(context.Background(), path))

	assert.Equal(t, []string{"story.mp3"}, client.uploads)
	require.Len(t, client.posts, 1)
	assert.Equal(t, model.StringArray{"file1"}, client.posts[0].FileIds)
}

func TestChannelSendOperatorAndErrors(t *testing.T) {
	client := &fakeClient{}
	ch := NewChannel(client, "bot", "town", "ops", zap.NewNop())

	require.NoError(t, ch.SendOperator(context.Background(), "kaputt"))
	assert.Equal(t, "ops", client.posts[0].ChannelId)

	client.postErr = errors.New("boom")
	assert.Error(t, ch.SendText(context.Background(), "hallo"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ch.SendText(ctx, "hallo"), context.Canceled)
}

func newHandler(t *testing.T) (*PollHandler, *fakeClient, *tally.Tally, *fakeDeliverer, *fakeArmer) {
	t.Helper()
	client := &fakeClient{}
	tl := tally.New(zap.NewNop())
	require.NoError(t, tl.Register("poll1", models.OptionB))
	d := &fakeDeliverer{}
	a := &fakeArmer{}
	h := New(service.NewQuizService(tl, zap.NewNop()), d, a, NewChannel(client, "bot", "town", "", zap.NewNop()), "bot", zap.NewNop())
	return h, client, tl, d, a
}

func TestHandleReactionCountsAndSendsStats(t *testing.T) {
	h, client, tl, _, _ := newHandler(t)
	ctx := context.Background()

	h.HandleReaction(ctx, &model.Reaction{UserId: "u1", PostId: "poll1", EmojiName: "two"})

	snap, ok := tl.Snapshot("poll1")
	require.True(t, ok)
	assert.Equal(t, models.PollSnapshot{TotalVotes: 1, CorrectVotes: 1}, snap)
	require.Len(t, client.posts, 1)
	assert.Equal(t, "dm_u1", client.posts[0].ChannelId)
	assert.Equal(t, "Aktuelle Umfrageergebnisse:\nGesamtstimmen: 1\nRichtige Antworten: 1\nProzent richtig: 100.00%\n\n"+
		"Die richtige Antwort ist B", client.posts[0].Message)

	h.HandleReaction(ctx, &model.Reaction{UserId: "u1", PostId: "poll1", EmojiName: "one"})
	require.Len(t, client.ephemerals, 1)
	assert.Equal(t, AlreadyVotedMessage, client.ephemerals[0].Post.Message)
	assert.Equal(t, "town", client.ephemerals[0].Post.ChannelId)
}

func TestHandleReactionIgnoresNoise(t *testing.T) {
	h, client, tl, _, _ := newHandler(t)
	ctx := context.Background()

	h.HandleReaction(ctx, &model.Reaction{UserId: "bot", PostId: "poll1", EmojiName: "one"})
	h.HandleReaction(ctx, &model.Reaction{UserId: "u1", PostId: "poll1", EmojiName: "smile"})
	h.HandleReaction(ctx, &model.Reaction{UserId: "u1", PostId: "other", EmojiName: "one"})

	snap, _ := tl.Snapshot("poll1")
	assert.Zero(t, snap.TotalVotes)
	assert.Empty(t, client.posts)
	assert.Empty(t, client.ephemerals)
	assert.Equal(t, 1, tl.Len())
}

func TestHandlePostCommands(t *testing.T) {
	h, client, _, d, a := newHandler(t)
	ctx := context.Background()
	post := func(msg string) *model.Post {
		return &model.Post{UserId: "u1", ChannelId: "town", Message: msg}
	}

	h.HandlePost(ctx, post("/deutsch answer poll1 A"))
	require.Len(t, client.posts, 1)
	assert.Contains(t, client.posts[0].Message, "Richtige Antworten: 0")

	h.HandlePost(ctx, post("/deutsch result poll1"))
	require.Len(t, client.ephemerals, 1)
	assert.Contains(t, client.ephemerals[0].Post.Message, "Gesamtstimmen: 1")

	h.HandlePost(ctx, post("/deutsch result nope"))
	assert.Equal(t, "Unbekannte Umfrage: nope", client.ephemerals[1].Post.Message)

	h.HandlePost(ctx, post("/deutsch start_daily"))
	assert.True(t, a.armed)
	assert.Contains(t, client.posts[1].Message, "09:00")
	h.HandlePost(ctx, post("/deutsch start_daily"))
	assert.Equal(t, AlreadyArmedMessage, client.ephemerals[2].Post.Message)

	h.HandlePost(ctx, post("/deutsch story"))
	h.Wait()
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, CycleStartedMessage, client.ephemerals[3].Post.Message)

	h.HandlePost(ctx, post("/deutsch"))
	assert.Equal(t, HelpMessage, client.ephemerals[4].Post.Message)

	h.HandlePost(ctx, &model.Post{UserId: "bot", Message: "/deutsch help"})
	assert.Len(t, client.ephemerals, 5)
}

func TestHandlePostStoryWhileRunningElsewhere(t *testing.T) {
	h, client, _, d, _ := newHandler(t)
	d.err = models.ErrCycleInProgress

	h.HandlePost(context.Background(), &model.Post{UserId: "u1", ChannelId: "town", Message: "/deutsch story"})
	h.Wait()

	require.Len(t, client.ephemerals, 2)
	assert.Equal(t, CycleRunningMessage, client.ephemerals[1].Post.Message)
}

func eventPayload(t *testing.T, key string, v interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return map[string]interface{}{key: string(raw)}
}

func TestDispatchReactionAdded(t *testing.T) {
	h, client, tl, _, _ := newHandler(t)
	data := eventPayload(t, "reaction", &model.Reaction{UserId: "u1", PostId: "poll1", EmojiName: "two"})

	h.dispatch(context.Background(), model.WebsocketEventReactionAdded, data)

	snap, ok := tl.Snapshot("poll1")
	require.True(t, ok)
	assert.Equal(t, models.PollSnapshot{TotalVotes: 1, CorrectVotes: 1}, snap)
	require.Len(t, client.posts, 1)
	assert.Equal(t, "dm_u1", client.posts[0].ChannelId)
	assert.Contains(t, client.posts[0].Message, "Die richtige Antwort ist B")
}

func TestDispatchPosted(t *testing.T) {
	h, client, tl, _, _ := newHandler(t)
	data := eventPayload(t, "post", &model.Post{UserId: "u1", ChannelId: "town", Message: "/deutsch answer poll1 C"})

	h.dispatch(context.Background(), model.WebsocketEventPosted, data)

	snap, ok := tl.Snapshot("poll1")
	require.True(t, ok)
	assert.Equal(t, models.PollSnapshot{TotalVotes: 1, CorrectVotes: 0}, snap)
	require.Len(t, client.posts, 1)
	assert.Equal(t, "dm_u1", client.posts[0].ChannelId)
}

func TestDispatchDropsBadPayloads(t *testing.T) {
	h, client, tl, _, _ := newHandler(t)
	ctx := context.Background()

	h.dispatch(ctx, model.WebsocketEventReactionAdded, map[string]interface{}{})
	h.dispatch(ctx, model.WebsocketEventReactionAdded, map[string]interface{}{"reaction": 42})
	h.dispatch(ctx, model.WebsocketEventReactionAdded, map[string]interface{}{"reaction": "{not json"})
	h.dispatch(ctx, model.WebsocketEventPosted, map[string]interface{}{"reaction": "{}"})
	h.dispatch(ctx, model.WebsocketEventTyping, eventPayload(t, "reaction",
		&model.Reaction{UserId: "u1", PostId: "poll1", EmojiName: "two"}))

	snap, ok := tl.Snapshot("poll1")
	require.True(t, ok)
	assert.Zero(t, snap.TotalVotes)
	assert.Empty(t, client.posts)
	assert.Empty(t, client.ephemerals)
}

package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/jaam8/lingua_bot/internal/service"
	"github.com/mattermost/mattermost-server/v6/model"
	"go.uber.org/zap"
)

const (
	AlreadyArmedMessage   = "Tägliche Inhalte sind bereits eingerichtet."
	CycleStartedMessage   = "Die Geschichte wird jetzt gesendet."
	CycleRunningMessage   = "Es läuft bereits eine Lieferung."
	AlreadyVotedMessage   = "Du hast bei dieser Umfrage bereits abgestimmt."
	UnknownPollMessage    = "Unbekannte Umfrage: %s"
	SomethingWrongMessage = "Etwas ist schiefgelaufen."
	replyTimeout          = 10 * time.Second
)

// Deliverer runs one delivery cycle.
type Deliverer interface {
	RunCycle(ctx context.Context) (*service.CycleReport, error)
}

// Armer arms the daily schedule. Arm reports false when it was armed already.
type Armer interface {
	Arm() (bool, error)
	DailyAt() string
}

type PollHandler struct {
	quiz      *service.QuizService
	delivery  Deliverer
	scheduler Armer
	ch        *Channel
	botID     string
	l         *zap.Logger

	wg sync.WaitGroup
}

func New(quiz *service.QuizService, delivery Deliverer, scheduler Armer, ch *Channel, botID string, l *zap.Logger) *PollHandler {
	return &PollHandler{
		quiz:      quiz,
		delivery:  delivery,
		scheduler: scheduler,
		ch:        ch,
		botID:     botID,
		l:         l,
	}
}

// HandleEvent dispatches one websocket event. Cycles started from a command run in
// the background; Wait blocks until they are done.
func (h *PollHandler) HandleEvent(ctx context.Context, event *model.WebSocketEvent) {
	h.dispatch(ctx, event.EventType(), event.GetData())
}

// dispatch decodes the JSON payload of a websocket event and routes it.
func (h *PollHandler) dispatch(ctx context.Context, eventType string, data map[string]interface{}) {
	switch eventType {
	case model.WebsocketEventPosted:
		post, err := decodePost(data)
		if err != nil {
			h.l.Error("error unmarshalling post", zap.Error(err))
			return
		}
		h.HandlePost(ctx, post)
	case model.WebsocketEventReactionAdded:
		reaction, err := decodeReaction(data)
		if err != nil {
			h.l.Error("error unmarshalling reaction", zap.Error(err))
			return
		}
		h.HandleReaction(ctx, reaction)
	}
}

func (h *PollHandler) Wait() {
	h.wg.Wait()
}

func (h *PollHandler) HandlePost(ctx context.Context, post *model.Post) {
	if post.UserId == h.botID {
		return
	}
	cmd, ok, err := ParseCommand(post.Message)
	if !ok {
		return
	}
	h.l.Info("new request for the bot",
		zap.String("command", cmd.Name),
		zap.String("user_id", post.UserId),
		zap.String("channel_id", post.ChannelId),
		zap.String("message", post.Message))
	if err != nil {
		h.l.Warn("bad command", zap.String("message", post.Message), zap.Error(err))
		h.reply(ctx, post, err.Error())
		return
	}

	switch cmd.Name {
	case CmdStartDaily:
		h.startDaily(ctx, post)
	case CmdStory:
		h.reply(ctx, post, CycleStartedMessage)
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.runCycle(ctx, post)
		}()
	case CmdAnswer:
		idx := cmd.Option.Index()
		h.vote(ctx, post.ChannelId, models.AnswerEvent{PollID: cmd.PollID, Selected: idx, UserID: post.UserId}, true)
	case CmdResult:
		snap, err := h.quiz.Result(cmd.PollID)
		if err != nil {
			h.reply(ctx, post, fmt.Sprintf(UnknownPollMessage, cmd.PollID))
			return
		}
		h.reply(ctx, post, service.ResultMessage(snap))
	default:
		h.reply(ctx, post, HelpMessage)
	}
}

// HandleReaction turns a :one:/:two:/:three: reaction on a quiz post into an answer.
func (h *PollHandler) HandleReaction(ctx context.Context, reaction *model.Reaction) {
	if reaction.UserId == h.botID {
		return
	}
	idx, ok := ReactionIndex(reaction.EmojiName)
	if !ok {
		return
	}
	h.vote(ctx, "", models.AnswerEvent{PollID: reaction.PostId, Selected: idx, UserID: reaction.UserId}, false)
}

// vote counts the answer and DMs the voter the stats. Unknown polls are reported
// only when the answer came from an explicit command.
func (h *PollHandler) vote(ctx context.Context, channelID string, event models.AnswerEvent, explicit bool) {
	snap, correct, err := h.quiz.Vote(event)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownPoll):
			if explicit {
				h.ephemeral(ctx, channelID, event.UserID, fmt.Sprintf(UnknownPollMessage, event.PollID))
			}
		case errors.Is(err, models.ErrVoteAlreadyExists):
			h.l.Warn("vote already exists",
				zap.String("poll_id", event.PollID),
				zap.String("user_id", event.UserID))
			h.ephemeral(ctx, channelID, event.UserID, AlreadyVotedMessage)
		case errors.Is(err, models.ErrOptionIsNotFound):
			h.ephemeral(ctx, channelID, event.UserID, err.Error())
		default:
			h.l.Error("failed to vote", zap.String("poll_id", event.PollID), zap.Error(err))
			h.ephemeral(ctx, channelID, event.UserID, SomethingWrongMessage)
		}
		return
	}
	text := service.ResultMessage(snap) + "\n\n" + service.Explanation(correct)
	err = h.send(ctx, func(ctx context.Context) error {
		return h.ch.SendDirect(ctx, event.UserID, text)
	})
	if err != nil {
		h.l.Error("failed to send poll stats", zap.String("user_id", event.UserID), zap.Error(err))
	}
}

func (h *PollHandler) startDaily(ctx context.Context, post *model.Post) {
	armed, err := h.scheduler.Arm()
	if err != nil {
		h.l.Error("failed to arm daily delivery", zap.Error(err))
		h.reply(ctx, post, SomethingWrongMessage)
		return
	}
	if !armed {
		h.reply(ctx, post, AlreadyArmedMessage)
		return
	}
	err = h.send(ctx, func(ctx context.Context) error {
		return h.ch.SendText(ctx, fmt.Sprintf(service.DailyArmedMessage, h.scheduler.DailyAt()))
	})
	if err != nil {
		h.l.Error("failed to send armed notice", zap.Error(err))
	}
}

func (h *PollHandler) runCycle(ctx context.Context, post *model.Post) {
	report, err := h.delivery.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, models.ErrCycleInProgress) {
			h.reply(ctx, post, CycleRunningMessage)
			return
		}
		h.l.Error("manual delivery cycle failed", zap.Error(err))
		return
	}
	h.l.Info("manual delivery cycle done",
		zap.String("cycle_id", report.ID),
		zap.String("user_id", post.UserId))
}

func (h *PollHandler) reply(ctx context.Context, post *model.Post, text string) {
	h.ephemeral(ctx, post.ChannelId, post.UserId, text)
}

func (h *PollHandler) ephemeral(ctx context.Context, channelID, userID, text string) {
	err := h.send(ctx, func(ctx context.Context) error {
		return h.ch.SendEphemeral(ctx, channelID, userID, text)
	})
	if err != nil {
		h.l.Error("failed to send ephemeral message", zap.String("user_id", userID), zap.Error(err))
	}
}

// send keeps replies going out while the process shuts down.
func (h *PollHandler) send(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()
	return fn(ctx)
}

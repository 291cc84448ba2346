package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/mattermost/mattermost-server/v6/model"
	"go.uber.org/zap"
)

const PropExplanation = "quiz_explanation"

// PollEmojis are the reactions a voter picks an option with, in option order.
var PollEmojis = [models.OptionCount]string{"one", "two", "three"}

// Client is the part of model.Client4 the bot talks to.
type Client interface {
	CreatePost(post *model.Post) (*model.Post, *model.Response, error)
	CreatePostEphemeral(post *model.PostEphemeral) (*model.Post, *model.Response, error)
	UploadFile(data []byte, channelId string, filename string) (*model.FileUploadResponse, *model.Response, error)
	SaveReaction(reaction *model.Reaction) (*model.Reaction, *model.Response, error)
	CreateDirectChannel(userId1, userId2 string) (*model.Channel, *model.Response, error)
}

// Channel sends bot output to one Mattermost channel.
type Channel struct {
	client            Client
	botID             string
	channelID         string
	operatorChannelID string
	l                 *zap.Logger
}

func NewChannel(client Client, botID, channelID, operatorChannelID string, l *zap.Logger) *Channel {
	if operatorChannelID == "" {
		operatorChannelID = channelID
	}
	return &Channel{
		client:            client,
		botID:             botID,
		channelID:         channelID,
		operatorChannelID: operatorChannelID,
		l:                 l,
	}
}

func (c *Channel) SendText(ctx context.Context, text string) error {
	_, err := c.post(ctx, &model.Post{ChannelId: c.channelID, Message: text})
	return err
}

func (c *Channel) SendOperator(ctx context.Context, text string) error {
	_, err := c.post(ctx, &model.Post{ChannelId: c.operatorChannelID, Message: text})
	return err
}

// SendAudio uploads the file and posts it without a caption.
func (c *Channel) SendAudio(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("api: read audio: %w", err)
	}
	upload, resp, err := c.client.UploadFile(data, c.channelID, filepath.Base(path))
	c.l.Debug("upload file",
		zap.String("channel_id", c.channelID),
		zap.String("file", filepath.Base(path)),
		zap.Int("size", len(data)),
		zap.Int("status_code", statusCode(resp)))
	if err != nil {
		return fmt.Errorf("api: upload audio: %w", err)
	}
	if upload == nil || len(upload.FileInfos) == 0 {
		return fmt.Errorf("api: upload audio: empty upload response")
	}
	ids := make(model.StringArray, 0, len(upload.FileInfos))
	for _, info := range upload.FileInfos {
		ids = append(ids, info.Id)
	}
	_, err = c.post(ctx, &model.Post{ChannelId: c.channelID, FileIds: ids})
	return err
}

// SendPoll posts the quiz and seeds the answer reactions. The post id is the poll id.
func (c *Channel) SendPoll(ctx context.Context, question string, options [models.OptionCount]string, correctIndex int, explanation string) (string, error) {
	if correctIndex < 0 || correctIndex >= models.OptionCount {
		return "", fmt.Errorf("api: correct index %d out of range", correctIndex)
	}
	post := &model.Post{ChannelId: c.channelID, Message: PollMessage(question, options)}
	post.AddProp(PropExplanation, explanation)
	created, err := c.post(ctx, post)
	if err != nil {
		return "", err
	}
	for _, emoji := range PollEmojis {
		_, resp, err := c.client.SaveReaction(&model.Reaction{UserId: c.botID, PostId: created.Id, EmojiName: emoji})
		c.l.Debug("save reaction",
			zap.String("post_id", created.Id),
			zap.String("emoji", emoji),
			zap.Int("status_code", statusCode(resp)))
		if err != nil {
			// the poll is already visible, voters can still add the reaction by hand
			c.l.Warn("failed to seed reaction", zap.String("post_id", created.Id), zap.Error(err))
		}
	}
	return created.Id, nil
}

// SendDirect opens (or reuses) the DM channel with userID and posts text there.
func (c *Channel) SendDirect(ctx context.Context, userID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dm, resp, err := c.client.CreateDirectChannel(c.botID, userID)
	c.l.Debug("direct channel",
		zap.String("user_id", userID),
		zap.Int("status_code", statusCode(resp)))
	if err != nil {
		return fmt.Errorf("api: open direct channel: %w", err)
	}
	_, err = c.post(ctx, &model.Post{ChannelId: dm.Id, Message: text})
	return err
}

// SendEphemeral shows text only to userID.
func (c *Channel) SendEphemeral(ctx context.Context, channelID, userID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if channelID == "" {
		channelID = c.channelID
	}
	_, resp, err := c.client.CreatePostEphemeral(&model.PostEphemeral{
		UserID: userID,
		Post:   &model.Post{ChannelId: channelID, Message: text},
	})
	c.l.Debug("send ephemeral message",
		zap.String("channel_id", channelID),
		zap.String("user_id", userID),
		zap.Int("status_code", statusCode(resp)))
	if err != nil {
		return fmt.Errorf("api: send ephemeral: %w", err)
	}
	return nil
}

func (c *Channel) post(ctx context.Context, post *model.Post) (*model.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	created, resp, err := c.client.CreatePost(post)
	c.l.Debug("send new message",
		zap.String("channel_id", post.ChannelId),
		zap.String("message", post.Message),
		zap.Int("files", len(post.FileIds)),
		zap.Int("status_code", statusCode(resp)))
	if err != nil {
		return nil, fmt.Errorf("api: create post: %w", err)
	}
	if created == nil {
		return nil, fmt.Errorf("api: create post: empty response")
	}
	return created, nil
}

// PollMessage lists the options next to the reaction that selects them.
func PollMessage(question string, options [models.OptionCount]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", question)
	for i, opt := range options {
		o, _ := models.OptionFromIndex(i)
		fmt.Fprintf(&b, ":%s: %s. %s\n", PollEmojis[i], o, opt)
	}
	b.WriteString("\nReagiere mit :one:, :two: oder :three:, um abzustimmen.")
	return b.String()
}

func statusCode(resp *model.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

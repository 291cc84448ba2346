package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jaam8/lingua_bot/internal/models"
	"github.com/mattermost/mattermost-server/v6/model"
)

const (
	COMMAND     = "/deutsch"
	HelpMessage = "Ich kenne diese Befehle:\n- `/deutsch start_daily` tägliche Inhalte einrichten\n- `/deutsch story` sofort eine Geschichte senden\n- `/deutsch answer poll_id A|B|C` eine Umfrage beantworten\n- `/deutsch result poll_id` Ergebnisse anzeigen\n- `/deutsch help`"
)

const (
	CmdStartDaily = "start_daily"
	CmdStory      = "story"
	CmdAnswer     = "answer"
	CmdResult     = "result"
	CmdHelp       = "help"
)

var errBadUsage = errors.New("bad usage")

type Command struct {
	Name   string
	PollID string
	Option models.Option
}

// ParseCommand reads a posted message. ok is false when the message is not addressed
// to the bot; a malformed bot command comes back as an error.
func ParseCommand(message string) (cmd Command, ok bool, err error) {
	args := strings.Fields(message)
	if len(args) == 0 || args[0] != COMMAND {
		return cmd, false, nil
	}
	if len(args) < 2 {
		return Command{Name: CmdHelp}, true, nil
	}
	cmd.Name = strings.ToLower(args[1])
	switch cmd.Name {
	case CmdStartDaily, CmdStory, CmdHelp:
		return cmd, true, nil
	case CmdResult:
		if len(args) != 3 {
			return cmd, true, fmt.Errorf("%w: /deutsch result poll_id", errBadUsage)
		}
		cmd.PollID = args[2]
		return cmd, true, nil
	case CmdAnswer:
		if len(args) != 4 {
			return cmd, true, fmt.Errorf("%w: /deutsch answer poll_id A|B|C", errBadUsage)
		}
		cmd.PollID = args[2]
		cmd.Option = models.Option(strings.ToUpper(args[3]))
		if !cmd.Option.Valid() {
			return cmd, true, fmt.Errorf("%w: %s", models.ErrOptionIsNotFound, args[3])
		}
		return cmd, true, nil
	default:
		return Command{Name: CmdHelp}, true, nil
	}
}

// ReactionIndex maps a reaction emoji onto an option index.
func ReactionIndex(emoji string) (int, bool) {
	for i, e := range PollEmojis {
		if e == emoji {
			return i, true
		}
	}
	return 0, false
}

func decodePost(data map[string]interface{}) (*model.Post, error) {
	raw, ok := data["post"].(string)
	if !ok {
		return nil, errors.New("event has no post")
	}
	post := &model.Post{}
	if err := json.Unmarshal([]byte(raw), post); err != nil {
		return nil, err
	}
	return post, nil
}

func decodeReaction(data map[string]interface{}) (*model.Reaction, error) {
	raw, ok := data["reaction"].(string)
	if !ok {
		return nil, errors.New("event has no reaction")
	}
	reaction := &model.Reaction{}
	if err := json.Unmarshal([]byte(raw), reaction); err != nil {
		return nil, err
	}
	return reaction, nil
}

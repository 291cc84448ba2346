package models

// PollState is the tally kept for one quiz poll sent by this process.
type PollState struct {
	PollID       string   `json:"poll_id"`
	Correct      Option   `json:"correct_answer"`
	TotalVotes   int      `json:"total_votes"`
	CorrectVotes int      `json:"correct_votes"`
	Voters       []string `json:"voters,omitempty"`
}

type PollSnapshot struct {
	TotalVotes   int `json:"total_votes"`
	CorrectVotes int `json:"correct_votes"`
}

func (s PollState) Snapshot() PollSnapshot {
	return PollSnapshot{TotalVotes: s.TotalVotes, CorrectVotes: s.CorrectVotes}
}

// PercentCorrect is defined only once at least one vote was counted.
func (s PollSnapshot) PercentCorrect() (float64, error) {
	if s.TotalVotes == 0 {
		return 0, ErrDivisionUndefined
	}
	return float64(s.CorrectVotes) / float64(s.TotalVotes) * 100, nil
}

// AnswerEvent is an answer to a poll coming from the messaging channel.
type AnswerEvent struct {
	PollID   string
	Selected int
	UserID   string
}

package models

import (
	"fmt"
	"time"
)

type DifficultyLevel string

const (
	LevelA2 DifficultyLevel = "A2"
	LevelB1 DifficultyLevel = "B1"
)

var Levels = []DifficultyLevel{LevelA2, LevelB1}

func (l DifficultyLevel) Valid() bool {
	return l == LevelA2 || l == LevelB1
}

// Option is a quiz answer letter. A, B and C index Options 0, 1 and 2.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
)

const OptionCount = 3

func (o Option) Valid() bool {
	return o == OptionA || o == OptionB || o == OptionC
}

// Index returns the zero-based position of the option, or -1 for an invalid letter.
func (o Option) Index() int {
	if !o.Valid() {
		return -1
	}
	return int(o[0] - 'A')
}

func OptionFromIndex(i int) (Option, error) {
	if i < 0 || i >= OptionCount {
		return "", fmt.Errorf("option index %d out of range", i)
	}
	return Option(string(rune('A' + i))), nil
}

type StoryRecord struct {
	ID        int64               `json:"id,omitempty"`
	Title     string              `json:"title"`
	Content   string              `json:"content"`
	Level     DifficultyLevel     `json:"difficulty_level"`
	Question  string              `json:"poll_question"`
	Options   [OptionCount]string `json:"options"`
	Correct   Option              `json:"correct_option"`
	CreatedAt time.Time           `json:"creation_date,omitempty"`
}

// Validate reports the first field that breaks the record shape.
func (r *StoryRecord) Validate() error {
	switch {
	case r.Title == "":
		return &ParseError{Field: "title"}
	case r.Content == "":
		return &ParseError{Field: "content"}
	case !r.Level.Valid():
		return &ParseError{Field: "difficulty_level", Reason: fmt.Sprintf("unknown level %q", r.Level)}
	}
	return validateQuiz(r.Question, r.Options, r.Correct)
}

type GrammarRecord struct {
	Content  string              `json:"content"`
	Question string              `json:"question"`
	Options  [OptionCount]string `json:"options"`
	Correct  Option              `json:"correct_option"`
}

func (r *GrammarRecord) Validate() error {
	if r.Content == "" {
		return &ParseError{Field: "content"}
	}
	return validateQuiz(r.Question, r.Options, r.Correct)
}

func validateQuiz(question string, options [OptionCount]string, correct Option) error {
	if question == "" {
		return &ParseError{Field: "question"}
	}
	for i, o := range options {
		if o == "" {
			return &ParseError{Field: "options", Reason: fmt.Sprintf("option %d is empty", i)}
		}
	}
	if !correct.Valid() {
		return &ParseError{Field: "correct_option", Reason: fmt.Sprintf("%q is not one of A, B, C", correct)}
	}
	return nil
}

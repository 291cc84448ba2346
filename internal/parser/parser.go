// Package parser turns the line-prefixed text produced by the language model
// into story and grammar records.
//
// The model is asked to answer in this shape:
//
//	TITEL: ...
//	GESCHICHTE: ...   (or GRAMMATIK: ...)
//	FRAGE: ...
//	OPTIONEN:         (optional)
//	A. ...
//	B. ...
//	C. ...
//	RICHTIGE ANTWORT: A|B|C
package parser

import (
	"fmt"
	"strings"

	"github.com/jaam8/lingua_bot/internal/models"
)

const (
	PrefixTitle    = "TITEL:"
	PrefixStory    = "GESCHICHTE:"
	PrefixGrammar  = "GRAMMATIK:"
	PrefixQuestion = "FRAGE:"
	PrefixOptions  = "OPTIONEN:"
	PrefixAnswer   = "RICHTIGE ANTWORT:"
)

var optionPrefixes = [models.OptionCount]string{"A.", "B.", "C."}

type state int

const (
	stateIdle state = iota
	// stateBody keeps collecting unprefixed lines into the content field.
	stateBody
)

// Fields is the lenient scan result. A nil field means its prefix line never appeared.
type Fields struct {
	Title    *string
	Content  *string
	Question *string
	Options  []string
	Correct  *string
}

type scanConfig struct {
	continueBody bool
}

type ScanOption func(*scanConfig)

// WithBodyContinuation appends unprefixed lines that follow GESCHICHTE: or
// GRAMMATIK: to the content until the next known prefix.
func WithBodyContinuation() ScanOption {
	return func(c *scanConfig) {
		c.continueBody = true
	}
}

// Scan walks the text line by line. A known prefix starts or overwrites its field,
// option lines append in the order they appear, OPTIONEN resets the option list and
// anything else is ignored.
func Scan(raw string, opts ...ScanOption) Fields {
	var cfg scanConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	var (
		f    Fields
		st   = stateIdle
		body []string
	)
	for _, line := range strings.Split(raw, "\n") {
		text := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(text, PrefixTitle):
			f.Title = valueAfter(text, PrefixTitle)
			st = stateIdle
		case strings.HasPrefix(text, PrefixStory), strings.HasPrefix(text, PrefixGrammar):
			prefix := PrefixStory
			if strings.HasPrefix(text, PrefixGrammar) {
				prefix = PrefixGrammar
			}
			f.Content = valueAfter(text, prefix)
			body = []string{*f.Content}
			if cfg.continueBody {
				st = stateBody
			}
		case strings.HasPrefix(text, PrefixQuestion):
			f.Question = valueAfter(text, PrefixQuestion)
			st = stateIdle
		case strings.HasPrefix(text, PrefixOptions):
			f.Options = []string{}
			st = stateIdle
		case isOptionLine(text):
			f.Options = append(f.Options, strings.TrimSpace(text[len(optionPrefixes[0]):]))
			st = stateIdle
		case strings.HasPrefix(text, PrefixAnswer):
			f.Correct = valueAfter(text, PrefixAnswer)
			st = stateIdle
		case st == stateBody:
			body = append(body, text)
			content := strings.TrimSpace(strings.Join(body, "\n"))
			f.Content = &content
		}
	}
	return f
}

func valueAfter(text, prefix string) *string {
	v := strings.TrimSpace(text[len(prefix):])
	return &v
}

func isOptionLine(text string) bool {
	for _, p := range optionPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

// Story converts scanned fields into a story record of the given level.
func (f Fields) Story(level models.DifficultyLevel) (models.StoryRecord, error) {
	var rec models.StoryRecord
	if f.Title == nil {
		return rec, &models.ParseError{Field: "title"}
	}
	if f.Content == nil {
		return rec, &models.ParseError{Field: "content"}
	}
	question, options, correct, err := f.quiz()
	if err != nil {
		return rec, err
	}
	rec = models.StoryRecord{
		Title:    *f.Title,
		Content:  *f.Content,
		Level:    level,
		Question: question,
		Options:  options,
		Correct:  correct,
	}
	if err = rec.Validate(); err != nil {
		return models.StoryRecord{}, err
	}
	return rec, nil
}

func (f Fields) Grammar() (models.GrammarRecord, error) {
	var rec models.GrammarRecord
	if f.Content == nil {
		return rec, &models.ParseError{Field: "content"}
	}
	question, options, correct, err := f.quiz()
	if err != nil {
		return rec, err
	}
	rec = models.GrammarRecord{
		Content:  *f.Content,
		Question: question,
		Options:  options,
		Correct:  correct,
	}
	if err = rec.Validate(); err != nil {
		return models.GrammarRecord{}, err
	}
	return rec, nil
}

func (f Fields) quiz() (string, [models.OptionCount]string, models.Option, error) {
	var options [models.OptionCount]string
	if f.Question == nil {
		return "", options, "", &models.ParseError{Field: "question"}
	}
	if f.Options == nil {
		return "", options, "", &models.ParseError{Field: "options"}
	}
	if len(f.Options) != models.OptionCount {
		return "", options, "", &models.ParseError{
			Field:  "options",
			Reason: fmt.Sprintf("got %d options, want %d", len(f.Options), models.OptionCount),
		}
	}
	copy(options[:], f.Options)
	if f.Correct == nil {
		return "", options, "", &models.ParseError{Field: "correct_option"}
	}
	return *f.Question, options, models.Option(*f.Correct), nil
}

func ParseStory(raw string, level models.DifficultyLevel, opts ...ScanOption) (models.StoryRecord, error) {
	return Scan(raw, opts...).Story(level)
}

func ParseGrammar(raw string, opts ...ScanOption) (models.GrammarRecord, error) {
	return Scan(raw, opts...).Grammar()
}

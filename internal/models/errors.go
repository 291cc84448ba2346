package models

import (
	"errors"
	"fmt"
)

var (
	ErrParse                 = errors.New("malformed model output")
	ErrStorageUnavailable    = errors.New("story storage is unavailable")
	ErrGenerationFailure     = errors.New("content generation failed")
	ErrDeliveryFailure       = errors.New("message delivery failed")
	ErrRenderFailure         = errors.New("audio rendering failed")
	ErrUnknownPoll           = errors.New("poll is unknown")
	ErrDivisionUndefined     = errors.New("percent correct is undefined without votes")
	ErrStoryNotFound         = errors.New("story is not found")
	ErrPollAlreadyRegistered = errors.New("poll is already registered")
	ErrVoteAlreadyExists     = errors.New("your vote already written")
	ErrOptionIsNotFound      = errors.New("option is not found")
	ErrCycleInProgress       = errors.New("delivery cycle is already running")
	ErrFailedToProcessData   = errors.New("failed to process data")
)

// ParseError names the field that could not be recovered from model output.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("parse: missing field %q", e.Field)
	}
	return fmt.Sprintf("parse: field %q: %s", e.Field, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an article id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCooldownActive marks a trigger skipped because the source ran recently.
	ErrCooldownActive = errors.New("cooldown active")
	// ErrAlreadyRunning marks a trigger rejected because a run is in progress.
	ErrAlreadyRunning = errors.New("scrape already running")
	// ErrDuplicateID is an append batch carrying the same id twice.
	ErrDuplicateID = errors.New("duplicate article id")
	// ErrUnknownSource is a trigger or lookup for a source that is not registered.
	ErrUnknownSource = errors.New("unknown source")
)

// SourceErrorKind classifies adapter failures.
type SourceErrorKind string

const (
	KindSourceUnreachable SourceErrorKind = "source_unreachable"
	KindParseFailure      SourceErrorKind = "parse_failure"
)

// SourceError is a listing-level adapter failure for one source.
type SourceError struct {
	Source  string
	Kind    SourceErrorKind
	Message string
	Err     error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Source, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Kind, e.Message)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Unreachable builds a SourceUnreachable error.
func Unreachable(source, msg string, err error) *SourceError {
	return &SourceError{Source: source, Kind: KindSourceUnreachable, Message: msg, Err: err}
}

// ParseFailure builds a ParseFailure error.
func ParseFailure(source, msg string, err error) *SourceError {
	return &SourceError{Source: source, Kind: KindParseFailure, Message: msg, Err: err}
}

// IsSourceError reports whether err carries a SourceError of the given kind.
func IsSourceError(err error, kind SourceErrorKind) bool {
	var se *SourceError
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == kind
}

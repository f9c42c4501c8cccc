package models

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrTaskFinalized = errors.New("task already reached a terminal state")
	ErrFileNotFound  = errors.New("file not found")
)

type ErrorKind string

const (
	KindInput    ErrorKind = "input"
	KindUpstream ErrorKind = "upstream"
	KindAuth     ErrorKind = "auth"
	KindNoData   ErrorKind = "no_data"
	KindInternal ErrorKind = "internal"
)

// JobError classifies a failure. Msg is the user-facing text, Err the cause.
type JobError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *JobError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func NewInputError(msg string, err error) error {
	return &JobError{Kind: KindInput, Msg: msg, Err: err}
}

func NewUpstreamError(msg string, err error) error {
	return &JobError{Kind: KindUpstream, Msg: msg, Err: err}
}

func NewAuthError(msg string, err error) error {
	return &JobError{Kind: KindAuth, Msg: msg, Err: err}
}

func NewNoDataError(msg string) error {
	return &JobError{Kind: KindNoData, Msg: msg}
}

// KindOf returns the kind of the first JobError in err's chain, KindInternal otherwise.
func KindOf(err error) ErrorKind {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return KindInternal
}

// Describe renders err for the operator. No-data errors carry only their message.
func Describe(err error) string {
	var je *JobError
	if errors.As(err, &je) && je.Kind == KindNoData {
		return je.Msg
	}
	return err.Error()
}

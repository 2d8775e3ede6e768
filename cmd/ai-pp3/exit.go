package main

import (
	"errors"

	"github.com/dshills/aipp3/internal/agent"
	"github.com/dshills/aipp3/internal/edits"
)

// Exit codes.
const (
	exitCodeError     = 1 // generic failure
	exitCodeBadInput  = 3 // bad flags, config, or input file
	exitCodeAPIError  = 4 // the model call failed
	exitCodeBadOutput = 5 // the model replied with nothing usable
)

// exitError carries a process exit code alongside the error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func badInput(err error) error {
	return &exitError{code: exitCodeBadInput, err: err}
}

// classify attaches the exit code matching err.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	var perr *agent.ProviderError
	switch {
	case errors.As(err, &perr):
		return &exitError{code: exitCodeAPIError, err: err}
	case errors.Is(err, agent.ErrEmptyResponse),
		errors.Is(err, edits.ErrNoEdits),
		errors.Is(err, edits.ErrInvalidBlock),
		errors.Is(err, agent.ErrEmptyProfile):
		return &exitError{code: exitCodeBadOutput, err: err}
	case errors.Is(err, agent.ErrUnsupportedFile),
		errors.Is(err, agent.ErrNoSections),
		errors.Is(err, agent.ErrProviderSetup),
		errors.Is(err, agent.ErrEmptyInput),
		errors.Is(err, agent.ErrPP3OnlyImage),
		errors.Is(err, agent.ErrPP3Output),
		errors.Is(err, agent.ErrBatchOutput):
		return badInput(err)
	}
	return &exitError{code: exitCodeError, err: err}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/autoshorts/internal/shared"
)

const (
	StageScript   = "script"
	StageAudio    = "audio"
	StageImages   = "images"
	StageAssembly = "assembly"
)

// StageError is the terminal error of a failed run.
//
// Scene is the 1-based scene index for image failures and zero otherwise.
// Err always matches [shared.ErrCollaborator] or [shared.ErrDataIntegrity].
type StageError struct {
	Stage string
	Scene int
	Err   error
}

func (e *StageError) Error() string {
	if e.Scene > 0 {
		return fmt.Sprintf("%s stage failed on scene %d: %v", e.Stage, e.Scene, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// collaboratorFailure wraps an error raised by an external call.
func collaboratorFailure(stage string, scene int, err error) *StageError {
	switch {
	case errors.Is(err, shared.ErrCollaborator):
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%w: %w: %w", shared.ErrCollaborator, shared.ErrTimeout, err)
	default:
		err = fmt.Errorf("%w: %w", shared.ErrCollaborator, err)
	}
	return &StageError{Stage: stage, Scene: scene, Err: err}
}

// localFailure wraps an error raised by the store or the file system.
func localFailure(stage string, err error) *StageError {
	if !errors.Is(err, shared.ErrDataIntegrity) {
		err = fmt.Errorf("%w: %w", shared.ErrDataIntegrity, err)
	}
	return &StageError{Stage: stage, Err: err}
}

// streamFailure classifies a failed download: a broken response body is the
// collaborator's fault, anything on the local disk is not.
func streamFailure(stage string, scene int, err error) *StageError {
	var re *readError
	if errors.As(err, &re) {
		return collaboratorFailure(stage, scene, err)
	}
	se := localFailure(stage, err)
	se.Scene = scene
	return se
}

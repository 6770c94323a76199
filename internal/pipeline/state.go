package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/services"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// ErrInvalidTransition is returned when a run is moved anywhere but its next state.
var ErrInvalidTransition = errors.New("invalid pipeline state transition")

// State is a position in the pipeline. The order of the constants is the order of a run.
type State int

const (
	ScriptPending State = iota
	AudioPending
	ImagesPending
	AssemblyPending
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case ScriptPending:
		return "script_pending"
	case AudioPending:
		return "audio_pending"
	case ImagesPending:
		return "images_pending"
	case AssemblyPending:
		return "assembly_pending"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stage names the work performed while in s. Terminal states have none.
func (s State) Stage() string {
	switch s {
	case ScriptPending:
		return StageScript
	case AudioPending:
		return StageAudio
	case ImagesPending:
		return StageImages
	case AssemblyPending:
		return StageAssembly
	default:
		return ""
	}
}

func (s State) Terminal() bool {
	return s == Done || s == Failed
}

func (s State) next() (State, bool) {
	if s.Terminal() || s < ScriptPending {
		return s, false
	}
	return s + 1, true
}

// Run records one pipeline execution.
type Run struct {
	ID             string                `json:"id"`
	UserID         int64                 `json:"user_id"`
	PromptConfigID int64                 `json:"prompt_config_id"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
	State          State                 `json:"-"`
	History        []State               `json:"-"`
	Script         *models.Script        `json:"script,omitempty"`
	Artifact       models.VideoArtifact  `json:"artifact"`
	Posts          []services.PostResult `json:"posts,omitempty"`
	Err            error                 `json:"-"`
}

func newRun(userID, promptConfigID int64) *Run {
	return &Run{
		ID:             shared.GenerateID(),
		UserID:         userID,
		PromptConfigID: promptConfigID,
		StartedAt:      time.Now(),
		State:          ScriptPending,
		History:        []State{ScriptPending},
	}
}

// advance moves the run to to, which must be the state directly after the current one.
func (r *Run) advance(to State) error {
	next, ok := r.State.next()
	if !ok || to != next || to == Failed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, to)
	}
	r.State = to
	r.History = append(r.History, to)
	if to == Done {
		r.FinishedAt = time.Now()
	}
	return nil
}

// fail moves a non-terminal run to [Failed].
func (r *Run) fail(err error) error {
	if r.State.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, Failed)
	}
	r.State = Failed
	r.History = append(r.History, Failed)
	r.Err = err
	r.FinishedAt = time.Now()
	return nil
}

// Duration is the wall time of a finished run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

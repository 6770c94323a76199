package pipeline

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	RunID   string // Run the update belongs to
	State   State  // State the run is in
	Step    int    // Current step number within the stage
	Total   int    // Total steps in this stage
	Message string // Human-readable message for display
	Data    any    // Optional stage-specific data for advanced UIs
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func stageStartedUpdate(run *Run) ProgressUpdate {
	return ProgressUpdate{
		RunID:   run.ID,
		State:   run.State,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Starting %s stage...", run.State.Stage()),
	}
}

func stageFinishedUpdate(run *Run, stage string) ProgressUpdate {
	return ProgressUpdate{
		RunID:   run.ID,
		State:   run.State,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ %s stage finished", stage),
	}
}

func scriptReadyUpdate(run *Run) ProgressUpdate {
	return ProgressUpdate{
		RunID:   run.ID,
		State:   run.State,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Script: %s (%d scenes, %d words)", run.Script.Title, len(run.Script.Scenes), run.Script.Words()),
		Data:    run.Script,
	}
}

func imageUpdate(run *Run, step, total int, path string) ProgressUpdate {
	return ProgressUpdate{
		RunID:   run.ID,
		State:   run.State,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, path),
	}
}

func failedUpdate(run *Run, err error) ProgressUpdate {
	return ProgressUpdate{
		RunID:   run.ID,
		State:   Failed,
		Message: fmt.Sprintf("✗ %v", err),
		Data:    err,
	}
}

func publishedUpdate(run *Run) ProgressUpdate {
	return ProgressUpdate{
		RunID:   run.ID,
		State:   run.State,
		Step:    len(run.Posts),
		Total:   len(run.Posts),
		Message: fmt.Sprintf("Published to %d platform(s)", countPosted(run)),
		Data:    run.Posts,
	}
}

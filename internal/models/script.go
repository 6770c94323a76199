package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/desertthunder/autoshorts/internal/shared"
)

const (
	MinScenes = 5
	MaxScenes = 6
	// MaxVideoSeconds is the length ceiling the word cap is derived from.
	MaxVideoSeconds = 60
)

// Scene is one narrated image of a video.
type Scene struct {
	Label       string  `json:"scene_id" jsonschema_description:"Short label for the scene, e.g. intro"`
	Narration   string  `json:"narration" jsonschema_description:"One or two sentences read aloud over the image"`
	ImagePrompt string  `json:"image_prompt" jsonschema_description:"Prompt for a vertical 9:16 illustration of the scene"`
	Duration    float64 `json:"duration" jsonschema_description:"Seconds the scene stays on screen"`
}

// Words returns the narration word count.
func (s Scene) Words() int {
	return len(strings.Fields(s.Narration))
}

// Script is the model reply for one run, persisted as script.json.
type Script struct {
	Title  string  `json:"title" jsonschema_description:"Very short subtopic title, one or two words"`
	Scenes []Scene `json:"scenes" jsonschema_description:"Five or six scenes in reading order"`
}

// WordCap is the number of words readable at wpm within [MaxVideoSeconds].
func WordCap(wpm int) int {
	return wpm * MaxVideoSeconds / 60
}

// Validate checks structure: a title, 5 to 6 scenes and non-empty scene fields.
func (s *Script) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: script title is empty", shared.ErrValidation)
	}
	if n := len(s.Scenes); n < MinScenes || n > MaxScenes {
		return fmt.Errorf("%w: script has %d scenes, want %d to %d", shared.ErrValidation, n, MinScenes, MaxScenes)
	}
	for i, scene := range s.Scenes {
		switch {
		case strings.TrimSpace(scene.Label) == "":
			return fmt.Errorf("%w: scene %d has no scene_id", shared.ErrValidation, i+1)
		case strings.TrimSpace(scene.Narration) == "":
			return fmt.Errorf("%w: scene %d has no narration", shared.ErrValidation, i+1)
		case strings.TrimSpace(scene.ImagePrompt) == "":
			return fmt.Errorf("%w: scene %d has no image_prompt", shared.ErrValidation, i+1)
		}
	}
	return nil
}

// ValidateFor runs [Script.Validate] and checks the total narration against the wpm word cap.
func (s *Script) ValidateFor(wpm int) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if limit, words := WordCap(wpm), s.Words(); words > limit {
		return fmt.Errorf("%w: narration has %d words, cap is %d at %d wpm", shared.ErrValidation, words, limit, wpm)
	}
	return nil
}

// Words totals narration words across scenes.
func (s *Script) Words() int {
	total := 0
	for _, scene := range s.Scenes {
		total += scene.Words()
	}
	return total
}

// Narration space-joins every scene's narration in order.
func (s *Script) Narration() string {
	parts := make([]string, 0, len(s.Scenes))
	for _, scene := range s.Scenes {
		parts = append(parts, strings.TrimSpace(scene.Narration))
	}
	return strings.Join(parts, " ")
}

// RecomputeDurations replaces every scene duration with words / (wpm / 60), rounded to 2 decimals.
func (s *Script) RecomputeDurations(wpm int) {
	if wpm <= 0 {
		return
	}
	wordsPerSecond := float64(wpm) / 60
	for i := range s.Scenes {
		d := float64(s.Scenes[i].Words()) / wordsPerSecond
		s.Scenes[i].Duration = math.Round(d*100) / 100
	}
}

// TotalDuration sums scene durations.
func (s *Script) TotalDuration() float64 {
	var total float64
	for _, scene := range s.Scenes {
		total += scene.Duration
	}
	return total
}

// Caption is the first scene's narration, or the title when there is none.
func (s *Script) Caption() string {
	if len(s.Scenes) > 0 {
		if n := strings.TrimSpace(s.Scenes[0].Narration); n != "" {
			return n
		}
	}
	return s.Title
}

// VideoArtifact lists the files one completed run produced.
type VideoArtifact struct {
	RunDir     string   `json:"run_dir"`
	ScriptPath string   `json:"script_path"`
	AudioPath  string   `json:"audio_path"`
	ImagePaths []string `json:"image_paths"`
	VideoPath  string   `json:"video_path"`
}

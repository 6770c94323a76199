package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

var fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// BuildPrompt writes the script request for cfg.
func BuildPrompt(cfg *models.PromptConfig) string {
	covered := "none"
	if len(cfg.CoveredTopics) > 0 {
		covered = strings.Join(cfg.CoveredTopics, ", ")
	}
	secondsPerWord := math.Round(60/float64(cfg.WPM)*100) / 100

	var b strings.Builder
	fmt.Fprintf(&b, "Write a short educational video script about the %s of %s. ", strings.TrimSpace(cfg.Scope), strings.TrimSpace(cfg.Topic))
	fmt.Fprintf(&b, "Pick a subtopic that is not one of: %s.\n\n", covered)
	b.WriteString("Constraints:\n")
	fmt.Fprintf(&b, "- The video lasts at most %d seconds.\n", models.MaxVideoSeconds)
	fmt.Fprintf(&b, "- Use %d to %d scenes.\n", models.MinScenes, models.MaxScenes)
	fmt.Fprintf(&b, "- All narration together must not exceed %d words.\n", models.WordCap(cfg.WPM))
	fmt.Fprintf(&b, "- The narration is read aloud at about one word every %.2f seconds.\n\n", secondsPerWord)
	b.WriteString("Each scene has:\n")
	b.WriteString("- scene_id: a short label\n")
	b.WriteString("- narration: one or two sentences that sound natural spoken aloud\n")
	b.WriteString("- image_prompt: a visual prompt for a vertical AI illustration\n")
	b.WriteString("- duration: estimated seconds to read the narration\n\n")
	b.WriteString("Reply with only a JSON object with two keys:\n")
	b.WriteString("- title: a very short name for the subtopic, one or two words (e.g. scalpel, espresso)\n")
	b.WriteString("- scenes: the array of scenes\n")
	return b.String()
}

// ExtractJSON returns the body of the first fenced code block in reply, or the trimmed reply when there is none.
func ExtractJSON(reply string) string {
	if m := fencedBlock.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(reply)
}

// ParseScript decodes a model reply strictly. Unknown fields and trailing data are rejected.
func ParseScript(reply string) (*models.Script, error) {
	body := ExtractJSON(reply)
	if body == "" {
		return nil, fmt.Errorf("%w: empty script reply", shared.ErrValidation)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()

	var script models.Script
	if err := dec.Decode(&script); err != nil {
		return nil, fmt.Errorf("%w: script reply is not valid JSON: %v", shared.ErrValidation, err)
	}
	if err := dec.Decode(&json.RawMessage{}); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after script object", shared.ErrValidation)
	}
	script.Title = strings.TrimSpace(script.Title)
	return &script, nil
}

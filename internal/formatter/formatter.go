// package formatter exports generated scripts to CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// Format names an export format.
type Format string

const (
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Text     Format = "text"
)

// ParseFormat accepts csv, markdown (or md) and text (or txt).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "text", "txt", "":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q (want csv, markdown or text)", shared.ErrInvalidFlag, s)
	}
}

// ScriptExport is a script with the context it was generated for.
type ScriptExport struct {
	Username string         `json:"username"`
	Topic    string         `json:"topic"`
	Scope    string         `json:"scope"`
	WPM      int            `json:"wpm"`
	Script   *models.Script `json:"script"`
	Images   []string       `json:"images,omitempty"` // per scene, in order; may be shorter than the scene list
}

func (e *ScriptExport) image(i int) string {
	if i < len(e.Images) {
		return e.Images[i]
	}
	return ""
}

// ExportToCSV writes one row per scene with columns: Scene, Label, Narration, Image Prompt, Words, Duration
func ExportToCSV(export *ScriptExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Scene", "Label", "Narration", "Image Prompt", "Words", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, scene := range export.Script.Scenes {
		record := []string{
			strconv.Itoa(i + 1),
			scene.Label,
			scene.Narration,
			scene.ImagePrompt,
			strconv.Itoa(scene.Words()),
			strconv.FormatFloat(scene.Duration, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders the script as a shot list. Scene images are linked when present.
func ExportToMarkdown(export *ScriptExport) ([]byte, error) {
	var buf bytes.Buffer
	script := export.Script

	fmt.Fprintf(&buf, "# %s\n\n", script.Title)
	if export.Topic != "" {
		fmt.Fprintf(&buf, "**Topic**: %s", export.Topic)
		if export.Scope != "" {
			fmt.Fprintf(&buf, " (%s)", export.Scope)
		}
		buf.WriteString("\n")
	}
	if export.Username != "" {
		fmt.Fprintf(&buf, "**User**: %s\n", export.Username)
	}
	fmt.Fprintf(&buf, "**Scenes**: %d\n", len(script.Scenes))
	fmt.Fprintf(&buf, "**Length**: %s (%d words", formatSeconds(script.TotalDuration()), script.Words())
	if export.WPM > 0 {
		fmt.Fprintf(&buf, " at %d wpm", export.WPM)
	}
	buf.WriteString(")\n\n")

	buf.WriteString("## Scenes\n\n")
	for i, scene := range script.Scenes {
		fmt.Fprintf(&buf, "### %d. %s [%s]\n\n", i+1, scene.Label, formatSeconds(scene.Duration))
		if img := export.image(i); img != "" {
			fmt.Fprintf(&buf, "![%s](%s)\n\n", scene.Label, filepath.ToSlash(img))
		}
		fmt.Fprintf(&buf, "%s\n\n", scene.Narration)
		fmt.Fprintf(&buf, "> %s\n\n", scene.ImagePrompt)
	}

	return buf.Bytes(), nil
}

// ExportToText renders the narration the way it is read aloud.
func ExportToText(export *ScriptExport) ([]byte, error) {
	var buf bytes.Buffer
	script := export.Script

	fmt.Fprintf(&buf, "Title: %s\n", script.Title)
	if export.Topic != "" {
		fmt.Fprintf(&buf, "Topic: %s\n", export.Topic)
	}
	fmt.Fprintf(&buf, "Scenes: %d\n", len(script.Scenes))
	fmt.Fprintf(&buf, "Length: %s\n\n", formatSeconds(script.TotalDuration()))

	for i, scene := range script.Scenes {
		fmt.Fprintf(&buf, "%d. [%s] %s\n", i+1, scene.Label, scene.Narration)
	}

	return buf.Bytes(), nil
}

// Export renders export in format.
func Export(export *ScriptExport, format Format) ([]byte, error) {
	if export == nil || export.Script == nil {
		return nil, fmt.Errorf("%w: nothing to export", shared.ErrInvalidInput)
	}

	switch format {
	case CSV:
		return ExportToCSV(export)
	case Markdown:
		return ExportToMarkdown(export)
	case Text:
		return ExportToText(export)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, format)
	}
}

// ToMetadataJSON generates a JSON representation of the script context (without scenes)
func ToMetadataJSON(export *ScriptExport) ([]byte, error) {
	meta := struct {
		Title    string  `json:"title"`
		Username string  `json:"username,omitempty"`
		Topic    string  `json:"topic,omitempty"`
		Scope    string  `json:"scope,omitempty"`
		WPM      int     `json:"wpm,omitempty"`
		Scenes   int     `json:"scenes"`
		Words    int     `json:"words"`
		Seconds  float64 `json:"seconds"`
	}{
		Title:    export.Script.Title,
		Username: export.Username,
		Topic:    export.Topic,
		Scope:    export.Scope,
		WPM:      export.WPM,
		Scenes:   len(export.Script.Scenes),
		Words:    export.Script.Words(),
		Seconds:  export.Script.TotalDuration(),
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	ScenesFile   string
	MetadataFile string
}

// WriteCSVExport exports a script to CSV format with accompanying metadata JSON file.
//
// Defaults to the slugged title as the base filename & creates {base}_scenes.csv and {base}_metadata.json
func WriteCSVExport(export *ScriptExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = shared.Slug(export.Script.Title)
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	scenesFile := baseFilepath + "_scenes.csv"
	if err := os.WriteFile(scenesFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, err
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		ScenesFile:   scenesFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteMarkdownExport writes {dir}/README.md. Directory name defaults to the slugged title.
//
// Image paths are rewritten relative to dir so the document renders in place.
func WriteMarkdownExport(export *ScriptExport, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = shared.Slug(export.Script.Title)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	local := *export
	local.Images = make([]string, len(export.Images))
	for i, img := range export.Images {
		if rel, err := filepath.Rel(outputDir, img); err == nil {
			local.Images[i] = rel
		} else {
			local.Images[i] = img
		}
	}

	mdData, err := ExportToMarkdown(&local)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return mdFile, nil
}

// WriteTextExport exports a script to plain text format.
//
// Defaults to {slug}_script.txt as the filename.
func WriteTextExport(export *ScriptExport, path string) (string, error) {
	if path == "" {
		path = shared.Slug(export.Script.Title) + "_script.txt"
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// formatSeconds renders seconds as m:ss.
func formatSeconds(seconds float64) string {
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

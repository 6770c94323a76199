package formatter

import (
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
	th "github.com/desertthunder/autoshorts/internal/testing"
)

func sampleExport() *ScriptExport {
	script := &models.Script{
		Title: "Scalpels",
		Scenes: []models.Scene{
			{Label: "Intro", Narration: "Scalpels are older than you think.", ImagePrompt: "an ancient surgeon's kit"},
			{Label: "Bronze Age", Narration: "Early blades were bronze, and surprisingly sharp.", ImagePrompt: "bronze blades on linen"},
			{Label: "Steel", Narration: "Steel made them cheap, with a comma, in the text.", ImagePrompt: "a Victorian operating theatre"},
			{Label: "Disposable", Narration: "Today most blades are used once.", ImagePrompt: "sterile packaged blades"},
			{Label: "Outro", Narration: "Follow for more tools.", ImagePrompt: "a tray of modern instruments"},
		},
	}
	script.RecomputeDurations(150)
	return &ScriptExport{
		Username: "alice",
		Topic:    "surgical tools",
		Scope:    "history",
		WPM:      150,
		Script:   script,
	}
}

func TestExporters(t *testing.T) {
	t.Run("ParseFormat", func(t *testing.T) {
		tests := []struct {
			in   string
			want Format
		}{
			{"csv", CSV},
			{"Markdown", Markdown},
			{"md", Markdown},
			{"txt", Text},
			{"", Text},
		}
		for _, tt := range tests {
			got, err := ParseFormat(tt.in)
			if err != nil {
				t.Fatalf("ParseFormat(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		}

		if _, err := ParseFormat("pdf"); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(records) != 6 {
			t.Fatalf("expected header and 5 rows, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "Scene,Label,Narration,Image Prompt,Words,Duration" {
			t.Errorf("unexpected headers: %v", records[0])
		}
		if records[3][2] != "Steel made them cheap, with a comma, in the text." {
			t.Errorf("narration with commas not preserved: %q", records[3][2])
		}
		if records[1][0] != "1" || records[1][4] != "6" || records[1][5] != "2.40" {
			t.Errorf("unexpected first row: %v", records[1])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		export := sampleExport()
		export.Images = []string{"images/scene_1_intro.jpg"}

		data, err := ExportToMarkdown(export)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"# Scalpels\n",
			"**Topic**: surgical tools (history)",
			"**User**: alice",
			"**Scenes**: 5",
			"at 150 wpm",
			"### 1. Intro [0:02]",
			"![Intro](images/scene_1_intro.jpg)",
			"> bronze blades on linen",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("markdown missing %q, got:\n%s", want, output)
			}
		}
		if strings.Contains(output, "![Bronze Age]") {
			t.Error("expected no image link for scenes without images")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "Title: Scalpels\n") {
			t.Errorf("unexpected header: %s", output)
		}
		if !strings.Contains(output, "5. [Outro] Follow for more tools.\n") {
			t.Errorf("missing last scene, got:\n%s", output)
		}
	})

	t.Run("Export", func(t *testing.T) {
		if _, err := Export(nil, CSV); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected validation error for nil export, got %v", err)
		}
		if _, err := Export(&ScriptExport{}, Text); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected validation error for empty script, got %v", err)
		}

		data, err := Export(sampleExport(), Markdown)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if !strings.HasPrefix(string(data), "# Scalpels") {
			t.Errorf("expected markdown, got %s", data)
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(sampleExport())
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, `"title": "Scalpels"`) || !strings.Contains(output, `"scenes": 5`) {
			t.Errorf("unexpected metadata: %s", output)
		}
		if strings.Contains(output, "narration") {
			t.Error("metadata should not include scenes")
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "scalpels")

		result, err := WriteCSVExport(sampleExport(), base)
		if err != nil {
			t.Fatalf("WriteCSVExport failed: %v", err)
		}

		th.AssertFileExists(t, result.ScenesFile)
		th.AssertFileExists(t, result.MetadataFile)
		if result.ScenesFile != base+"_scenes.csv" {
			t.Errorf("unexpected scenes file: %s", result.ScenesFile)
		}
	})

	t.Run("WriteMarkdownExport rewrites image paths", func(t *testing.T) {
		root := t.TempDir()
		runDir := filepath.Join(root, "prompt_1", "scalpels")
		export := sampleExport()
		export.Images = []string{filepath.Join(runDir, "images", "scene_1_intro.jpg")}

		mdFile, err := WriteMarkdownExport(export, runDir)
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}

		content := th.MustReadFile(t, mdFile)
		if !strings.Contains(content, "![Intro](images/scene_1_intro.jpg)") {
			t.Errorf("expected relative image link, got:\n%s", content)
		}
		if export.Images[0] != filepath.Join(runDir, "images", "scene_1_intro.jpg") {
			t.Error("export images should not be modified")
		}
	})

	t.Run("WriteTextExport default name", func(t *testing.T) {
		t.Chdir(t.TempDir())

		path, err := WriteTextExport(sampleExport(), "")
		if err != nil {
			t.Fatalf("WriteTextExport failed: %v", err)
		}
		if path != "scalpels_script.txt" {
			t.Errorf("unexpected default path: %s", path)
		}
		th.AssertFileExists(t, path)
	})
}

func TestFormatSeconds(t *testing.T) {
	tests := map[float64]string{0: "0:00", 2.4: "0:02", 59.6: "1:00", 75: "1:15"}
	for in, want := range tests {
		if got := formatSeconds(in); got != want {
			t.Errorf("formatSeconds(%v) = %q, want %q", in, got, want)
		}
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/autoshorts/internal/formatter"
	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/pipeline"
	"github.com/desertthunder/autoshorts/internal/services"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// Generate runs the pipeline for one user now, printing progress as stages finish.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	gen, err := r.buildGenerator(ctx)
	if err != nil {
		return err
	}

	userID := cmd.Int64("user")
	progress := make(chan pipeline.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if !cmd.Bool("json") {
				r.writePlain("  %s\n", update.Message)
			}
		}
	}()

	r.logger.Info("generating video", "user", userID, "post", cmd.Bool("post"))
	run, err := gen.Generate(ctx, userID, pipeline.Options{Post: cmd.Bool("post"), Progress: progress})
	close(progress)
	<-done

	if run == nil {
		return err
	}
	if cmd.Bool("json") {
		if werr := r.writeJSON(run, cmd.Bool("pretty")); werr != nil {
			return werr
		}
		return err
	}
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			r.logger.Error("run failed", "stage", stageErr.Stage, "scene", stageErr.Scene, "run", run.ID)
		}
		return err
	}

	r.writePlainln("✓ %s", run.Script.Title)
	r.writePlain("Video:    %s\n", run.Artifact.VideoPath)
	r.writePlain("Duration: %s\n", run.Duration().Round(time.Second))
	for _, p := range run.Posts {
		switch p.Status {
		case services.StatusPosted:
			r.writePlain("%-9s posted %s\n", p.Platform+":", p.URL)
		default:
			r.writePlain("%-9s %s %s\n", p.Platform+":", p.Status, p.Reason)
		}
	}
	return nil
}

// ExportScript exports the newest script under a user's output directory.
func (r *Runner) ExportScript(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}
	userID := cmd.Int64("user")
	user, err := store.Users.Get(userID)
	if err != nil {
		return err
	}
	prompt, err := store.Prompts.GetByUser(userID)
	if err != nil {
		return err
	}

	runDir, err := latestRunDir(r.config.Output.Root, prompt.ID)
	if err != nil {
		return err
	}
	script, err := readScript(filepath.Join(runDir, pipeline.ScriptFile))
	if err != nil {
		return err
	}

	export := &formatter.ScriptExport{
		Username: user.Username,
		Topic:    prompt.Topic,
		Scope:    prompt.Scope,
		WPM:      prompt.WPM,
		Script:   script,
		Images:   sceneImages(runDir, script),
	}

	output := cmd.String("output")
	if output == "" {
		data, err := formatter.Export(export, format)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	switch format {
	case formatter.CSV:
		result, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		r.logger.Info("exported script", "scenes", result.ScenesFile, "metadata", result.MetadataFile)
	case formatter.Markdown:
		path, err := formatter.WriteMarkdownExport(export, output)
		if err != nil {
			return err
		}
		r.logger.Info("exported script", "file", path)
	default:
		path, err := formatter.WriteTextExport(export, output)
		if err != nil {
			return err
		}
		r.logger.Info("exported script", "file", path)
	}
	return nil
}

// latestRunDir returns the most recently modified run directory holding a script for promptConfigID.
func latestRunDir(root string, promptConfigID int64) (string, error) {
	pattern := filepath.Join(filepath.Dir(shared.RunDir(root, promptConfigID, "x")), "*", pipeline.ScriptFile)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no generated scripts under %s", shared.ErrNotFound, filepath.Dir(pattern))
	}

	type candidate struct {
		dir     string
		modUnix int64
	}
	candidates := make([]candidate, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{dir: filepath.Dir(m), modUnix: info.ModTime().UnixNano()})
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no readable scripts under %s", shared.ErrNotFound, filepath.Dir(pattern))
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modUnix > candidates[j].modUnix })
	return candidates[0].dir, nil
}

func readScript(path string) (*models.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var script models.Script
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("%w: malformed script %s: %v", shared.ErrDataIntegrity, path, err)
	}
	return &script, nil
}

// sceneImages lists each scene's image path in scene order, stopping at the first missing one.
func sceneImages(runDir string, script *models.Script) []string {
	var images []string
	for i, scene := range script.Scenes {
		path := filepath.Join(runDir, pipeline.ImagesDir, pipeline.ImageName(i+1, scene.Label))
		if _, err := os.Stat(path); err != nil {
			break
		}
		images = append(images, path)
	}
	return images
}

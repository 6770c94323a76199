package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/desertthunder/autoshorts/internal/shared"
)

const (
	VideoWidth  = 1080
	VideoHeight = 1920
	VideoFPS    = 24
)

// Clip is one still image shown for Duration seconds.
type Clip struct {
	Image    string
	Duration float64
}

// RenderJob describes one video to assemble.
type RenderJob struct {
	Clips  []Clip
	Audio  string
	Output string
	Width  int
	Height int
	FPS    int
}

// Renderer turns a [RenderJob] into a video file at job.Output.
type Renderer interface {
	Render(ctx context.Context, job RenderJob) error
}

// CommandRunner runs name with args and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with [exec.CommandContext].
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// FFmpegRenderer renders with the ffmpeg binary.
type FFmpegRenderer struct {
	path string
	run  CommandRunner
}

func NewFFmpegRenderer(path string) *FFmpegRenderer {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegRenderer{path: path, run: ExecRunner}
}

// WithRunner replaces the command runner.
func (r *FFmpegRenderer) WithRunner(run CommandRunner) *FFmpegRenderer {
	r.run = run
	return r
}

func (r *FFmpegRenderer) Render(ctx context.Context, job RenderJob) error {
	if len(job.Clips) == 0 {
		return fmt.Errorf("%w: nothing to render", shared.ErrInvalidInput)
	}

	out, err := r.run(ctx, r.path, FFmpegArgs(job)...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: ffmpeg: %w", shared.ErrTimeout, ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(out, 400))
	}
	return nil
}

// FFmpegArgs builds the ffmpeg command line for job.
//
// Every image is scaled to the frame height, center-cropped when too wide and
// padded with black when too narrow. The narration plays over the concatenated clips.
func FFmpegArgs(job RenderJob) []string {
	w, h, fps := job.Width, job.Height, job.FPS
	if w <= 0 || h <= 0 {
		w, h = VideoWidth, VideoHeight
	}
	if fps <= 0 {
		fps = VideoFPS
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, c := range job.Clips {
		args = append(args, "-loop", "1", "-t", strconv.FormatFloat(c.Duration, 'f', 2, 64), "-i", c.Image)
	}
	args = append(args, "-i", job.Audio)

	var filter strings.Builder
	for i := range job.Clips {
		fmt.Fprintf(&filter,
			"[%d:v]scale=-2:%d,crop='min(iw,%d)':%d,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1,fps=%d,format=yuv420p[v%d];",
			i, h, w, h, w, h, fps, i)
	}
	for i := range job.Clips {
		fmt.Fprintf(&filter, "[v%d]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=0[outv]", len(job.Clips))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[outv]",
		"-map", fmt.Sprintf("%d:a", len(job.Clips)),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-r", strconv.Itoa(fps),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		job.Output,
	)
	return args
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/services"
	"github.com/desertthunder/autoshorts/internal/shared"
)

const (
	ScriptFile = "script.json"
	AudioFile  = "narration.mp3"
	VideoFile  = "final_video.mp4"
	ImagesDir  = "images"

	DefaultStageTimeout    = 2 * time.Minute
	DefaultAssemblyTimeout = 10 * time.Minute
)

// UserSource loads users. [repositories.UserRepository] satisfies it.
type UserSource interface {
	Get(id int64) (*models.User, error)
}

// PromptStore loads prompt configs and records covered topics. [repositories.PromptRepository] satisfies it.
type PromptStore interface {
	GetByUser(userID int64) (*models.PromptConfig, error)
	AppendCoveredTopic(configID int64, title string) (bool, error)
}

// Publisher posts a finished video. [services.Publisher] satisfies it.
type Publisher interface {
	Publish(ctx context.Context, userID int64, video services.Video) []services.PostResult
}

// Config tunes a [Pipeline].
type Config struct {
	OutputRoot      string
	StageTimeout    time.Duration
	AssemblyTimeout time.Duration
	ImageRate       float64 // image requests per second; zero is unlimited
}

// ConfigFrom maps the application configuration onto a pipeline [Config].
func ConfigFrom(cfg *shared.Config) Config {
	return Config{
		OutputRoot:      cfg.Output.Root,
		StageTimeout:    cfg.Pipeline.StageTimeout,
		AssemblyTimeout: cfg.Pipeline.AssemblyTimeout,
		ImageRate:       cfg.Pipeline.ImageRate,
	}
}

// Deps are the collaborators a [Pipeline] drives. Publisher is optional.
type Deps struct {
	Text      services.TextGenerator
	Speech    services.SpeechSynthesizer
	Images    services.ImageGenerator
	Renderer  Renderer
	Users     UserSource
	Prompts   PromptStore
	Publisher Publisher
	Logger    *log.Logger
}

// Options control one run.
type Options struct {
	Post     bool
	Progress chan<- ProgressUpdate
}

// Pipeline turns one user's prompt config into a video.
//
// Stages run strictly in order: script, audio, images, assembly. The first
// failure ends the run; files already written stay on disk and nothing is retried.
type Pipeline struct {
	cfg     Config
	deps    Deps
	limiter *rate.Limiter
	logger  *log.Logger
	metrics *Metrics
}

// New creates a pipeline. Every dependency except the publisher is required.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Text == nil:
		return nil, fmt.Errorf("%w: text generator not configured", shared.ErrConfig)
	case deps.Speech == nil:
		return nil, fmt.Errorf("%w: speech synthesizer not configured", shared.ErrConfig)
	case deps.Images == nil:
		return nil, fmt.Errorf("%w: image generator not configured", shared.ErrConfig)
	case deps.Renderer == nil:
		return nil, fmt.Errorf("%w: renderer not configured", shared.ErrConfig)
	case deps.Users == nil || deps.Prompts == nil:
		return nil, fmt.Errorf("%w: store not configured", shared.ErrConfig)
	}

	if cfg.OutputRoot == "" {
		cfg.OutputRoot = "output"
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	if cfg.AssemblyTimeout <= 0 {
		cfg.AssemblyTimeout = DefaultAssemblyTimeout
	}

	limit := rate.Inf
	if cfg.ImageRate > 0 {
		limit = rate.Limit(cfg.ImageRate)
	}

	logger := deps.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	return &Pipeline{
		cfg:     cfg,
		deps:    deps,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		metrics: NewMetrics(),
	}, nil
}

// Generate loads userID's profile and prompt config and runs the pipeline.
//
// The returned run is non-nil whenever the inputs loaded, including on stage failure.
func (p *Pipeline) Generate(ctx context.Context, userID int64, opts Options) (*Run, error) {
	user, err := p.deps.Users.Get(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	prompt, err := p.deps.Prompts.GetByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt config for user %d: %w", userID, err)
	}
	return p.Execute(ctx, user, prompt, opts)
}

type stage struct {
	state   State
	timeout time.Duration
	run     func(ctx context.Context, r *runContext) error
}

type runContext struct {
	run    *Run
	user   *models.User
	prompt *models.PromptConfig
	opts   Options
}

// Execute runs every stage for user and prompt.
func (p *Pipeline) Execute(ctx context.Context, user *models.User, prompt *models.PromptConfig, opts Options) (*Run, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := prompt.Validate(); err != nil {
		return nil, err
	}

	run := newRun(user.ID, prompt.ID)
	logger := shared.WithLogger(p.logger, "run", run.ID, "user", user.ID)
	rc := &runContext{run: run, user: user, prompt: prompt, opts: opts}

	stages := []stage{
		{state: ScriptPending, timeout: p.cfg.StageTimeout, run: p.scriptStage},
		{state: AudioPending, timeout: p.cfg.StageTimeout, run: p.audioStage},
		{state: ImagesPending, run: p.imagesStage},
		{state: AssemblyPending, timeout: p.cfg.AssemblyTimeout, run: p.assemblyStage},
	}

	for _, st := range stages {
		if run.State != st.state {
			return run, fmt.Errorf("%w: expected %s, run is %s", ErrInvalidTransition, st.state, run.State)
		}

		sendProgress(opts.Progress, stageStartedUpdate(run))
		logger.Debug("stage started", "stage", st.state.Stage())

		stageCtx, cancel := ctx, context.CancelFunc(func() {})
		if st.timeout > 0 {
			stageCtx, cancel = context.WithTimeout(ctx, st.timeout)
		}
		start := time.Now()
		err := st.run(stageCtx, rc)
		cancel()
		p.metrics.recordStage(st.state.Stage(), time.Since(start), err)

		if err != nil {
			var se *StageError
			if !errors.As(err, &se) {
				se = collaboratorFailure(st.state.Stage(), 0, err)
			}
			if ferr := run.fail(se); ferr != nil {
				return run, ferr
			}
			p.metrics.recordRun(run)
			sendProgress(opts.Progress, failedUpdate(run, se))
			logger.Error("run failed", "stage", se.Stage, "scene", se.Scene, "error", se.Err)
			return run, se
		}

		sendProgress(opts.Progress, stageFinishedUpdate(run, st.state.Stage()))
		next, _ := run.State.next()
		if err := run.advance(next); err != nil {
			return run, err
		}
	}

	logger.Info("run finished", "title", run.Script.Title, "video", run.Artifact.VideoPath, "duration", run.Duration().Round(time.Millisecond))

	if opts.Post {
		p.publish(ctx, rc, logger)
	}
	p.metrics.recordRun(run)
	return run, nil
}

// publish hands the finished video to the publisher. Failures are reported per platform and never fail the run.
func (p *Pipeline) publish(ctx context.Context, rc *runContext, logger *log.Logger) {
	if p.deps.Publisher == nil {
		logger.Warn("posting requested but no publisher is configured")
		return
	}

	run := rc.run
	run.Posts = p.deps.Publisher.Publish(ctx, run.UserID, services.Video{
		Path:    run.Artifact.VideoPath,
		Title:   run.Script.Title,
		Caption: run.Script.Caption(),
	})
	sendProgress(rc.opts.Progress, publishedUpdate(run))
}

func countPosted(run *Run) int {
	return services.Summary(run.Posts)[services.StatusPosted]
}

func (p *Pipeline) scriptStage(ctx context.Context, rc *runContext) error {
	prompt := rc.prompt

	reply, err := p.deps.Text.GenerateText(ctx, BuildPrompt(prompt))
	if err != nil {
		return collaboratorFailure(StageScript, 0, err)
	}

	script, err := ParseScript(reply)
	if err != nil {
		return collaboratorFailure(StageScript, 0, err)
	}
	if err := script.ValidateFor(prompt.WPM); err != nil {
		return collaboratorFailure(StageScript, 0, err)
	}
	script.RecomputeDurations(prompt.WPM)

	runDir := shared.RunDir(p.cfg.OutputRoot, prompt.ID, script.Title)
	if err := shared.EnsureDir(runDir); err != nil {
		return localFailure(StageScript, err)
	}

	added, err := p.deps.Prompts.AppendCoveredTopic(prompt.ID, script.Title)
	if err != nil {
		return localFailure(StageScript, err)
	}
	if added {
		prompt.CoveredTopics = append(prompt.CoveredTopics, script.Title)
	}

	data, err := json.MarshalIndent(script, "", "  ")
	if err != nil {
		return localFailure(StageScript, err)
	}
	scriptPath := filepath.Join(runDir, ScriptFile)
	if err := os.WriteFile(scriptPath, data, 0644); err != nil {
		return localFailure(StageScript, fmt.Errorf("failed to write script: %w", err))
	}

	rc.run.Script = script
	rc.run.Artifact.RunDir = runDir
	rc.run.Artifact.ScriptPath = scriptPath
	sendProgress(rc.opts.Progress, scriptReadyUpdate(rc.run))
	return nil
}

func (p *Pipeline) audioStage(ctx context.Context, rc *runContext) error {
	audio, err := p.deps.Speech.Synthesize(ctx, rc.run.Script.Narration(), rc.user.VoiceID)
	if err != nil {
		return collaboratorFailure(StageAudio, 0, err)
	}
	defer audio.Close()

	path := filepath.Join(rc.run.Artifact.RunDir, AudioFile)
	if err := writeStream(path, audio); err != nil {
		return streamFailure(StageAudio, 0, err)
	}
	rc.run.Artifact.AudioPath = path
	return nil
}

// imagesStage requests one image per scene in order. Each request gets its own timeout.
func (p *Pipeline) imagesStage(ctx context.Context, rc *runContext) error {
	dir := filepath.Join(rc.run.Artifact.RunDir, ImagesDir)
	if err := shared.EnsureDir(dir); err != nil {
		return localFailure(StageImages, err)
	}

	scenes := rc.run.Script.Scenes
	paths := make([]string, 0, len(scenes))
	for i, scene := range scenes {
		n := i + 1
		if err := p.limiter.Wait(ctx); err != nil {
			return collaboratorFailure(StageImages, n, err)
		}

		path := filepath.Join(dir, ImageName(n, scene.Label))
		if err := p.generateImage(ctx, n, scene.ImagePrompt, path); err != nil {
			return err
		}
		paths = append(paths, path)
		rc.run.Artifact.ImagePaths = paths
		sendProgress(rc.opts.Progress, imageUpdate(rc.run, n, len(scenes), path))
	}
	return nil
}

func (p *Pipeline) generateImage(ctx context.Context, n int, prompt, path string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	img, err := p.deps.Images.Generate(ctx, prompt, VideoWidth, VideoHeight)
	if err != nil {
		return collaboratorFailure(StageImages, n, err)
	}
	defer img.Close()
	if err := writeStream(path, img); err != nil {
		return streamFailure(StageImages, n, err)
	}
	return nil
}

func (p *Pipeline) assemblyStage(ctx context.Context, rc *runContext) error {
	run := rc.run
	job := RenderJob{
		Audio:  run.Artifact.AudioPath,
		Output: filepath.Join(run.Artifact.RunDir, VideoFile),
		Width:  VideoWidth,
		Height: VideoHeight,
		FPS:    VideoFPS,
	}
	for i, scene := range run.Script.Scenes {
		job.Clips = append(job.Clips, Clip{Image: run.Artifact.ImagePaths[i], Duration: scene.Duration})
	}

	if err := p.deps.Renderer.Render(ctx, job); err != nil {
		return collaboratorFailure(StageAssembly, 0, err)
	}
	run.Artifact.VideoPath = job.Output
	return nil
}

// ImageName is the file name of scene n (1-based).
func ImageName(n int, label string) string {
	return fmt.Sprintf("scene_%d_%s.jpg", n, shared.Slug(label))
}

// readError marks a failure reading a collaborator's response body, as opposed to writing the file.
type readError struct{ err error }

func (e *readError) Error() string { return e.err.Error() }
func (e *readError) Unwrap() error { return e.err }

type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

// writeStream copies r to path. A partial file is removed.
//
// Errors reading r are returned as [*readError].
func writeStream(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	src := &sourceReader{r: r}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		if src.err != nil {
			return &readError{err: fmt.Errorf("failed to read %s: %w", filepath.Base(path), src.err)}
		}
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

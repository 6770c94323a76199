package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/autoshorts/internal/pipeline"
	"github.com/desertthunder/autoshorts/internal/repositories"
	"github.com/desertthunder/autoshorts/internal/scheduler"
	"github.com/desertthunder/autoshorts/internal/services"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// Generator runs the pipeline for one user. [pipeline.Pipeline] satisfies it.
type Generator = scheduler.Generator

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The store, pipeline and trigger are built on first use so commands only pay for what they touch.
type Runner struct {
	config     *shared.Config
	configPath string
	secrets    shared.Secrets
	cipher     *shared.Cipher
	cipherErr  error
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	store      *repositories.Store
	generator  Generator
	trigger    scheduler.Trigger
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Store, Generator and Trigger replace the ones built from Config when set.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Secrets    shared.Secrets
	Cipher     *shared.Cipher
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Store      *repositories.Store
	Generator  Generator
	Trigger    scheduler.Trigger
	Now        func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		secrets:    opts.Secrets,
		cipher:     opts.Cipher,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		store:      opts.Store,
		generator:  opts.Generator,
		trigger:    opts.Trigger,
		now:        opts.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, usersCommand, promptCommand, scheduleCommand, credentialsCommand,
		generateCommand, scriptCommand, serveCommand, menuCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads configuration, secrets and the credential cipher ahead of every command.
//
// A missing or malformed encryption key is remembered rather than returned so setup can run without one.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if level := cmd.String("log-level"); level != "" {
		ll, err := shared.ParseLogLevel(level)
		if err != nil {
			return ctx, err
		}
		shared.SetLogLevel(r.logger, ll)
	}

	if path := cmd.String("config"); path != "" && (r.configPath == "" || cmd.IsSet("config")) {
		config, err := shared.LoadConfigOrDefault(path)
		if err != nil {
			return ctx, err
		}
		r.config, r.configPath = config, path
	}

	if r.cipher == nil {
		r.secrets = shared.LoadSecrets(cmd.String("env-file"))
		r.cipher, r.cipherErr = shared.NewCipher(r.secrets.EncryptionKey)
	}
	return ctx, nil
}

// SetLogger replaces the runner's logger, e.g. with a file logger while the menu owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// requireCipher fails with a configuration error when ENCRYPTION_KEY is missing or malformed.
func (r *Runner) requireCipher() error {
	if r.cipher != nil {
		return nil
	}
	if r.cipherErr != nil {
		return r.cipherErr
	}
	return shared.ErrMissingKey
}

// openStore opens the configured database once and applies pending migrations.
func (r *Runner) openStore() (*repositories.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	store, err := repositories.OpenStore(r.config.Database.Path, r.cipher)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(store.DB, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	r.store = store
	return store, nil
}

// Close releases the database when the runner opened one.
func (r *Runner) Close() error {
	if r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	return err
}

// buildGenerator wires the pipeline from configuration: text, speech and image collaborators,
// ffmpeg, and a publisher over every platform uploader.
func (r *Runner) buildGenerator(ctx context.Context) (Generator, error) {
	if r.generator != nil {
		return r.generator, nil
	}
	if err := r.requireCipher(); err != nil {
		return nil, err
	}
	store, err := r.openStore()
	if err != nil {
		return nil, err
	}

	text, err := services.NewTextGenerator(r.config.Pipeline, r.secrets)
	if err != nil {
		return nil, err
	}
	speech, err := services.NewElevenLabsService(r.secrets.ElevenLabsAPIKey, r.config.ElevenLabs, r.httpClient)
	if err != nil {
		return nil, err
	}
	images, err := services.NewStabilityService(r.secrets.StabilityAPIKey, r.config.Stability, r.httpClient)
	if err != nil {
		return nil, err
	}

	uploaders := []services.Uploader{services.NewYouTubeUploader(r.config.YouTube, store.Credentials, r.httpClient)}
	if r.config.Storage.Endpoint != "" {
		bucket, err := services.NewMinioStore(ctx, r.config.Storage, r.secrets.MinioAccessKey, r.secrets.MinioSecretKey)
		if err != nil {
			return nil, err
		}
		uploaders = append(uploaders, services.NewInstagramUploader(r.config.Instagram, bucket, r.config.Storage.PresignExpiry, r.httpClient))
	} else {
		r.logger.Debug("no artifact storage configured, instagram uploads are skipped")
	}

	p, err := pipeline.New(pipeline.ConfigFrom(r.config), pipeline.Deps{
		Text:      text,
		Speech:    speech,
		Images:    images,
		Renderer:  pipeline.NewFFmpegRenderer(r.config.Pipeline.FFmpegPath),
		Users:     store.Users,
		Prompts:   store.Prompts,
		Publisher: services.NewPublisher(store.Credentials, r.logger, uploaders...),
		Logger:    r.logger,
	})
	if err != nil {
		return nil, err
	}
	r.generator = p
	return p, nil
}

// buildTrigger returns the configured trigger, resolving the command a fired OS trigger runs.
func (r *Runner) buildTrigger(kind string) (scheduler.Trigger, error) {
	if r.trigger != nil {
		return r.trigger, nil
	}
	if kind == "" {
		kind = r.config.Scheduler.Trigger
	}

	exe, workDir, err := scheduler.Executable()
	if err != nil {
		return nil, err
	}
	trigger, err := scheduler.NewTrigger(kind, exe, workDir)
	if err != nil {
		return nil, err
	}
	r.trigger = trigger
	return trigger, nil
}

// coordinator builds a [scheduler.Coordinator]. withPipeline also wires the generator for ticks.
func (r *Runner) coordinator(ctx context.Context, withPipeline bool) (*scheduler.Coordinator, error) {
	store, err := r.openStore()
	if err != nil {
		return nil, err
	}
	trigger, err := r.buildTrigger("")
	if err != nil {
		return nil, err
	}

	var gen Generator
	if withPipeline {
		if gen, err = r.buildGenerator(ctx); err != nil {
			return nil, err
		}
	}

	cfg := scheduler.Config{Workers: r.config.Scheduler.Workers, Post: r.config.Pipeline.Post}
	return scheduler.New(cfg, store.Schedules, store.Users, trigger, gen, r.logger), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

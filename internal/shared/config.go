package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Server     ServerConfig     `toml:"server"`
	Output     OutputConfig     `toml:"output"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	ElevenLabs ElevenLabsConfig `toml:"elevenlabs"`
	Stability  StabilityConfig  `toml:"stability"`
	YouTube    YouTubeConfig    `toml:"youtube"`
	Instagram  InstagramConfig  `toml:"instagram"`
	Storage    StorageConfig    `toml:"storage"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the OAuth callback and the daemon.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// OutputConfig controls where run artifacts are written.
type OutputConfig struct {
	Root string `toml:"root"`
}

// PipelineConfig tunes the content pipeline.
type PipelineConfig struct {
	TextProvider    string        `toml:"text_provider"`
	GeminiModel     string        `toml:"gemini_model"`
	OpenAIModel     string        `toml:"openai_model"`
	StageTimeout    time.Duration `toml:"stage_timeout"`
	AssemblyTimeout time.Duration `toml:"assembly_timeout"`
	ImageRate       float64       `toml:"image_rate"`
	FFmpegPath      string        `toml:"ffmpeg_path"`
	Post            bool          `toml:"post"`
}

// SchedulerConfig selects the trigger backend and worker count.
type SchedulerConfig struct {
	Trigger string `toml:"trigger"`
	Workers int    `toml:"workers"`
}

// ElevenLabsConfig contains speech synthesis settings.
type ElevenLabsConfig struct {
	BaseURL      string `toml:"base_url"`
	ModelID      string `toml:"model_id"`
	OutputFormat string `toml:"output_format"`
}

// StabilityConfig contains image generation settings.
type StabilityConfig struct {
	BaseURL string `toml:"base_url"`
}

// YouTubeConfig contains the OAuth client used when a user's credential has none.
type YouTubeConfig struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	RedirectURI   string `toml:"redirect_uri"`
	CategoryID    string `toml:"category_id"`
	PrivacyStatus string `toml:"privacy_status"`
}

// InstagramConfig contains Graph API settings.
type InstagramConfig struct {
	GraphURL     string        `toml:"graph_url"`
	PollInterval time.Duration `toml:"poll_interval"`
	PollAttempts int           `toml:"poll_attempts"`
}

// StorageConfig points at an S3-compatible bucket.
type StorageConfig struct {
	Endpoint      string        `toml:"endpoint"`
	Bucket        string        `toml:"bucket"`
	UseSSL        bool          `toml:"use_ssl"`
	PresignExpiry time.Duration `toml:"presign_expiry"`
}

// Secrets holds API keys and the encryption key read from the environment.
type Secrets struct {
	GoogleAPIKey     string
	OpenAIAPIKey     string
	ElevenLabsAPIKey string
	StabilityAPIKey  string
	EncryptionKey    string
	MinioAccessKey   string
	MinioSecretKey   string
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfig, err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadSecrets reads secrets from the environment after loading any of the given dotenv files.
//
// Missing dotenv files are ignored; variables already set in the environment win.
func LoadSecrets(envFiles ...string) Secrets {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	return Secrets{
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		StabilityAPIKey:  os.Getenv("STABILITY_API_KEY"),
		EncryptionKey:    os.Getenv("ENCRYPTION_KEY"),
		MinioAccessKey:   os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:   os.Getenv("MINIO_SECRET_KEY"),
	}
}

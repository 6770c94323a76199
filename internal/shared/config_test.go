package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./autoshorts.db" {
			t.Errorf("expected database path ./autoshorts.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Pipeline.StageTimeout != 2*time.Minute {
			t.Errorf("expected stage timeout 2m, got %v", config.Pipeline.StageTimeout)
		}

		if config.Scheduler.Workers != 2 {
			t.Errorf("expected 2 workers, got %d", config.Scheduler.Workers)
		}

		if config.ElevenLabs.ModelID != "eleven_multilingual_v2" {
			t.Errorf("expected eleven_multilingual_v2, got %s", config.ElevenLabs.ModelID)
		}

		if config.Server.Addr() != "localhost:3000" {
			t.Errorf("expected localhost:3000, got %s", config.Server.Addr())
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig keeps defaults for missing keys", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[pipeline]
text_provider = "openai"
stage_timeout = "45s"

[scheduler]
trigger = "inprocess"
workers = 4
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Pipeline.TextProvider != "openai" {
			t.Errorf("expected openai provider, got %s", config.Pipeline.TextProvider)
		}
		if config.Pipeline.StageTimeout != 45*time.Second {
			t.Errorf("expected 45s stage timeout, got %v", config.Pipeline.StageTimeout)
		}
		if config.Pipeline.AssemblyTimeout != 10*time.Minute {
			t.Errorf("expected default assembly timeout, got %v", config.Pipeline.AssemblyTimeout)
		}
		if config.Scheduler.Workers != 4 {
			t.Errorf("expected 4 workers, got %d", config.Scheduler.Workers)
		}
	})

	t.Run("LoadConfig rejects invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[database\npath ="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("LoadConfigOrDefault", func(t *testing.T) {
		config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Output.Root != "./output" {
			t.Errorf("expected default output root, got %s", config.Output.Root)
		}
	})
}

func TestLoadSecrets(t *testing.T) {
	t.Run("reads from environment", func(t *testing.T) {
		t.Setenv("GOOGLE_API_KEY", "g-key")
		t.Setenv("ENCRYPTION_KEY", "enc-key")

		secrets := LoadSecrets()
		if secrets.GoogleAPIKey != "g-key" {
			t.Errorf("expected g-key, got %q", secrets.GoogleAPIKey)
		}
		if secrets.EncryptionKey != "enc-key" {
			t.Errorf("expected enc-key, got %q", secrets.EncryptionKey)
		}
	})

	t.Run("loads dotenv without overriding the environment", func(t *testing.T) {
		t.Setenv("ELEVENLABS_API_KEY", "from-env")
		t.Setenv("STABILITY_API_KEY", "")
		os.Unsetenv("STABILITY_API_KEY")

		envPath := filepath.Join(t.TempDir(), ".env")
		content := "ELEVENLABS_API_KEY=from-file\nSTABILITY_API_KEY=stability-from-file\n"
		if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write .env: %v", err)
		}

		secrets := LoadSecrets(envPath, filepath.Join(t.TempDir(), "missing.env"))
		if secrets.ElevenLabsAPIKey != "from-env" {
			t.Errorf("expected environment to win, got %q", secrets.ElevenLabsAPIKey)
		}
		if secrets.StabilityAPIKey != "stability-from-file" {
			t.Errorf("expected value from .env, got %q", secrets.StabilityAPIKey)
		}
	})
}

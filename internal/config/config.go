package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Processing controls the extraction pipeline.
type Processing struct {
	Workers                int      `toml:"workers"`
	DocumentTimeoutSeconds int      `toml:"document_timeout_seconds"` // 0 disables the per-document timeout
	MaxPages               int      `toml:"max_pages"`                // 0 reads every page
	Labels                 []string `toml:"labels"`
}

// Output controls where local runs write their artifacts.
type Output struct {
	Dir          string `toml:"dir"`
	ReportFormat string `toml:"report_format"`
}

// GCP holds the cloud deployment settings.
type GCP struct {
	ProjectID        string `toml:"project_id"`
	OutputBucket     string `toml:"output_bucket"`
	Collection       string `toml:"collection"`
	WorkflowID       string `toml:"workflow_id"`
	WorkflowLocation string `toml:"workflow_location"`
}

// History controls the local run log.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging selects the slog handler.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the full settings tree.
type Config struct {
	Processing Processing `toml:"processing"`
	Output     Output     `toml:"output"`
	GCP        GCP        `toml:"gcp"`
	History    History    `toml:"history"`
	Logging    Logging    `toml:"logging"`
}

// DocumentTimeout is the per-document processing budget, zero when disabled.
func (c *Config) DocumentTimeout() time.Duration {
	return time.Duration(c.Processing.DocumentTimeoutSeconds) * time.Second
}

// WorkflowEnabled reports whether runs hand off to a workflow.
func (c *Config) WorkflowEnabled() bool {
	return c.GCP.WorkflowID != ""
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied on top of the file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// FromEnv builds a config from defaults and environment overrides only, for
// deployments without a config file. Cloud settings are required.
func FromEnv() (*Config, error) {
	cfg := Default()
	cfg.History.Enabled = false
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateCloud(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("checklist-renamer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// DefaultConfigPath is the per-user config file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/checklist-renamer/config.toml")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for command-line flags.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

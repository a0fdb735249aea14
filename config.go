package uploader

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"
)

const (
	EnvAPIKey      = "ROBOFLOW_API_KEY"
	EnvWorkspaceID = "ROBOFLOW_WORKSPACE_ID"
	EnvProjectID   = "ROBOFLOW_PROJECT_ID"
	EnvDatasetPath = "DATASET_PATH"
	EnvProgress    = "UPLOAD_PROGRESS_EVERY"
)

var DefaultSplits = []string{"train", "val", "test"}

const DefaultProgressEvery = 10

// ConfigError marks fatal misconfiguration: missing credentials, missing
// dataset root, missing split directory. Nothing gets uploaded once one
// of these surfaces.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

func ConfigErrorf(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

func IsConfigError(err error) bool {
	var ce *ConfigError
	return xerrors.As(err, &ce)
}

type Config struct {
	APIKey        string
	WorkspaceID   string
	ProjectID     string
	DatasetPath   string
	Splits        []string
	ProgressEvery int
}

// LoadConfig reads configuration from the environment, with an optional
// .env file in the working directory taking effect first.
func LoadConfig() *Config {
	// missing .env is fine, env vars may be set directly
	_ = godotenv.Load()

	cfg := &Config{
		APIKey:        os.Getenv(EnvAPIKey),
		WorkspaceID:   os.Getenv(EnvWorkspaceID),
		ProjectID:     os.Getenv(EnvProjectID),
		DatasetPath:   os.Getenv(EnvDatasetPath),
		Splits:        DefaultSplits,
		ProgressEvery: DefaultProgressEvery,
	}
	if cfg.DatasetPath == "" {
		cfg.DatasetPath = "./dataset"
	}
	if v := os.Getenv(EnvProgress); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ProgressEvery = n
		}
	}
	return cfg
}

func (c *Config) Validate() error {
	missing := make([]string, 0)
	if c.APIKey == "" {
		missing = append(missing, EnvAPIKey)
	}
	if c.WorkspaceID == "" {
		missing = append(missing, EnvWorkspaceID)
	}
	if c.ProjectID == "" {
		missing = append(missing, EnvProjectID)
	}
	if len(missing) > 0 {
		return ConfigErrorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(c.Splits) == 0 {
		return ConfigErrorf("no splits configured")
	}
	return nil
}

// MaskedKey renders the API key safe for printing.
func (c *Config) MaskedKey() string {
	if c.APIKey == "" {
		return "NOT SET"
	}
	if len(c.APIKey) <= 8 {
		return "***"
	}
	return c.APIKey[:8] + "..."
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables overriding config values.
const (
	EnvSandboxTimeout  = "BSCOPE_SANDBOX_TIMEOUT"
	EnvSandboxMemoryMB = "BSCOPE_SANDBOX_MEMORY_MB"
	EnvStrictChunks    = "BSCOPE_STRICT_CHUNKS"
	EnvHTMLExclusive   = "BSCOPE_HTML_EXCLUSIVE"
	EnvHistoryEnabled  = "BSCOPE_HISTORY"
	EnvOutputFormat    = "BSCOPE_FORMAT"
)

// LoadDotEnv loads workDir/.env into the environment. Variables already set
// are kept; a missing file is not an error.
func LoadDotEnv(workDir string) error {
	path := filepath.Join(workDir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with BSCOPE_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvSandboxTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvSandboxTimeout, err)
		}
		cfg.Sandbox.Timeout = d
	}
	if v, ok := os.LookupEnv(EnvSandboxMemoryMB); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvSandboxMemoryMB, err)
		}
		cfg.Sandbox.MemoryLimitMB = n
	}

	for name, target := range map[string]*bool{
		EnvStrictChunks:  &cfg.Analysis.StrictChunkRelations,
		EnvHTMLExclusive: &cfg.Analysis.HTMLExclusiveInitial,
	} {
		if v, ok := os.LookupEnv(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
			}
			*target = b
		}
	}
	if v, ok := os.LookupEnv(EnvHistoryEnabled); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvHistoryEnabled, err)
		}
		cfg.History.Enabled = &b
	}
	if v, ok := os.LookupEnv(EnvOutputFormat); ok {
		cfg.Output.Format = v
	}
	return nil
}

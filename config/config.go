// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"

	_ "codeberg.org/linguafe/linguafe/core/audit" // setup better logging format
	"codeberg.org/linguafe/linguafe/core/completion"
)

// Global exposes the server configuration.
var Global ServerConfig

// ServerConfig holds the application configuration.
type ServerConfig struct {
	Build buildInfo `yaml:"-"`

	Basic struct {
		Host string `env:"LINGUAFE_HOST,overwrite"      yaml:"host"`
		Port string `env:"LINGUAFE_PORT,overwrite"      yaml:"port"`
	} `yaml:"basic"`

	Provider struct {
		Endpoint string `env:"LINGUAFE_PROVIDER_ENDPOINT,overwrite" yaml:"endpoint"`
		APIKey   string `env:"LINGUAFE_PROVIDER_API_KEY"            yaml:"apiKey"`
		Model    string `env:"LINGUAFE_PROVIDER_MODEL,overwrite"    yaml:"model"`

		// Profiles describes which sampling knobs each model family
		// accepts. Defaults come from completion.DefaultProfiles.
		Profiles []completion.ParamProfile `yaml:"profiles"`
	} `yaml:"provider"`

	Translation struct {
		TargetLang   string  `env:"LINGUAFE_TARGET_LANG,overwrite"  yaml:"targetLang"`
		RPS          float64 `env:"LINGUAFE_RPS,overwrite"          yaml:"rps"`
		BatchBudget  int     `env:"LINGUAFE_BATCH_BUDGET,overwrite" yaml:"batchBudget"`
		Delimiter    string  `env:"LINGUAFE_DELIMITER"              yaml:"delimiter"`
		SystemPrompt string  `yaml:"systemPrompt"`
		BatchPrompt  string  `yaml:"batchPrompt"`
	} `yaml:"translation"`

	Cache struct {
		Capacity int  `env:"LINGUAFE_CACHE_CAPACITY,overwrite" yaml:"capacity"`
		Compress bool `env:"LINGUAFE_CACHE_COMPRESS,overwrite" yaml:"compress"`
	} `yaml:"cache"`

	// Limiter throttles inbound API clients; the outbound provider rate is
	// governed by the translation rate queue, not here.
	Limiter struct {
		Enabled bool    `env:"LINGUAFE_LIMITER,overwrite"       yaml:"enabled"`
		RPS     float64 `env:"LINGUAFE_LIMITER_RPS,overwrite"   yaml:"rps"`
		Burst   int     `env:"LINGUAFE_LIMITER_BURST,overwrite" yaml:"burst"`
	} `yaml:"limiter"`

	Development struct {
		InDevelopment        bool   `env:"LINGUAFE_DEV"                               yaml:"inDevelopment"`
		SaveResponses        bool   `env:"LINGUAFE_SAVE_RESPONSES,overwrite"          yaml:"saveResponses"`
		ResponseSaveLocation string `env:"LINGUAFE_RESPONSE_SAVE_LOCATION,overwrite"  yaml:"responseSaveLocation"`
	} `yaml:"development"`

	Log struct {
		Level   string   `env:"LINGUAFE_LOG_LEVEL,overwrite"   yaml:"logLevel"`
		Outputs []string `env:"LINGUAFE_LOG_OUTPUTS,overwrite" yaml:"logOutputs"`
		Format  string   `env:"LINGUAFE_LOG_FORMAT,overwrite"  yaml:"logFormat"`
	} `yaml:"log"`

	Instance struct {
		StartingTime string `yaml:"-"`
	} `yaml:"instance"`
}

// LoadConfig loads the configuration from various sources.
func (cfg *ServerConfig) LoadConfig() error {
	parsedConfigFlagValue := parseCommandLineArgs()

	// Check if the -config flag was explicitly set by the user.
	configFlagUserSet := false

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			configFlagUserSet = true
		}
	})

	var configFilePath string

	// Determine the config file path with the correct precedence:
	// 1. Command-line flag (-config)
	// 2. Environment variable (LINGUAFE_CONFIGFILE)
	// 3. Default path with fallback check
	if configFlagUserSet {
		configFilePath = parsedConfigFlagValue
	} else if envVar := os.Getenv("LINGUAFE_CONFIGFILE"); envVar != "" {
		configFilePath = envVar
	} else {
		configFilePath = parsedConfigFlagValue
		// Then, perform a fallback check for "./config.yml".
		if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
			ymlPath := "./config.yml"
			if _, statErr := os.Stat(ymlPath); statErr == nil {
				configFilePath = ymlPath
			}
		}
	}

	cfg.SetDefaults()

	cfg.Build.load()

	cfg.Instance.StartingTime = time.Now().UTC().Format("2006-01-02 15:04")

	if err := cfg.readYAML(configFilePath); err != nil {
		return fmt.Errorf("error loading YAML config: %w", err)
	}

	if err := useDotEnv(); err != nil {
		return fmt.Errorf("error using .env file: %w", err)
	}

	if err := readEnv(cfg); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}

	if err := cfg.validateAndSet(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	cfg.setupAudit()

	cfg.print()

	// Heuristically check for containerized environment and warn if host is not a wildcard address.
	if isContainerized() && cfg.Basic.Host != "0.0.0.0" && cfg.Basic.Host != "::" {
		log.Warn().
			Str("host", cfg.Basic.Host).
			Msg("Running in a containerized environment but host is not a wildcard address (e.g., '0.0.0.0' or '::'). This may prevent the service from being accessible outside the container.")
	}

	return nil
}

// Liveness probes would otherwise dominate the request log.
var skippedLoggingPaths = []string{"/health"}

// ShouldSkipServerLogging determines if a request should bypass the logging middleware.
func (cfg *ServerConfig) ShouldSkipServerLogging(path string) bool {
	return slices.Contains(skippedLoggingPaths, path)
}

// isContainerized checks for common indicators of a containerized environment.
//
// This is a heuristic and may not be 100% accurate.
func isContainerized() bool {
	// Check for a Kubernetes-injected environment variable.
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}

	// Check for existence of container-specific files.
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	if _, err := os.Stat("/.containerenv"); err == nil {
		return true
	}

	// Check the cgroup of the current process.
	// #nosec G304 -- We are checking for the existence and content of a well-known system file for heuristics.
	cgroup, err := os.ReadFile("/proc/self/cgroup")
	if err == nil {
		content := string(cgroup)

		// Check for keywords common in container cgroup paths.
		return strings.Contains(content, "docker") ||
			strings.Contains(content, "kubepods") ||
			strings.Contains(content, "containerd") ||
			strings.Contains(content, "lxc") ||
			strings.Contains(content, "crio") ||
			// systemd-nspawn containers
			strings.Contains(content, ".machine")
	}

	return false
}

// GetDurationEncoderOption returns a YAML encoder option that marshals
// time.Duration into a human-readable string format (e.g., "30m", "1h").
func GetDurationEncoderOption() yaml.EncodeOption {
	return yaml.CustomMarshaler[time.Duration](
		func(d time.Duration) ([]byte, error) {
			return yaml.Marshal(d.String())
		},
	)
}

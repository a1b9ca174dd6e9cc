// Package config loads and validates the agent's settings object.
//
// Configuration is resolved in priority order:
//
//  1. the license blob embedded in the binary by the patching step
//  2. the sidecar file next to the executable (<executable>.config)
//
// with individual fields then overridable from the environment under the
// OVERLOAD_ prefix, and the server URL finally overridable by a value
// injected at build time, which takes precedence over everything.
package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	apperrors "overload/internal/errors"
	"overload/internal/kill"
)

const (
	// envPrefix scopes environment overrides, e.g. OVERLOAD_SERVER_URL.
	envPrefix = "OVERLOAD"

	// NoDestructEnv, when set, disables self-destruction on a
	// configuration-load failure in favor of a plain nonzero exit.
	NoDestructEnv = "OVERLOAD_NO_DESTRUCT"

	// SidecarSuffix is appended to the executable path to locate the
	// sidecar configuration file.
	SidecarSuffix = ".config"
)

// buildServerURL is injected at build time with
// -ldflags "-X overload/internal/config.buildServerURL=...". When
// non-empty it overrides any configured server URL.
var buildServerURL string

// Config is the immutable settings object consumed by the agent. Only
// the effective server URL can differ from what was loaded, via the
// build-time override.
type Config struct {
	// LicenseID identifies the license record at the authority.
	LicenseID string `json:"license_id" envconfig:"LICENSE_ID" validate:"required"`

	// ServerURL is the verification authority base URL.
	ServerURL string `json:"server_url" envconfig:"SERVER_URL"`

	// SharedSecret keys the request signatures.
	SharedSecret string `json:"shared_secret" envconfig:"SHARED_SECRET" validate:"required"`

	// CheckIntervalMS controls the verification loop: 0 means a single
	// check then exit, any positive value loops with that interval.
	CheckIntervalMS uint64 `json:"check_interval_ms" envconfig:"CHECK_INTERVAL_MS"`

	// SelfDestruct enables secure self-deletion on unauthorized access.
	SelfDestruct bool `json:"self_destruct" envconfig:"SELF_DESTRUCT"`

	// KillMethod is the anti-tamper response severity.
	KillMethod kill.Method `json:"kill_method" envconfig:"KILL_METHOD" validate:"omitempty,oneof=stop delete shred"`

	// LogLevel is one of debug, info, warn, error, none.
	LogLevel string `json:"log_level" envconfig:"LOG_LEVEL"`

	// ExecutionMode selects the launch strategy: "attached" runs the
	// verification loop in-process, "sync" verifies before handing
	// control back to the loader, "async" starts the base binary first
	// and verifies concurrently.
	ExecutionMode string `json:"execution_mode" envconfig:"EXECUTION_MODE" validate:"omitempty,oneof=attached sync async"`

	// BaseBinaryPath locates the protected workload for async mode.
	BaseBinaryPath string `json:"base_binary_path,omitempty" envconfig:"BASE_BINARY_PATH"`
}

// Execution modes.
const (
	ModeAttached = "attached"
	ModeSync     = "sync"
	ModeAsync    = "async"
)

func defaults() Config {
	return Config{
		SelfDestruct:  true,
		KillMethod:    kill.Shred,
		LogLevel:      "info",
		ExecutionMode: ModeAttached,
	}
}

// Load resolves the configuration from the embedded license blob, falling
// back to the sidecar file, then applies environment overrides and
// validates the result.
func Load() (*Config, error) {
	cfg, err := LoadEmbedded()
	if err != nil {
		sidecarCfg, sidecarErr := LoadSidecar()
		if sidecarErr != nil {
			return nil, apperrors.Configf("no embedded license (%v) and no sidecar config (%v)", err, sidecarErr)
		}
		cfg = sidecarCfg
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, apperrors.Config("environment overrides", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSidecar reads <executable>.config.
func LoadSidecar() (*Config, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, apperrors.Config("executable path", err)
	}

	data, err := os.ReadFile(exe + SidecarSuffix)
	if err != nil {
		return nil, apperrors.Config("read sidecar", err)
	}
	return Parse(data)
}

// Parse decodes a JSON configuration document over the defaults, so
// absent fields keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, apperrors.Config("parse", err)
	}
	return &cfg, nil
}

// Validate checks the settings object. The effective server URL is
// validated rather than the raw field, since the build-time override may
// supply it.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return apperrors.Config("validate", err)
	}

	url := c.EffectiveServerURL()
	if url == "" {
		return apperrors.Configf("server_url cannot be empty")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return apperrors.Configf("server_url must start with http:// or https://")
	}

	if c.ExecutionMode == ModeAsync && c.BaseBinaryPath == "" {
		return apperrors.Configf("async execution requires base_binary_path")
	}
	return nil
}

// EffectiveServerURL returns the build-injected server URL when present,
// otherwise the configured one.
func (c *Config) EffectiveServerURL() string {
	if buildServerURL != "" {
		return buildServerURL
	}
	return c.ServerURL
}

// CheckInterval returns the verification interval as a duration. Zero
// means a single verification then exit.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMS) * time.Millisecond
}

// SelfDestructDisabled reports whether the environment escape hatch for
// config-failure self-destruction is set.
func SelfDestructDisabled() bool {
	_, set := os.LookupEnv(NoDestructEnv)
	return set
}

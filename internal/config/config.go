// Package config provides configuration loading and validation for boostsync.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/boostsync/internal/telemetry"
)

// EnvPrefix is the prefix for environment variables read by boostsync
const EnvPrefix = "BOOSTSYNC"

const (
	// DefaultVanityInterval is the time between vanity ticks
	DefaultVanityInterval = 30 * time.Second

	// DefaultRequiredMisses is the debounce threshold for vanity codes
	DefaultRequiredMisses = 5

	// DefaultInviteEndpoint is the invite lookup base URL
	DefaultInviteEndpoint = "https://discord.com/api/v10/invites"

	// DefaultAuthScheme prefixes the token in the Authorization header
	DefaultAuthScheme = "Bot"

	// DefaultCommandPrefix marks operator commands
	DefaultCommandPrefix = "!"

	// DefaultPageSize is the member page size for bulk reconciliation
	DefaultPageSize = 1000

	// MaxPageSize is the largest page the member listing endpoint accepts
	MaxPageSize = 1000

	// DefaultAPIAddress is the listen address of the HTTP API
	DefaultAPIAddress = ":8080"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Guilds    GuildsConfig      `yaml:"guilds"`
	Roles     RolesConfig       `yaml:"roles"`
	Vanity    VanityConfig      `yaml:"vanity"`
	Admin     AdminConfig       `yaml:"admin"`
	Reconcile ReconcileConfig   `yaml:"reconcile"`
	API       APIConfig         `yaml:"api"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// GuildsConfig names the two communities
type GuildsConfig struct {
	// Source is the guild whose boosters are tracked
	Source string `yaml:"source"`

	// Target is the guild where access is granted or denied
	Target string `yaml:"target"`
}

// RolesConfig names the managed roles
type RolesConfig struct {
	// Booster is the platform-managed subscriber role in the source guild
	Booster string `yaml:"booster"`

	// Custom is the bot-managed booster role in the source guild.
	// Leave empty to skip custom role management.
	Custom string `yaml:"custom,omitempty"`

	// Access and Denied are mutually exclusive roles in the target guild
	Access string `yaml:"access"`
	Denied string `yaml:"denied"`
}

// VanityConfig configures the invite availability poller
type VanityConfig struct {
	// Codes are the reserved invite codes to watch
	Codes []string `yaml:"codes,omitempty"`

	// Interval is the time between ticks (e.g., "30s", "1m")
	Interval string `yaml:"interval,omitempty"`

	// RequiredMisses is the number of consecutive "not found" results
	// needed before a code is reported available
	RequiredMisses int `yaml:"requiredMisses,omitempty"`

	// Endpoint is the invite lookup base URL; the code is appended as a path segment
	Endpoint string `yaml:"endpoint,omitempty"`

	// AuthScheme prefixes the token in the Authorization header
	AuthScheme string `yaml:"authScheme,omitempty"`

	// NotifyUserID receives the availability DM. Defaults to the operator.
	NotifyUserID string `yaml:"notifyUserID,omitempty"`
}

// AdminConfig configures operator commands
type AdminConfig struct {
	OperatorID string `yaml:"operatorID,omitempty"`
	Prefix     string `yaml:"prefix,omitempty"`
}

// ReconcileConfig configures bulk reconciliation
type ReconcileConfig struct {
	// OnStartup runs a full pass over the source guild at startup. Defaults to true.
	OnStartup *bool `yaml:"onStartup,omitempty"`
	PageSize  int   `yaml:"pageSize,omitempty"`
}

// APIConfig configures the HTTP API
type APIConfig struct {
	Address string `yaml:"address,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ApplyCredentials overlays environment-provided values onto the file configuration
func (c *Config) ApplyCredentials(creds *Credentials) {
	if creds == nil {
		return
	}
	if creds.OperatorID != "" {
		c.Admin.OperatorID = creds.OperatorID
	}
}

// GetInterval returns the vanity tick interval, using the default if unset
func (v *VanityConfig) GetInterval() time.Duration {
	if v.Interval == "" {
		return DefaultVanityInterval
	}
	d, err := time.ParseDuration(v.Interval)
	if err != nil || d <= 0 {
		return DefaultVanityInterval
	}
	return d
}

// GetRequiredMisses returns the debounce threshold, using the default if unset
func (v *VanityConfig) GetRequiredMisses() int {
	if v.RequiredMisses <= 0 {
		return DefaultRequiredMisses
	}
	return v.RequiredMisses
}

// GetEndpoint returns the invite lookup endpoint without a trailing slash
func (v *VanityConfig) GetEndpoint() string {
	if v.Endpoint == "" {
		return DefaultInviteEndpoint
	}
	return strings.TrimRight(v.Endpoint, "/")
}

// GetAuthScheme returns the Authorization scheme, using "Bot" if unset
func (v *VanityConfig) GetAuthScheme() string {
	if v.AuthScheme == "" {
		return DefaultAuthScheme
	}
	return v.AuthScheme
}

// GetNotifyUserID returns who receives availability notifications
func (c *Config) GetNotifyUserID() string {
	if c.Vanity.NotifyUserID != "" {
		return c.Vanity.NotifyUserID
	}
	return c.Admin.OperatorID
}

// GetPrefix returns the command prefix, using "!" if unset
func (a *AdminConfig) GetPrefix() string {
	if a.Prefix == "" {
		return DefaultCommandPrefix
	}
	return a.Prefix
}

// ShouldReconcileOnStartup reports whether a bulk pass runs at startup
func (r *ReconcileConfig) ShouldReconcileOnStartup() bool {
	return r.OnStartup == nil || *r.OnStartup
}

// GetPageSize returns the member page size, using the default if unset
func (r *ReconcileConfig) GetPageSize() int {
	if r.PageSize <= 0 {
		return DefaultPageSize
	}
	return r.PageSize
}

// GetAddress returns the API listen address, using ":8080" if unset
func (a *APIConfig) GetAddress() string {
	if a.Address == "" {
		return DefaultAPIAddress
	}
	return a.Address
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateGuilds(&c.Guilds); err != nil {
		return err
	}
	if err := validateRoles(&c.Roles); err != nil {
		return err
	}
	if err := validateVanity(&c.Vanity); err != nil {
		return err
	}

	if c.Reconcile.PageSize < 0 || c.Reconcile.PageSize > MaxPageSize {
		return fmt.Errorf("reconcile.pageSize must be between 1 and %d", MaxPageSize)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

// validateGuilds ensures both guilds are configured and distinct
func validateGuilds(g *GuildsConfig) error {
	if g.Source == "" {
		return fmt.Errorf("guilds.source is required")
	}
	if g.Target == "" {
		return fmt.Errorf("guilds.target is required")
	}
	if g.Source == g.Target {
		return fmt.Errorf("guilds.source and guilds.target must differ")
	}
	return nil
}

// validateRoles ensures the required roles are set and the access pair is distinct
func validateRoles(r *RolesConfig) error {
	if r.Booster == "" {
		return fmt.Errorf("roles.booster is required")
	}
	if r.Access == "" {
		return fmt.Errorf("roles.access is required")
	}
	if r.Denied == "" {
		return fmt.Errorf("roles.denied is required")
	}
	if r.Access == r.Denied {
		return fmt.Errorf("roles.access and roles.denied must differ")
	}
	return nil
}

// validateVanity validates the poller settings
func validateVanity(v *VanityConfig) error {
	if v.Interval != "" {
		d, err := time.ParseDuration(v.Interval)
		if err != nil {
			return fmt.Errorf("vanity.interval must be a valid duration (e.g., '30s', '1m'): %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("vanity.interval must be positive")
		}
	}

	if v.RequiredMisses < 0 {
		return fmt.Errorf("vanity.requiredMisses must not be negative")
	}

	if v.Endpoint != "" {
		u, err := url.Parse(v.Endpoint)
		if err != nil {
			return fmt.Errorf("vanity.endpoint is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("vanity.endpoint must use http or https, got %q", u.Scheme)
		}
	}

	for i, code := range v.Codes {
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("vanity.codes[%d] is empty", i)
		}
		if strings.Contains(code, "/") {
			return fmt.Errorf("vanity.codes[%d] (%s) must not contain '/'", i, code)
		}
	}

	return nil
}

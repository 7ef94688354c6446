package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/boostsync/internal/telemetry"
)

const minimalYAML = `guilds:
  source: "111"
  target: "222"
roles:
  booster: "b"
  access: "a"
  denied: "d"`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func boolPtr(b bool) *bool { return &b }

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		yamlContent string
		wantConfig  *Config
		wantErr     string
	}{
		{
			name: "full_config",
			yamlContent: `guilds:
  source: "111"
  target: "222"
roles:
  booster: "b"
  custom: "c"
  access: "a"
  denied: "d"
vanity:
  codes: ["vanityteen", "other"]
  interval: "45s"
  requiredMisses: 3
  endpoint: https://example.com/api/invites/
  authScheme: Bearer
  notifyUserID: "999"
admin:
  operatorID: "42"
  prefix: "?"
reconcile:
  onStartup: false
  pageSize: 500
api:
  address: ":9090"
telemetry:
  enabled: true
  serviceName: boost`,
			wantConfig: &Config{
				Guilds: GuildsConfig{Source: "111", Target: "222"},
				Roles:  RolesConfig{Booster: "b", Custom: "c", Access: "a", Denied: "d"},
				Vanity: VanityConfig{
					Codes:          []string{"vanityteen", "other"},
					Interval:       "45s",
					RequiredMisses: 3,
					Endpoint:       "https://example.com/api/invites/",
					AuthScheme:     "Bearer",
					NotifyUserID:   "999",
				},
				Admin:     AdminConfig{OperatorID: "42", Prefix: "?"},
				Reconcile: ReconcileConfig{OnStartup: boolPtr(false), PageSize: 500},
				API:       APIConfig{Address: ":9090"},
				Telemetry: &telemetry.Config{Enabled: true, ServiceName: "boost"},
			},
		},
		{
			name:        "minimal_config",
			yamlContent: minimalYAML,
			wantConfig: &Config{
				Guilds: GuildsConfig{Source: "111", Target: "222"},
				Roles:  RolesConfig{Booster: "b", Access: "a", Denied: "d"},
			},
		},
		{
			name:        "invalid_yaml",
			yamlContent: "guilds: [",
			wantErr:     "failed to parse YAML config",
		},
		{
			name: "missing_source_guild",
			yamlContent: `guilds:
  target: "222"
roles: {booster: b, access: a, denied: d}`,
			wantErr: "guilds.source is required",
		},
		{
			name: "same_guilds",
			yamlContent: `guilds: {source: "1", target: "1"}
roles: {booster: b, access: a, denied: d}`,
			wantErr: "must differ",
		},
		{
			name: "missing_denied_role",
			yamlContent: `guilds: {source: "1", target: "2"}
roles: {booster: b, access: a}`,
			wantErr: "roles.denied is required",
		},
		{
			name: "access_equals_denied",
			yamlContent: `guilds: {source: "1", target: "2"}
roles: {booster: b, access: a, denied: a}`,
			wantErr: "roles.access and roles.denied must differ",
		},
		{
			name: "bad_interval",
			yamlContent: minimalYAML + `
vanity:
  interval: soon`,
			wantErr: "vanity.interval must be a valid duration",
		},
		{
			name: "negative_interval",
			yamlContent: minimalYAML + `
vanity:
  interval: -5s`,
			wantErr: "vanity.interval must be positive",
		},
		{
			name: "bad_endpoint_scheme",
			yamlContent: minimalYAML + `
vanity:
  endpoint: ftp://example.com`,
			wantErr: "must use http or https",
		},
		{
			name: "blank_code",
			yamlContent: minimalYAML + `
vanity:
  codes: ["ok", " "]`,
			wantErr: "vanity.codes[1] is empty",
		},
		{
			name: "page_size_too_large",
			yamlContent: minimalYAML + `
reconcile:
  pageSize: 5000`,
			wantErr: "reconcile.pageSize",
		},
		{
			name: "tracing_sampling_out_of_range",
			yamlContent: minimalYAML + `
telemetry:
  enabled: true
  tracing:
    enabled: true
    sampling: 1.5`,
			wantErr: "telemetry: tracing: sampling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			configPath := writeConfig(t, tt.yamlContent)
			config, err := LoadConfig(WithConfigPath(configPath))

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, config)
		})
	}
}

func TestLoadConfig_RequiresPath(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to evaluate symlinks")
}

func TestWithConfigPath(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	realPath := filepath.Join(tmpDir, "real.yaml")
	require.NoError(t, os.WriteFile(realPath, []byte(minimalYAML), 0600))

	linkPath := filepath.Join(tmpDir, "link.yaml")
	require.NoError(t, os.Symlink(realPath, linkPath))

	resolvedReal, err := filepath.EvalSymlinks(realPath)
	require.NoError(t, err)

	tests := []struct {
		name     string
		path     string
		wantPath string
		wantErr  bool
	}{
		{name: "empty path", path: "", wantErr: true},
		{name: "path traversal", path: "../../etc/does-not-exist", wantErr: true},
		{name: "absolute path", path: realPath, wantPath: resolvedReal},
		{name: "symlink is resolved", path: linkPath, wantPath: resolvedReal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &loaderConfig{}
			err := WithConfigPath(tt.path)(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, cfg.path)
		})
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, DefaultVanityInterval, cfg.Vanity.GetInterval())
	assert.Equal(t, DefaultRequiredMisses, cfg.Vanity.GetRequiredMisses())
	assert.Equal(t, DefaultInviteEndpoint, cfg.Vanity.GetEndpoint())
	assert.Equal(t, DefaultAuthScheme, cfg.Vanity.GetAuthScheme())
	assert.Equal(t, DefaultCommandPrefix, cfg.Admin.GetPrefix())
	assert.True(t, cfg.Reconcile.ShouldReconcileOnStartup())
	assert.Equal(t, DefaultPageSize, cfg.Reconcile.GetPageSize())
	assert.Equal(t, DefaultAPIAddress, cfg.API.GetAddress())
	assert.Empty(t, cfg.GetNotifyUserID())
}

func TestGetters(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Vanity: VanityConfig{
			Interval:       "2m",
			RequiredMisses: 7,
			Endpoint:       "http://localhost:1234/invites/",
		},
		Admin:     AdminConfig{OperatorID: "42"},
		Reconcile: ReconcileConfig{OnStartup: boolPtr(false), PageSize: 10},
	}

	assert.Equal(t, 2*time.Minute, cfg.Vanity.GetInterval())
	assert.Equal(t, 7, cfg.Vanity.GetRequiredMisses())
	assert.Equal(t, "http://localhost:1234/invites", cfg.Vanity.GetEndpoint())
	assert.False(t, cfg.Reconcile.ShouldReconcileOnStartup())
	assert.Equal(t, 10, cfg.Reconcile.GetPageSize())

	// Notifications fall back to the operator
	assert.Equal(t, "42", cfg.GetNotifyUserID())
	cfg.Vanity.NotifyUserID = "7"
	assert.Equal(t, "7", cfg.GetNotifyUserID())
}

func TestLoadCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		environ map[string]string
		want    *Credentials
		wantErr bool
	}{
		{
			name:    "token only",
			environ: map[string]string{"BOOSTSYNC_TOKEN": "abc"},
			want:    &Credentials{Token: "abc"},
		},
		{
			name:    "token and operator",
			environ: map[string]string{"BOOSTSYNC_TOKEN": "abc", "BOOSTSYNC_OPERATOR_ID": "42"},
			want:    &Credentials{Token: "abc", OperatorID: "42"},
		},
		{
			name:    "missing token",
			environ: map[string]string{"BOOSTSYNC_OPERATOR_ID": "42"},
			wantErr: true,
		},
		{
			name:    "empty token",
			environ: map[string]string{"BOOSTSYNC_TOKEN": ""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			creds, err := loadCredentials(env.Options{Environment: tt.environ})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, creds)
		})
	}
}

func TestApplyCredentials(t *testing.T) {
	t.Parallel()

	cfg := &Config{Admin: AdminConfig{OperatorID: "file"}}

	cfg.ApplyCredentials(nil)
	assert.Equal(t, "file", cfg.Admin.OperatorID)

	cfg.ApplyCredentials(&Credentials{Token: "t"})
	assert.Equal(t, "file", cfg.Admin.OperatorID)

	cfg.ApplyCredentials(&Credentials{Token: "t", OperatorID: "env"})
	assert.Equal(t, "env", cfg.Admin.OperatorID)
}

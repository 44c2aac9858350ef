package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantErr     bool
		errContains string
	}{
		{
			name: "valid config",
			config: Config{
				Spec:   "argo.yaml",
				API:    APIConfig{BaseURL: "https://argo.example.com:2746", Timeout: time.Second},
				Server: ServerConfig{Transport: "http", Listen: ":8080", Path: "/mcp"},
				Log:    LogConfig{Level: "debug", Format: "json"},
			},
			wantErr: false,
		},
		{
			name:        "missing spec",
			config:      Config{},
			wantErr:     true,
			errContains: "spec file is required",
		},
		{
			name: "relative base url",
			config: Config{
				Spec: "argo.yaml",
				API:  APIConfig{BaseURL: "/api/v1"},
			},
			wantErr:     true,
			errContains: "invalid base url",
		},
		{
			name: "negative timeout",
			config: Config{
				Spec: "argo.yaml",
				API:  APIConfig{Timeout: -time.Second},
			},
			wantErr:     true,
			errContains: "api timeout must not be negative",
		},
		{
			name: "invalid transport",
			config: Config{
				Spec:   "argo.yaml",
				Server: ServerConfig{Transport: "websocket"},
			},
			wantErr:     true,
			errContains: "invalid transport",
		},
		{
			name: "sse without listen address",
			config: Config{
				Spec:   "argo.yaml",
				Server: ServerConfig{Transport: "sse"},
			},
			wantErr:     true,
			errContains: "listen address is required",
		},
		{
			name: "stdio ignores listen address",
			config: Config{
				Spec:   "argo.yaml",
				Server: ServerConfig{Transport: "stdio"},
			},
			wantErr: false,
		},
		{
			name: "relative server path",
			config: Config{
				Spec:   "argo.yaml",
				Server: ServerConfig{Transport: "http", Listen: ":8080", Path: "mcp"},
			},
			wantErr:     true,
			errContains: "invalid server path",
		},
		{
			name: "invalid log level",
			config: Config{
				Spec: "argo.yaml",
				Log:  LogConfig{Level: "trace"},
			},
			wantErr:     true,
			errContains: "invalid log level",
		},
		{
			name: "invalid log format",
			config: Config{
				Spec: "argo.yaml",
				Log:  LogConfig{Format: "logfmt"},
			},
			wantErr:     true,
			errContains: "invalid log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					require.Contains(t, err.Error(), tt.errContains)
				}
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{}
	BindCommonFlags(cmd)
	BindServeFlags(cmd)
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := newCommand()
	require.NoError(t, cmd.PersistentFlags().Set("spec", "argo.yaml"))

	cfg, err := Load(cmd)
	require.NoError(t, err)

	require.Equal(t, "argo.yaml", cfg.Spec)
	require.Equal(t, 30*time.Second, cfg.API.Timeout)
	require.Equal(t, uint(2), cfg.API.Retries)
	require.Equal(t, "argo-mcp", cfg.Server.Name)
	require.Equal(t, "stdio", cfg.Server.Transport)
	require.Equal(t, "/mcp", cfg.Server.Path)
	require.Equal(t, "argo", cfg.Tools.DefaultNamespace)
	require.True(t, cfg.Tools.Convenience)
	require.False(t, cfg.Tools.StrictValidation)
	require.Equal(t, "info", cfg.Log.Level)
	require.False(t, cfg.HTTPTransport())
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
spec: argo.yaml
api:
  base-url: https://argo.example.com:2746
  timeout: 5s
  retries: 0
  headers:
    X-Tenant: data
server:
  transport: http
  listen: 127.0.0.1:9000
  auth-tokens: [secret]
tools:
  include-tags: [WorkflowService]
  convenience: false
log:
  format: json
`
	err := os.WriteFile(filepath.Join(tmpDir, DefaultFile), []byte(configContent), 0644)
	require.NoError(t, err)

	// Change to temp dir so argo-mcp.yaml is found
	t.Chdir(tmpDir)

	cfg, err := Load(newCommand())
	require.NoError(t, err)

	require.Equal(t, "argo.yaml", cfg.Spec)
	require.Equal(t, "https://argo.example.com:2746", cfg.API.BaseURL)
	require.Equal(t, 5*time.Second, cfg.API.Timeout)
	require.Equal(t, uint(0), cfg.API.Retries)
	require.Equal(t, map[string]string{"X-Tenant": "data"}, cfg.API.Headers)
	require.Equal(t, "http", cfg.Server.Transport)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	require.Equal(t, []string{"secret"}, cfg.Server.AuthTokens)
	require.Equal(t, []string{"WorkflowService"}, cfg.Tools.IncludeTags)
	require.False(t, cfg.Tools.Convenience)
	require.Equal(t, "json", cfg.Log.Format)
	require.True(t, cfg.HTTPTransport())
}

func TestLoadPrecedence(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
spec: argo.yaml
api:
  base-url: https://file.example.com
  token: from-file
tools:
  default-namespace: file-ns
`
	err := os.WriteFile(filepath.Join(tmpDir, DefaultFile), []byte(configContent), 0644)
	require.NoError(t, err)
	t.Chdir(tmpDir)

	t.Setenv("ARGO_MCP_API__BASE_URL", "https://env.example.com")
	t.Setenv("ARGO_MCP_API__TOKEN", "from-env")
	t.Setenv("ARGO_MCP_TOOLS__EXCLUDE_TAGS", "ArchivedWorkflowService, InfoService")

	cmd := newCommand()
	require.NoError(t, cmd.PersistentFlags().Set("token", "from-flag"))
	require.NoError(t, cmd.Flags().Set("transport", "sse"))

	cfg, err := Load(cmd)
	require.NoError(t, err)

	// env overrides file
	require.Equal(t, "https://env.example.com", cfg.API.BaseURL)
	require.Equal(t, []string{"ArchivedWorkflowService", "InfoService"}, cfg.Tools.ExcludeTags)
	// flags override env
	require.Equal(t, "from-flag", cfg.API.Token)
	require.Equal(t, "sse", cfg.Server.Transport)
	// untouched keys keep the file value
	require.Equal(t, "file-ns", cfg.Tools.DefaultNamespace)
}

func TestLoadWithExplicitConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(t.TempDir())

	configContent := `
spec: custom.yaml
tools:
  strict-validation: true
`
	configPath := filepath.Join(tmpDir, "custom-config.yaml")
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cmd := newCommand()
	require.NoError(t, cmd.PersistentFlags().Set("config", configPath))

	cfg, err := Load(cmd)
	require.NoError(t, err)

	require.Equal(t, "custom.yaml", cfg.Spec)
	require.True(t, cfg.Tools.StrictValidation)
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := newCommand()
	require.NoError(t, cmd.PersistentFlags().Set("config", "missing.yaml"))

	_, err := Load(cmd)
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading config file")
}

func TestLoadDotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	// Registered so the variable is cleared again after the test.
	t.Setenv("ARGO_MCP_SPEC", "")
	require.NoError(t, os.Unsetenv("ARGO_MCP_SPEC"))

	err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("ARGO_MCP_SPEC=from-dotenv.yaml\n"), 0644)
	require.NoError(t, err)

	cfg, err := Load(newCommand())
	require.NoError(t, err)
	require.Equal(t, "from-dotenv.yaml", cfg.Spec)
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		env       string
		value     string
		wantKey   string
		wantValue any
	}{
		{"ARGO_MCP_SPEC", "argo.yaml", "spec", "argo.yaml"},
		{"ARGO_MCP_API__BASE_URL", "https://argo", "api.base-url", "https://argo"},
		{"ARGO_MCP_TOOLS__DEFAULT_NAMESPACE", "ci", "tools.default-namespace", "ci"},
		{"ARGO_MCP_SERVER__AUTH_TOKENS", "a,,b", "server.auth-tokens", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			key, value := envKey(tt.env, tt.value)
			require.Equal(t, tt.wantKey, key)
			require.Equal(t, tt.wantValue, value)
		})
	}
}

func TestBuildFlagsMap(t *testing.T) {
	cmd := newCommand()

	require.NoError(t, cmd.PersistentFlags().Set("spec", "test.yaml"))
	require.NoError(t, cmd.PersistentFlags().Set("namespace", "ci"))
	require.NoError(t, cmd.PersistentFlags().Set("include-tags", "WorkflowService,CronWorkflowService"))
	require.NoError(t, cmd.PersistentFlags().Set("strict-validation", "false"))
	require.NoError(t, cmd.Flags().Set("listen", ":9999"))

	m := buildFlagsMap(cmd)

	require.Equal(t, "test.yaml", m["spec"])
	require.Equal(t, "ci", m["tools.default-namespace"])
	require.Equal(t, []string{"WorkflowService", "CronWorkflowService"}, m["tools.include-tags"])
	require.Equal(t, false, m["tools.strict-validation"])
	require.Equal(t, ":9999", m["server.listen"])
	require.NotContains(t, m, "api.trace")
	require.NotContains(t, m, "api.token")
}

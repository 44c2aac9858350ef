package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

const (
	DefaultFile = "argo-mcp.yaml"
	EnvPrefix   = "ARGO_MCP_"
)

type Config struct {
	Spec      string         `koanf:"spec"`
	API       APIConfig      `koanf:"api"`
	Server    ServerConfig   `koanf:"server"`
	Tools     ToolsConfig    `koanf:"tools"`
	Templates TemplateConfig `koanf:"templates"`
	Log       LogConfig      `koanf:"log"`
}

type APIConfig struct {
	// BaseURL defaults to the server declared by the document.
	BaseURL string            `koanf:"base-url"`
	Token   string            `koanf:"token"`
	Timeout time.Duration     `koanf:"timeout"`
	Retries uint              `koanf:"retries"`
	Headers map[string]string `koanf:"headers"`
	Trace   bool              `koanf:"trace"`
}

type ServerConfig struct {
	Name       string   `koanf:"name"`
	Transport  string   `koanf:"transport"`
	Listen     string   `koanf:"listen"`
	Path       string   `koanf:"path"`
	AuthTokens []string `koanf:"auth-tokens"`
}

type ToolsConfig struct {
	IncludeTags      []string `koanf:"include-tags"`
	ExcludeTags      []string `koanf:"exclude-tags"`
	DefaultNamespace string   `koanf:"default-namespace"`
	Convenience      bool     `koanf:"convenience"`
	StrictValidation bool     `koanf:"strict-validation"`
}

type TemplateConfig struct {
	Dir string `koanf:"dir"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() map[string]any {
	return map[string]any{
		"api.timeout":             30 * time.Second,
		"api.retries":             2,
		"server.name":             "argo-mcp",
		"server.transport":        "stdio",
		"server.listen":           ":8080",
		"server.path":             "/mcp",
		"tools.default-namespace": "argo",
		"tools.convenience":       true,
		"log.level":               "info",
		"log.format":              "console",
	}
}

// listKeys are split on commas when they come from the environment.
var listKeys = map[string]bool{
	"server.auth-tokens": true,
	"tools.include-tags": true,
	"tools.exclude-tags": true,
}

// BindCommonFlags binds the flags shared by every command.
func BindCommonFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringP("config", "c", "", "Config file path (default: "+DefaultFile+")")
	flags.StringP("spec", "s", "", "OpenAPI or Swagger document of the Argo Workflows API")
	flags.String("base-url", "", "Argo Server URL (default: taken from the document)")
	flags.String("token", "", "Bearer token for the Argo Server")
	flags.StringP("namespace", "n", "", "Default namespace for the workflow tools")
	flags.StringSlice("include-tags", nil, "Tags to include (exclusive)")
	flags.StringSlice("exclude-tags", nil, "Tags to exclude")
	flags.Bool("strict-validation", false, "Validate requests against the document before sending")
	flags.Bool("trace", false, "Dump HTTP requests and responses to stderr")
	flags.String("templates", "", "Custom templates directory")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: console, json")
}

// BindServeFlags binds the transport flags of the serve command.
func BindServeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringP("transport", "t", "", "Transport: stdio, http, sse")
	flags.StringP("listen", "l", "", "Listen address of the HTTP transports")
	flags.String("path", "", "Endpoint path of the HTTP transports")
}

// Load layers defaults, the config file, ARGO_MCP_* environment variables
// and flags, in increasing precedence. A .env file in the working directory
// is read first and never overrides variables already set.
func Load(cmd *cobra.Command) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		configFile, _ = cmd.PersistentFlags().GetString("config")
	}
	if configFile == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			configFile = DefaultFile
		}
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	flagsMap := buildFlagsMap(cmd)
	if len(flagsMap) > 0 {
		if err := k.Load(confmap.Provider(flagsMap, "."), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// envKey maps ARGO_MCP_API__BASE_URL onto api.base-url.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	key = strings.ReplaceAll(key, "_", "-")
	if listKeys[key] {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return key, items
	}
	return key, value
}

func buildFlagsMap(cmd *cobra.Command) map[string]any {
	m := make(map[string]any)

	getString := func(name string) string {
		if v, err := cmd.Flags().GetString(name); err == nil && v != "" {
			return v
		}
		if v, err := cmd.PersistentFlags().GetString(name); err == nil && v != "" {
			return v
		}
		return ""
	}

	getStringSlice := func(name string) []string {
		if v, err := cmd.Flags().GetStringSlice(name); err == nil && len(v) > 0 {
			return v
		}
		if v, err := cmd.PersistentFlags().GetStringSlice(name); err == nil && len(v) > 0 {
			return v
		}
		return nil
	}

	flagChanged := func(name string) bool {
		return cmd.Flags().Changed(name) || cmd.PersistentFlags().Changed(name)
	}

	getBool := func(name string) bool {
		if v, err := cmd.Flags().GetBool(name); err == nil {
			return v
		}
		if v, err := cmd.PersistentFlags().GetBool(name); err == nil {
			return v
		}
		return false
	}

	stringFlags := map[string]string{
		"spec":       "spec",
		"base-url":   "api.base-url",
		"token":      "api.token",
		"namespace":  "tools.default-namespace",
		"templates":  "templates.dir",
		"log-level":  "log.level",
		"log-format": "log.format",
		"transport":  "server.transport",
		"listen":     "server.listen",
		"path":       "server.path",
	}
	for flag, key := range stringFlags {
		if v := getString(flag); v != "" {
			m[key] = v
		}
	}

	if v := getStringSlice("include-tags"); len(v) > 0 {
		m["tools.include-tags"] = v
	}
	if v := getStringSlice("exclude-tags"); len(v) > 0 {
		m["tools.exclude-tags"] = v
	}
	if flagChanged("strict-validation") {
		m["tools.strict-validation"] = getBool("strict-validation")
	}
	if flagChanged("trace") {
		m["api.trace"] = getBool("trace")
	}

	return m
}

func (c *Config) Validate() error {
	if c.Spec == "" {
		return fmt.Errorf("spec file is required")
	}

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid base url: %s (expected scheme://host[/path])", c.API.BaseURL)
		}
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api timeout must not be negative")
	}

	validTransports := map[string]bool{"": true, "stdio": true, "http": true, "sse": true}
	if !validTransports[c.Server.Transport] {
		return fmt.Errorf("invalid transport: %s (valid: stdio, http, sse)", c.Server.Transport)
	}
	if (c.Server.Transport == "http" || c.Server.Transport == "sse") && c.Server.Listen == "" {
		return fmt.Errorf("listen address is required for the %s transport", c.Server.Transport)
	}
	if c.Server.Path != "" && !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("invalid server path: %s (must start with /)", c.Server.Path)
	}

	validLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Log.Level)
	}

	validFormats := map[string]bool{"": true, "console": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (valid: console, json)", c.Log.Format)
	}

	return nil
}

// HTTPTransport reports whether the server listens on the network.
func (c *Config) HTTPTransport() bool {
	return c.Server.Transport == "http" || c.Server.Transport == "sse"
}

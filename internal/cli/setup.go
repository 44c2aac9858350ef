package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/kolah/argo-mcp/internal/compiler"
	"github.com/kolah/argo-mcp/internal/config"
	"github.com/kolah/argo-mcp/internal/httpapi"
	"github.com/kolah/argo-mcp/internal/loader"
	"github.com/kolah/argo-mcp/internal/logging"
	"github.com/kolah/argo-mcp/internal/mcpserver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	catalog *mcpserver.Catalog
}

func setupLogger(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// setup loads the configuration and the document and compiles the catalog.
func setup(cmd *cobra.Command) (*environment, error) {
	cfg, logger, err := setupLogger(cmd)
	if err != nil {
		return nil, err
	}

	first, err := loader.LoadFile(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("loading spec: %w", err)
	}

	baseURL := cfg.API.BaseURL
	if baseURL == "" {
		baseURL = first.Document.BaseURL
	}
	if baseURL == "" {
		return nil, errors.New("no base URL: set api.base-url or declare a server in the document")
	}

	httpCfg := httpapi.Config{
		BaseURL: baseURL,
		Token:   cfg.API.Token,
		Headers: cfg.API.Headers,
		Timeout: cfg.API.Timeout,
		Retries: cfg.API.Retries,
		Logger:  logger,
	}
	if cfg.API.Trace {
		httpCfg.Trace = os.Stderr
	}
	client, err := httpapi.New(httpCfg)
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	catalog, err := mcpserver.NewCatalog(mcpserver.Options{
		Load:      documentSource(cfg.Spec, first),
		Requester: client,
		Compile: compiler.Options{
			IncludeTags: cfg.Tools.IncludeTags,
			ExcludeTags: cfg.Tools.ExcludeTags,
			Logger:      logger,
		},
		DefaultNamespace: cfg.Tools.DefaultNamespace,
		Convenience:      cfg.Tools.Convenience,
		StrictValidation: cfg.Tools.StrictValidation,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("api client ready", zap.String("base_url", baseURL))
	return &environment{cfg: cfg, logger: logger, catalog: catalog}, nil
}

// documentSource hands out the already loaded document once, then reads the
// file again on every call.
func documentSource(path string, first *loader.Result) mcpserver.LoadFunc {
	pending := first
	return func() (*loader.Result, error) {
		if r := pending; r != nil {
			pending = nil
			return r, nil
		}
		return loader.LoadFile(path)
	}
}

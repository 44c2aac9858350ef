package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kolah/argo-mcp/internal/config"
	"github.com/kolah/argo-mcp/internal/mcpserver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func ServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiled tools over MCP",
		Long: `Serve the compiled tools over MCP on stdio (default), streamable HTTP or SSE.
SIGHUP reloads the document and replaces the tool set.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	config.BindServeFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reloadOnHangup(ctx, env)

	s := mcpserver.NewServer(env.cfg.Server.Name, Version, env.catalog)
	return mcpserver.Serve(ctx, s, mcpserver.ServeOptions{
		Transport:  env.cfg.Server.Transport,
		Listen:     env.cfg.Server.Listen,
		Path:       env.cfg.Server.Path,
		AuthTokens: env.cfg.Server.AuthTokens,
		Stdin:      cmd.InOrStdin(),
		Stdout:     cmd.OutOrStdout(),
		Logger:     env.logger,
	})
}

func reloadOnHangup(ctx context.Context, env *environment) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			env.logger.Info("reloading document", zap.String("spec", env.cfg.Spec))
			// Reload logs its own failure and keeps the current tools.
			_ = env.catalog.Reload()
		}
	}
}

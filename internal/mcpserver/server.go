package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/kolah/argo-mcp/internal/validate"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

const shutdownTimeout = 5 * time.Second

const instructions = `Each tool maps to one Argo Workflows API operation. Path and query
parameters are top-level arguments named as in the API; request payloads go
in the "body" argument. Results are the decoded JSON responses.`

// NewServer creates an MCP server exposing the catalog's tools.
func NewServer(name, version string, catalog *Catalog) *server.MCPServer {
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)
	catalog.Attach(s)
	return s
}

type ServeOptions struct {
	Transport string
	// Listen is the address of the HTTP transports.
	Listen string
	// Path is where the HTTP transports mount their endpoints.
	Path string
	// AuthTokens, when set, are the bearer tokens the HTTP transports accept.
	AuthTokens []string

	Stdin  io.Reader
	Stdout io.Writer
	Logger *zap.Logger
}

// Handler returns the HTTP handler of an HTTP transport.
func Handler(s *server.MCPServer, opts ServeOptions) (http.Handler, error) {
	var h http.Handler
	switch opts.Transport {
	case TransportHTTP:
		path := opts.Path
		if path == "" {
			path = "/mcp"
		}
		h = server.NewStreamableHTTPServer(s, server.WithEndpointPath(path))
	case TransportSSE:
		h = server.NewSSEServer(s, server.WithStaticBasePath(opts.Path))
	default:
		return nil, fmt.Errorf("transport %q is not served over HTTP", opts.Transport)
	}
	return validate.BearerAuth(opts.AuthTokens, h), nil
}

// Serve runs s on the configured transport until ctx is cancelled.
func Serve(ctx context.Context, s *server.MCPServer, opts ServeOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch opts.Transport {
	case "", TransportStdio:
		in, out := opts.Stdin, opts.Stdout
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stdout
		}
		stdio := server.NewStdioServer(s)
		stdio.SetErrorLogger(zap.NewStdLog(logger))
		logger.Info("serving on stdio")
		err := stdio.Listen(ctx, in, out)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case TransportHTTP, TransportSSE:
		h, err := Handler(s, opts)
		if err != nil {
			return err
		}
		return serveHTTP(ctx, opts.Listen, h, logger.With(zap.String("transport", opts.Transport)))
	default:
		return fmt.Errorf("unknown transport %q", opts.Transport)
	}
}

func serveHTTP(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

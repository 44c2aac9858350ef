package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kolah/argo-mcp/internal/compiler"
	"github.com/kolah/argo-mcp/internal/dispatch"
	"github.com/kolah/argo-mcp/internal/loader"
	"github.com/kolah/argo-mcp/internal/validate"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// LoadFunc produces a freshly loaded document.
type LoadFunc func() (*loader.Result, error)

type Options struct {
	Load      LoadFunc
	Compile   compiler.Options
	Requester dispatch.Requester

	DefaultNamespace string
	// Convenience registers the workflow shortcut tools next to the compiled ones.
	Convenience bool
	// StrictValidation checks every assembled request against the document
	// before it is sent. Only OpenAPI 3.x documents support it.
	StrictValidation bool

	Logger *zap.Logger
}

// State is one compiled generation of the tool set.
type State struct {
	Load      *loader.Result
	Compiled  *compiler.Result
	Tools     []server.ServerTool
	validator *validate.Validator
}

// Catalog owns the current tool set and swaps it wholesale on reload.
// Invocations in flight keep the generation they started with.
type Catalog struct {
	opts       Options
	logger     *zap.Logger
	dispatcher *dispatch.Dispatcher

	state atomic.Pointer[State]

	mu     sync.Mutex
	server *server.MCPServer
}

func NewCatalog(opts Options) (*Catalog, error) {
	if opts.Load == nil {
		return nil, errors.New("catalog: load function is required")
	}
	if opts.Requester == nil {
		return nil, errors.New("catalog: requester is required")
	}

	c := &Catalog{opts: opts, logger: opts.Logger}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.opts.Compile.Logger == nil {
		c.opts.Compile.Logger = c.logger
	}
	c.dispatcher = dispatch.New(c, opts.Requester,
		dispatch.WithPreflight(c.preflight),
		dispatch.WithLogger(c.logger),
	)

	state, err := c.build()
	if err != nil {
		return nil, err
	}
	c.state.Store(state)
	return c, nil
}

// Index returns the operation index of the current generation.
func (c *Catalog) Index() *compiler.Index {
	return c.State().Compiled.Index
}

func (c *Catalog) State() *State {
	return c.state.Load()
}

func (c *Catalog) Dispatch(ctx context.Context, name string, args map[string]any) (any, error) {
	return c.dispatcher.Dispatch(ctx, name, args)
}

// Attach registers the current tools on s; later reloads replace them there.
func (c *Catalog) Attach(s *server.MCPServer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.server = s
	s.SetTools(c.State().Tools...)
}

// Reload loads and compiles the document again. On failure the current
// generation stays in place and the error is returned.
func (c *Catalog) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.build()
	if err != nil {
		c.logger.Error("reload failed, keeping current tools", zap.Error(err))
		return err
	}

	previous := c.state.Swap(state)
	if c.server != nil {
		c.server.SetTools(state.Tools...)
	}
	c.logger.Info("tools reloaded",
		zap.Int("previous", len(previous.Tools)),
		zap.Int("tools", len(state.Tools)),
	)
	return nil
}

func (c *Catalog) build() (*State, error) {
	loaded, err := c.opts.Load()
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	for _, w := range loaded.Warnings {
		c.logger.Warn("document warning", zap.String("warning", w))
	}

	compiled, err := compiler.Compile(loaded.Document, c.opts.Compile)
	if err != nil {
		return nil, fmt.Errorf("compiling tools: %w", err)
	}

	state := &State{Load: loaded, Compiled: compiled}
	state.Tools = ServerTools(compiled.Tools, c, c.logger)
	if c.opts.Convenience {
		shortcuts := ConvenienceTools(compiled.Index, c, c.opts.DefaultNamespace)
		state.Tools = append(state.Tools, shortcuts...)
		c.logger.Debug("convenience tools", zap.Strings("tools", toolNames(shortcuts)))
	}

	if c.opts.StrictValidation {
		v, err := validate.New(loaded.RawData)
		switch {
		case errors.Is(err, validate.ErrUnsupportedDocument):
			c.logger.Warn("strict validation disabled", zap.Error(err))
		case err != nil:
			return nil, fmt.Errorf("building request validator: %w", err)
		default:
			state.validator = v
		}
	}

	c.logger.Info("compiled tools",
		zap.String("version", string(loaded.Document.Version)),
		zap.Int("operations", loaded.Document.OperationCount()),
		zap.Int("tools", len(state.Tools)),
		zap.Int("skipped", len(compiled.Diagnostics)),
	)
	return state, nil
}

func (c *Catalog) preflight(ctx context.Context, req dispatch.Request) error {
	v := c.State().validator
	if v == nil {
		return nil
	}
	return v.Check(ctx, req)
}

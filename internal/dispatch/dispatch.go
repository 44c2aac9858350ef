// Package dispatch turns a tool invocation back into the HTTP request of the
// operation it was compiled from.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/kolah/argo-mcp/internal/compiler"
	"go.uber.org/zap"
)

var (
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrUnsupportedMethod = errors.New("unsupported method")
)

// Requester performs HTTP calls against the remote API and returns the
// decoded response body.
type Requester interface {
	Request(ctx context.Context, method, path string, query url.Values, body any) (any, error)
}

// IndexSource supplies the current operation index. Implementations may swap
// the index between calls; each dispatch reads it once.
type IndexSource interface {
	Index() *compiler.Index
}

type staticIndex struct {
	index *compiler.Index
}

func (s staticIndex) Index() *compiler.Index { return s.index }

// Static wraps a fixed index.
func Static(index *compiler.Index) IndexSource {
	return staticIndex{index: index}
}

// Preflight inspects an assembled request before it is sent. A non-nil
// error aborts the call.
type Preflight func(ctx context.Context, req Request) error

type Dispatcher struct {
	index     IndexSource
	requester Requester
	preflight Preflight
	logger    *zap.Logger
}

type Option func(*Dispatcher)

func WithPreflight(p Preflight) Option {
	return func(d *Dispatcher) {
		d.preflight = p
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func New(index IndexSource, requester Requester, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		index:     index,
		requester: requester,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch executes the operation registered under name with args.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (any, error) {
	entry, ok := d.index.Index().Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}

	req, err := Build(entry, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if d.preflight != nil {
		if err := d.preflight(ctx, req); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	start := time.Now()
	result, err := d.requester.Request(ctx, req.Method, req.Path, req.Query, req.Body)
	d.logger.Debug("dispatched",
		zap.String("tool", name),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return result, nil
}

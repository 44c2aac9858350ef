// Package httpapi is the HTTP side of tool dispatch: it sends assembled
// requests to the workflow server and decodes whatever comes back.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/mutablelogic/go-client"
	"go.uber.org/zap"
)

const accept = "application/json"

type Config struct {
	BaseURL string
	Token   string
	Headers map[string]string
	Timeout time.Duration
	// Retries is the number of extra attempts made after a transport failure.
	Retries       uint
	RetryInterval time.Duration
	// Trace, when set, receives a dump of every request and response.
	Trace  io.Writer
	Logger *zap.Logger
}

type Client struct {
	*client.Client
	base          string
	retries       uint
	retryInterval time.Duration
	logger        *zap.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %q", cfg.BaseURL)
	}

	opts := []client.ClientOpt{client.OptEndpoint(cfg.BaseURL)}
	if cfg.Token != "" {
		opts = append(opts, client.OptReqToken(client.Token{Scheme: client.Bearer, Value: cfg.Token}))
	}
	keys := make([]string, 0, len(cfg.Headers))
	for k := range cfg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		opts = append(opts, client.OptHeader(k, cfg.Headers[k]))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, client.OptTimeout(cfg.Timeout))
	}
	if cfg.Trace != nil {
		opts = append(opts, client.OptTrace(cfg.Trace, true))
	}

	c, err := client.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	return &Client{
		Client:        c,
		base:          strings.TrimSuffix(cfg.BaseURL, "/"),
		retries:       cfg.Retries,
		retryInterval: interval,
		logger:        logger,
	}, nil
}

// Request sends one call and returns the decoded body. Transport failures
// are retried with exponential backoff; HTTP error statuses are not.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body any) (any, error) {
	payload, err := newPayload(method, body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	endpoint := c.Endpoint(path, query)

	attempt := func() (any, error) {
		var resp response
		if err := c.DoWithContext(ctx, payload, &resp, client.OptReqEndpoint(endpoint)); err != nil {
			if retryable(ctx, err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return resp.Value, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.retries+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn("retrying request",
				zap.String("method", method),
				zap.String("path", path),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	)
}

// Endpoint joins the base URL, an already escaped path and the query.
func (c *Client) Endpoint(path string, query url.Values) string {
	endpoint := c.base + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func newPayload(method string, body any) (client.Payload, error) {
	if body == nil {
		return client.NewRequestEx(method, accept), nil
	}
	return client.NewJSONRequestEx(method, body, accept)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

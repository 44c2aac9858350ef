// Package validate checks assembled API requests against the OpenAPI
// document before they are sent, and guards the HTTP transports.
package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kolah/argo-mcp/internal/dispatch"
	"github.com/pb33f/libopenapi"
	validator "github.com/pb33f/libopenapi-validator"
	validatorErrors "github.com/pb33f/libopenapi-validator/errors"
)

// ErrUnsupportedDocument is returned for documents the validator cannot
// handle (Swagger 2.0).
var ErrUnsupportedDocument = errors.New("request validation requires an OpenAPI 3.x document")

// ValidationError wraps libopenapi-validator errors for a rejected request.
type ValidationError struct {
	Method string
	Path   string
	Errors []*validatorErrors.ValidationError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msg := ve.Message
		if ve.Reason != "" {
			msg += ": " + ve.Reason
		}
		msgs = append(msgs, msg)
	}
	return fmt.Sprintf("request validation failed for %s %s: %s", e.Method, e.Path, strings.Join(msgs, "; "))
}

type Validator struct {
	validator validator.Validator
	server    string
}

// New builds a validator from raw OpenAPI 3.x bytes.
func New(spec []byte) (*Validator, error) {
	doc, err := libopenapi.NewDocument(spec)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(doc.GetVersion(), "3.") {
		return nil, ErrUnsupportedDocument
	}

	v, errs := validator.NewValidator(doc)
	if len(errs) > 0 {
		return nil, errs[0]
	}

	model, err := doc.BuildV3Model()
	if err != nil || model == nil {
		return nil, fmt.Errorf("building OpenAPI model: %w", err)
	}

	server := "http://localhost"
	if len(model.Model.Servers) > 0 {
		if u, err := url.Parse(model.Model.Servers[0].URL); err == nil && u.Host != "" {
			server = strings.TrimSuffix(u.String(), "/")
		} else if err == nil {
			server += strings.TrimSuffix(u.Path, "/")
		}
	}

	return &Validator{validator: v, server: server}, nil
}

// Check validates req as an HTTP request. It matches dispatch.Preflight.
func (v *Validator) Check(ctx context.Context, req dispatch.Request) error {
	endpoint := v.server + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	valid, errs := v.validator.ValidateHttpRequestSync(httpReq)
	if !valid {
		return &ValidationError{Method: req.Method, Path: req.Path, Errors: errs}
	}
	return nil
}

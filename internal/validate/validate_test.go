package validate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/kolah/argo-mcp/internal/dispatch"
)

const testSpec = `
openapi: "3.0.0"
info:
  title: Workflows
  version: "1.0"
servers:
  - url: https://argo.example.com
paths:
  /api/v1/workflows/{namespace}:
    get:
      operationId: listWorkflows
      parameters:
        - name: namespace
          in: path
          required: true
          schema:
            type: string
        - name: listOptions.limit
          in: query
          schema:
            type: integer
      responses:
        "200":
          description: OK
    post:
      operationId: createWorkflow
      parameters:
        - name: namespace
          in: path
          required: true
          schema:
            type: string
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required:
                - workflow
              properties:
                workflow:
                  type: object
      responses:
        "200":
          description: OK
`

const swaggerSpec = `
swagger: "2.0"
info:
  title: Workflows
  version: "1.0"
paths:
  /a:
    get:
      responses:
        "200":
          description: OK
`

func TestNew(t *testing.T) {
	if _, err := New([]byte(testSpec)); err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err := New([]byte(swaggerSpec))
	if !errors.Is(err, ErrUnsupportedDocument) {
		t.Errorf("New(swagger) error = %v, want ErrUnsupportedDocument", err)
	}
}

func TestCheck(t *testing.T) {
	v, err := New([]byte(testSpec))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name    string
		req     dispatch.Request
		wantErr bool
	}{
		{
			name: "valid list",
			req:  dispatch.Request{Method: http.MethodGet, Path: "/api/v1/workflows/argo", Query: url.Values{"listOptions.limit": {"10"}}},
		},
		{
			name:    "invalid query type",
			req:     dispatch.Request{Method: http.MethodGet, Path: "/api/v1/workflows/argo", Query: url.Values{"listOptions.limit": {"ten"}}},
			wantErr: true,
		},
		{
			name: "valid body",
			req:  dispatch.Request{Method: http.MethodPost, Path: "/api/v1/workflows/argo", Body: map[string]any{"workflow": map[string]any{}}},
		},
		{
			name:    "missing required body field",
			req:     dispatch.Request{Method: http.MethodPost, Path: "/api/v1/workflows/argo", Body: map[string]any{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Check(context.Background(), tt.req)
			if tt.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("Check() error = %v, want *ValidationError", err)
				}
				if !strings.Contains(ve.Error(), tt.req.Path) {
					t.Errorf("error %q does not mention the path", ve.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("Check() error = %v", err)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"valid bearer", "Bearer token123", "token123"},
		{"lowercase bearer", "bearer token123", "token123"},
		{"no bearer prefix", "token123", ""},
		{"empty header", "", ""},
		{"basic auth", "Basic dXNlcjpwYXNz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got := ExtractBearerToken(req)
			if got != tt.expected {
				t.Errorf("ExtractBearerToken() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestBearerAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := BearerAuth([]string{"alpha", "beta"}, next)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{"first token", "Bearer alpha", http.StatusOK, ""},
		{"second token", "Bearer beta", http.StatusOK, ""},
		{"missing", "", http.StatusUnauthorized, "missing bearer token"},
		{"wrong", "Bearer gamma", http.StatusUnauthorized, "invalid bearer token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantMsg == "" {
				return
			}
			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body["error"] != "authentication_error" || body["message"] != tt.wantMsg {
				t.Errorf("unexpected body %v", body)
			}
		})
	}
}

func TestBearerAuthDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	BearerAuth(nil, next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("expected passthrough, got %d", rec.Code)
	}
}

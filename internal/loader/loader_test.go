package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kolah/argo-mcp/internal/model"
	"github.com/kolah/argo-mcp/internal/resolver"
	"github.com/stretchr/testify/require"
)

const openapiSpec = `
openapi: 3.0.3
info:
  title: Argo Workflows API
  version: v3.5.0
  description: Workflow server
servers:
  - url: https://argo.example.com
paths:
  /api/v1/workflows/{namespace}:
    parameters:
      - name: namespace
        in: path
        required: true
        schema:
          type: string
    get:
      operationId: WorkflowService_ListWorkflows
      tags: [WorkflowService]
      parameters:
        - $ref: '#/components/parameters/limit'
      responses:
        "200":
          description: ok
    post:
      summary: Create a workflow
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/CreateRequest'
      responses:
        200:
          description: ok
    x-internal: true
  /api/v1/info:
    get: "not an operation"
    delete:
      x-only-extensions: true
    head:
      description: Probe
components:
  parameters:
    limit:
      name: listOptions.limit
      in: query
      schema:
        type: string
  schemas:
    CreateRequest:
      type: object
`

const swaggerSpec = `
swagger: 2.0
info:
  title: Argo Workflows API
  version: v3.5.0
host: argo.example.com
basePath: /base
schemes: [http]
paths:
  /api/v1/workflows/{namespace}/{name}/resubmit:
    put:
      operationId: WorkflowService_ResubmitWorkflow
      parameters:
        - name: namespace
          in: path
          required: true
          type: string
        - name: name
          in: path
          required: true
          type: string
        - name: body
          in: body
          required: true
          schema:
            $ref: '#/definitions/ResubmitRequest'
        - name: limit
          in: query
          type: integer
          format: int64
          minimum: 1
definitions:
  ResubmitRequest:
    type: object
`

func TestLoadOpenAPI(t *testing.T) {
	result, err := Load([]byte(openapiSpec), "")
	require.NoError(t, err)

	doc := result.Document
	require.Equal(t, model.VersionOpenAPI3, doc.Version)
	require.Equal(t, "3.0.3", doc.Marker)
	require.Equal(t, "Argo Workflows API", doc.Info.Title)
	require.Equal(t, "v3.5.0", doc.Info.Version)
	require.Equal(t, "https://argo.example.com", doc.BaseURL)
	require.Contains(t, doc.Definitions, "schemas")

	require.Len(t, doc.Paths, 2)
	require.Equal(t, "/api/v1/workflows/{namespace}", doc.Paths[0].Path)
	require.Equal(t, "/api/v1/info", doc.Paths[1].Path)

	ops := doc.Paths[0].Operations
	require.Len(t, ops, 2)

	list := ops[0]
	require.Equal(t, model.MethodGet, list.Method)
	require.Equal(t, "WorkflowService_ListWorkflows", list.ID)
	require.Equal(t, []string{"WorkflowService"}, list.Tags)
	require.Len(t, list.Parameters, 2)
	require.Equal(t, "namespace", list.Parameters[0].Name)
	require.Equal(t, model.LocationPath, list.Parameters[0].In)
	require.True(t, list.Parameters[0].Required)
	require.Equal(t, "listOptions.limit", list.Parameters[1].Name)
	require.Nil(t, list.Body)

	create := ops[1]
	require.Equal(t, model.MethodPost, create.Method)
	require.Empty(t, create.ID)
	require.NotNil(t, create.Body)
	require.True(t, create.Body.Required)
	require.Equal(t, "#/components/schemas/CreateRequest", create.Body.Schema["$ref"])

	info := doc.Paths[1].Operations
	require.Len(t, info, 1)
	require.Equal(t, model.MethodHead, info[0].Method)
	require.Contains(t, result.Warnings, "GET /api/v1/info: not an operation, skipped")
	require.Contains(t, result.Warnings, "DELETE /api/v1/info: not an operation, skipped")
}

func TestLoadSwagger(t *testing.T) {
	result, err := Load([]byte(swaggerSpec), "")
	require.NoError(t, err)

	doc := result.Document
	require.Equal(t, model.VersionSwagger2, doc.Version)
	require.Equal(t, "2.0", doc.Marker)
	require.Equal(t, "http://argo.example.com/base", doc.BaseURL)
	require.Contains(t, doc.Definitions, "ResubmitRequest")

	op := doc.Operation(model.MethodPut, "/api/v1/workflows/{namespace}/{name}/resubmit")
	require.NotNil(t, op)
	require.Len(t, op.Parameters, 3)
	for _, p := range op.Parameters {
		require.NotEqual(t, model.LocationBody, p.In)
	}
	require.NotNil(t, op.Body)
	require.True(t, op.Body.Required)
	require.Equal(t, "#/definitions/ResubmitRequest", op.Body.Schema["$ref"])

	limit := op.Parameters[2]
	require.Equal(t, "integer", limit.Type)
	require.Equal(t, "int64", limit.Format)
	require.NotNil(t, limit.Minimum)
	require.Equal(t, 1.0, *limit.Minimum)
}

func TestLoadJSON(t *testing.T) {
	data := `{"swagger": "2.0", "paths": {"/a": {"get": {"responses": {"200": {"description": "ok"}}}}}}`
	result, err := Load([]byte(data), "")
	require.NoError(t, err)
	require.Equal(t, model.VersionSwagger2, result.Document.Version)
	require.Equal(t, 1, result.Document.OperationCount())
}

func TestLoadPathItemRef(t *testing.T) {
	data := `
openapi: 3.1.0
paths:
  /a:
    $ref: '#/x-shared/item'
x-shared:
  item:
    post:
      operationId: createA
    get:
      operationId: getA
`
	result, err := Load([]byte(data), "")
	require.NoError(t, err)

	ops := result.Document.Paths[0].Operations
	require.Len(t, ops, 2)
	require.Equal(t, "getA", ops[0].ID)
	require.Equal(t, "createA", ops[1].ID)
}

func TestLoadOperationParameterOverride(t *testing.T) {
	data := `
openapi: 3.0.0
paths:
  /a/{id}:
    parameters:
      - {name: id, in: path, required: true, description: shared}
      - {name: verbose, in: query}
    get:
      parameters:
        - {name: id, in: path, required: true, description: own}
        - {name: page, in: query}
      responses: {}
`
	result, err := Load([]byte(data), "")
	require.NoError(t, err)

	params := result.Document.Paths[0].Operations[0].Parameters
	require.Len(t, params, 3)
	require.Equal(t, "own", params[0].Description)
	require.Equal(t, "verbose", params[1].Name)
	require.Equal(t, "page", params[2].Name)
}

func TestLoadDropsOperationWithBrokenParameterRef(t *testing.T) {
	data := `
openapi: 3.0.0
paths:
  /a:
    get:
      parameters:
        - $ref: '#/components/parameters/missing'
    post:
      operationId: ok
`
	result, err := Load([]byte(data), "")
	require.NoError(t, err)
	require.Len(t, result.Document.Paths[0].Operations, 1)
	require.Equal(t, "ok", result.Document.Paths[0].Operations[0].ID)
	require.NotEmpty(t, result.Warnings)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"no marker", "paths: {/a: {get: {operationId: a}}}", ErrUnsupportedVersion},
		{"openapi 2", "openapi: 2.0.0\npaths: {/a: {get: {operationId: a}}}", ErrUnsupportedVersion},
		{"swagger 1.2", "swagger: '1.2'\npaths: {/a: {get: {operationId: a}}}", ErrUnsupportedVersion},
		{"both markers", "openapi: 3.0.0\nswagger: '2.0'\npaths: {/a: {get: {operationId: a}}}", ErrUnsupportedVersion},
		{"missing paths", "openapi: 3.0.0\ninfo: {title: x}", ErrNoPaths},
		{"empty paths", "swagger: '2.0'\npaths: {}", ErrNoPaths},
		{"unresolvable path item", "openapi: 3.0.0\npaths: {/a: {$ref: '#/nowhere'}}", resolver.ErrUnresolvableRef},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.data), "")
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestLoadNotAMapping(t *testing.T) {
	_, err := Load([]byte("- a\n- b\n"), "")
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "argo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(swaggerSpec), 0o644))

	result, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte(swaggerSpec), result.RawData)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

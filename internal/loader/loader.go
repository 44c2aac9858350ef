package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kolah/argo-mcp/internal/model"
	"github.com/kolah/argo-mcp/internal/resolver"
	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel"
	"go.yaml.in/yaml/v4"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported API description version")
	ErrNoPaths            = errors.New("document has no paths")
)

type Result struct {
	Document *model.Document
	Warnings []string
	RawData  []byte
}

func LoadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	return Load(data, filepath.Dir(absPath))
}

// Load parses an OpenAPI 3.x or Swagger 2.0 document from YAML or JSON.
// basePath is only used for metadata extraction and may be empty.
func Load(data []byte, basePath string) (*Result, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	root := documentRoot(&node)
	if root == nil || root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parsing document: top level is not a mapping")
	}

	var decoded any
	if err := root.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	raw, _ := plain(decoded).(map[string]any)

	openapiMarker := scalar(mappingValue(root, "openapi"))
	swaggerMarker := scalar(mappingValue(root, "swagger"))
	version, ok := model.ParseVersion(openapiMarker, swaggerMarker)
	if !ok {
		return nil, fmt.Errorf("%w: openapi=%q swagger=%q (want openapi 3.x or swagger 2.0)",
			ErrUnsupportedVersion, openapiMarker, swaggerMarker)
	}

	pathsNode := mappingValue(root, "paths")
	if pathsNode == nil || pathsNode.Kind != yaml.MappingNode || len(pathsNode.Content) == 0 {
		return nil, ErrNoPaths
	}

	doc := &model.Document{
		Version: version,
		Marker:  openapiMarker + swaggerMarker,
		Root:    raw,
	}
	if version == model.VersionSwagger2 {
		doc.Definitions, _ = raw["definitions"].(map[string]any)
	} else {
		doc.Definitions, _ = raw["components"].(map[string]any)
	}

	result := &Result{Document: doc, RawData: data}

	p := &parser{
		doc:      doc,
		adapter:  doc.Adapter(),
		resolver: resolver.New(doc),
		result:   result,
	}
	rawPaths, _ := raw["paths"].(map[string]any)
	if err := p.parsePaths(pathsNode, rawPaths); err != nil {
		return nil, err
	}

	result.readMetadata(data, basePath)

	return result, nil
}

// readMetadata fills Info and BaseURL through libopenapi. Problems reported
// by libopenapi are kept as warnings and the raw document is used instead.
func (r *Result) readMetadata(data []byte, basePath string) {
	doc := r.Document
	fallback := func(reason error) {
		r.Warnings = append(r.Warnings, fmt.Sprintf("reading document metadata: %v", reason))
		doc.Info, doc.BaseURL = rawMetadata(doc)
	}

	config := &datamodel.DocumentConfiguration{
		BasePath:            basePath,
		AllowFileReferences: basePath != "",
	}
	parsed, err := libopenapi.NewDocumentWithConfiguration(data, config)
	if err != nil {
		fallback(err)
		return
	}

	switch doc.Version {
	case model.VersionSwagger2:
		m, err := parsed.BuildV2Model()
		if m == nil {
			fallback(orNoModel(err))
			return
		}
		r.warn(err)
		if info := m.Model.Info; info != nil {
			doc.Info = model.Info{Title: info.Title, Description: info.Description, Version: info.Version}
		}
		doc.BaseURL = swaggerBaseURL(m.Model.Schemes, m.Model.Host, m.Model.BasePath)
	default:
		m, err := parsed.BuildV3Model()
		if m == nil {
			fallback(orNoModel(err))
			return
		}
		r.warn(err)
		if info := m.Model.Info; info != nil {
			doc.Info = model.Info{Title: info.Title, Description: info.Description, Version: info.Version}
		}
		if len(m.Model.Servers) > 0 {
			doc.BaseURL = m.Model.Servers[0].URL
		}
	}
}

// warn records non-fatal model building problems, such as circular
// references, which libopenapi reports next to a usable model.
func (r *Result) warn(err error) {
	if err != nil {
		r.Warnings = append(r.Warnings, fmt.Sprintf("document model: %v", err))
	}
}

func orNoModel(err error) error {
	if err == nil {
		return errors.New("no document model produced")
	}
	return err
}

func rawMetadata(doc *model.Document) (model.Info, string) {
	var info model.Info
	if m, ok := doc.Root["info"].(map[string]any); ok {
		info.Title, _ = m["title"].(string)
		info.Description, _ = m["description"].(string)
		info.Version = fmt.Sprint(valueOr(m["version"], ""))
	}

	if doc.Version == model.VersionSwagger2 {
		host, _ := doc.Root["host"].(string)
		basePath, _ := doc.Root["basePath"].(string)
		return info, swaggerBaseURL(model.StringList(doc.Root["schemes"]), host, basePath)
	}

	if servers, ok := doc.Root["servers"].([]any); ok && len(servers) > 0 {
		if s, ok := servers[0].(map[string]any); ok {
			u, _ := s["url"].(string)
			return info, u
		}
	}
	return info, ""
}

func swaggerBaseURL(schemes []string, host, basePath string) string {
	if host == "" {
		return basePath
	}
	scheme := "https"
	if len(schemes) > 0 {
		scheme = schemes[0]
	}
	return scheme + "://" + host + basePath
}

func valueOr(v, fallback any) any {
	if v == nil {
		return fallback
	}
	return v
}

func documentRoot(node *yaml.Node) *yaml.Node {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		return node.Content[0]
	}
	return node
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func mappingKeys(node *yaml.Node) []string {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

// scalar returns the literal text of a scalar node, so `swagger: 2.0` reads
// as "2.0" rather than a float.
func scalar(node *yaml.Node) string {
	if node == nil || node.Kind != yaml.ScalarNode {
		return ""
	}
	return strings.TrimSpace(node.Value)
}

// plain converts decoded YAML into JSON-compatible values: mappings with
// non-string keys (such as `200:` response codes) get string keys.
func plain(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = plain(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = plain(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = plain(val)
		}
		return t
	}
	return v
}

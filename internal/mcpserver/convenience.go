package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kolah/argo-mcp/internal/compiler"
	"github.com/kolah/argo-mcp/internal/model"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	listWorkflowsPath = "/api/v1/workflows/{namespace}"
	workflowLogsPath  = "/api/v1/workflows/{namespace}/{name}/log"

	phaseLabel       = "workflows.argoproj.io/phase"
	defaultContainer = "main"
	defaultLimit     = 50
)

// listFields trims workflow listings down to what an agent needs to pick a
// workflow.
var listFields = strings.Join([]string{
	"metadata.continue",
	"items.metadata.name",
	"items.metadata.namespace",
	"items.metadata.uid",
	"items.metadata.creationTimestamp",
	"items.metadata.labels",
	"items.status.phase",
	"items.status.startedAt",
	"items.status.finishedAt",
	"items.status.progress",
	"items.status.message",
}, ",")

// ConvenienceTools returns the shortcut tools whose underlying operations are
// present in index. Each forwards to the compiled operation through invoker.
func ConvenienceTools(index *compiler.Index, invoker Invoker, defaultNamespace string) []server.ServerTool {
	c := &convenience{invoker: invoker, namespace: defaultNamespace}

	var tools []server.ServerTool
	if entry, ok := index.Find(model.MethodGet, listWorkflowsPath); ok {
		tools = append(tools,
			server.ServerTool{Tool: listWorkflowsTool(), Handler: c.listWorkflows(entry.Name)},
			server.ServerTool{Tool: searchWorkflowsTool(), Handler: c.searchWorkflows(entry.Name)},
		)
	}
	if entry, ok := index.Find(model.MethodGet, workflowLogsPath); ok {
		tools = append(tools, server.ServerTool{Tool: workflowLogsTool(), Handler: c.workflowLogs(entry.Name)})
	}

	out := tools[:0]
	for _, t := range tools {
		if _, taken := index.Lookup(t.Tool.Name); !taken {
			out = append(out, t)
		}
	}
	return out
}

func listWorkflowsTool() mcp.Tool {
	return mcp.NewTool("list_workflows",
		mcp.WithDescription("List workflows in a namespace, newest first, with a compact projection of name, phase and timing."),
		mcp.WithString("namespace", mcp.Description("Namespace to list (defaults to the configured namespace)")),
		mcp.WithString("phase", mcp.Description("Only workflows in this phase (Pending, Running, Succeeded, Failed, Error)")),
		mcp.WithString("labelSelector", mcp.Description("Kubernetes label selector, e.g. \"app=etl,team=data\"")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of workflows to return (default 50)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

func searchWorkflowsTool() mcp.Tool {
	return mcp.NewTool("search_workflows",
		mcp.WithDescription("Find workflows whose name, phase or labels contain the query (case-insensitive)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to look for")),
		mcp.WithString("namespace", mcp.Description("Namespace to search (defaults to the configured namespace)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of matches to return (default 50)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

func workflowLogsTool() mcp.Tool {
	return mcp.NewTool("get_workflow_logs",
		mcp.WithDescription("Fetch the logs of a workflow as plain text, one line per log entry prefixed with the pod name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
		mcp.WithString("namespace", mcp.Description("Workflow namespace (defaults to the configured namespace)")),
		mcp.WithString("podName", mcp.Description("Only logs of this pod")),
		mcp.WithString("container", mcp.Description("Container to read (default main)")),
		mcp.WithString("grep", mcp.Description("Only lines matching this regular expression")),
		mcp.WithNumber("tailLines", mcp.Description("Only the last N lines of each container")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	)
}

type convenience struct {
	invoker   Invoker
	namespace string
}

func (c *convenience) resolveNamespace(req mcp.CallToolRequest) (string, error) {
	ns := mcp.ParseString(req, "namespace", c.namespace)
	if ns == "" {
		return "", fmt.Errorf("namespace is required: no default namespace is configured")
	}
	return ns, nil
}

func (c *convenience) list(ctx context.Context, tool, namespace, selector string, limit int) ([]map[string]any, error) {
	args := map[string]any{
		"namespace": namespace,
		"fields":    listFields,
	}
	if selector != "" {
		args["listOptions.labelSelector"] = selector
	}
	if limit > 0 {
		args["listOptions.limit"] = limit
	}

	result, err := c.invoker.Dispatch(ctx, tool, args)
	if err != nil {
		return nil, err
	}
	return workflowItems(result), nil
}

func (c *convenience) listWorkflows(tool string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ns, err := c.resolveNamespace(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		selector := mcp.ParseString(req, "labelSelector", "")
		if phase := mcp.ParseString(req, "phase", ""); phase != "" {
			selector = joinSelector(selector, phaseLabel+"="+phase)
		}

		items, err := c.list(ctx, tool, ns, selector, mcp.ParseInt(req, "limit", defaultLimit))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return resultText(summarize(items)), nil
	}
}

func (c *convenience) searchWorkflows(tool string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := strings.ToLower(strings.TrimSpace(mcp.ParseString(req, "query", "")))
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		ns, err := c.resolveNamespace(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		items, err := c.list(ctx, tool, ns, "", 0)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		limit := mcp.ParseInt(req, "limit", defaultLimit)
		var matches []map[string]any
		for _, item := range items {
			if limit > 0 && len(matches) == limit {
				break
			}
			if workflowMatches(item, query) {
				matches = append(matches, item)
			}
		}
		return resultText(summarize(matches)), nil
	}
}

func (c *convenience) workflowLogs(tool string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := mcp.ParseString(req, "name", "")
		if name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}
		ns, err := c.resolveNamespace(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		args := map[string]any{
			"namespace":            ns,
			"name":                 name,
			"logOptions.container": mcp.ParseString(req, "container", defaultContainer),
		}
		if pod := mcp.ParseString(req, "podName", ""); pod != "" {
			args["podName"] = pod
		}
		if grep := mcp.ParseString(req, "grep", ""); grep != "" {
			args["grep"] = grep
		}
		if tail := mcp.ParseInt(req, "tailLines", 0); tail > 0 {
			args["logOptions.tailLines"] = tail
		}

		result, err := c.invoker.Dispatch(ctx, tool, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatLogs(result)), nil
	}
}

func joinSelector(selector, requirement string) string {
	if selector == "" {
		return requirement
	}
	return selector + "," + requirement
}

func workflowItems(result any) []map[string]any {
	list, _ := result.(map[string]any)
	raw, _ := list["items"].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if item, ok := r.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}

func workflowMatches(item map[string]any, query string) bool {
	metadata, _ := item["metadata"].(map[string]any)
	status, _ := item["status"].(map[string]any)

	candidates := []string{text(metadata["name"]), text(status["phase"])}
	labels, _ := metadata["labels"].(map[string]any)
	for k, v := range labels {
		candidates = append(candidates, k+"="+text(v))
	}
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), query) {
			return true
		}
	}
	return false
}

// summary is the flattened view of a workflow returned by the list tools.
type summary struct {
	Name       string            `json:"name"`
	Namespace  string            `json:"namespace,omitempty"`
	Phase      string            `json:"phase,omitempty"`
	Progress   string            `json:"progress,omitempty"`
	StartedAt  string            `json:"startedAt,omitempty"`
	FinishedAt string            `json:"finishedAt,omitempty"`
	Message    string            `json:"message,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

func summarize(items []map[string]any) []summary {
	out := make([]summary, 0, len(items))
	for _, item := range items {
		metadata, _ := item["metadata"].(map[string]any)
		status, _ := item["status"].(map[string]any)
		s := summary{
			Name:       text(metadata["name"]),
			Namespace:  text(metadata["namespace"]),
			Phase:      text(status["phase"]),
			Progress:   text(status["progress"]),
			StartedAt:  text(status["startedAt"]),
			FinishedAt: text(status["finishedAt"]),
			Message:    text(status["message"]),
		}
		if labels, ok := metadata["labels"].(map[string]any); ok && len(labels) > 0 {
			s.Labels = make(map[string]string, len(labels))
			for k, v := range labels {
				s.Labels[k] = text(v)
			}
		}
		out = append(out, s)
	}
	return out
}

// formatLogs renders the log stream entries `{"result": {"podName", "content"}}`
// as text lines.
func formatLogs(result any) string {
	var entries []any
	switch t := result.(type) {
	case []any:
		entries = t
	case map[string]any:
		entries = []any{t}
	case string:
		return t
	case nil:
		return ""
	}

	var b strings.Builder
	for _, e := range entries {
		entry, _ := e.(map[string]any)
		line, ok := entry["result"].(map[string]any)
		if !ok {
			continue
		}
		if pod := text(line["podName"]); pod != "" {
			b.WriteString(pod)
			b.WriteString(": ")
		}
		b.WriteString(text(line["content"]))
		b.WriteByte('\n')
	}
	return b.String()
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	return fmt.Sprint(v)
}

// toolNames lists tool names in a stable order.
func toolNames(tools []server.ServerTool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Tool.Name)
	}
	sort.Strings(names)
	return names
}

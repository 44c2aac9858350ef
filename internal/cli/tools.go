package cli

import (
	"encoding/json"
	"fmt"

	"github.com/kolah/argo-mcp/internal/compiler"
	"github.com/kolah/argo-mcp/internal/loader"
	"github.com/kolah/argo-mcp/internal/model"
	"github.com/kolah/argo-mcp/internal/templates"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func ToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Compile the document and print the tool catalogue",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}

	cmd.Flags().Bool("json", false, "Print the tools as JSON instead of Markdown")

	return cmd
}

type toolJSON struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Method      string       `json:"method"`
	Path        string       `json:"path"`
	Tags        []string     `json:"tags,omitempty"`
	InputSchema model.Schema `json:"inputSchema"`
	ReadOnly    bool         `json:"readOnly"`
	Destructive bool         `json:"destructive"`
	Idempotent  bool         `json:"idempotent"`
}

func runTools(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setupLogger(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	result, err := loader.LoadFile(cfg.Spec)
	if err != nil {
		return fmt.Errorf("loading spec: %w", err)
	}
	for _, w := range result.Warnings {
		logger.Warn("document warning", zap.String("warning", w))
	}

	compiled, err := compiler.Compile(result.Document, compiler.Options{
		IncludeTags: cfg.Tools.IncludeTags,
		ExcludeTags: cfg.Tools.ExcludeTags,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	for _, d := range compiled.Diagnostics {
		cmd.PrintErrf("Skipped: %s\n", d)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		out := make([]toolJSON, 0, len(compiled.Tools))
		for _, t := range compiled.Tools {
			out = append(out, toolJSON{
				Name:        t.Name,
				Description: t.Description,
				Method:      string(t.Method),
				Path:        t.Path,
				Tags:        t.Tags,
				InputSchema: t.InputSchema,
				ReadOnly:    t.Annotations.ReadOnly,
				Destructive: t.Annotations.Destructive,
				Idempotent:  t.Annotations.Idempotent,
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	engine, err := templates.Default(cfg.Templates.Dir)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	doc := result.Document
	catalogue, err := templates.RenderCatalog(engine, templates.CatalogData{
		Title:       doc.Info.Title,
		Version:     doc.Info.Version,
		Dialect:     doc.Version,
		BaseURL:     doc.BaseURL,
		Tools:       compiled.Tools,
		Diagnostics: compiled.Diagnostics,
	})
	if err != nil {
		return fmt.Errorf("rendering catalogue: %w", err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), catalogue)
	return err
}

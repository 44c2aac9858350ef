package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
)

func CallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [json-arguments|-]",
		Short: "Invoke one tool and print its result",
		Long: `Invoke one tool, compiled or convenience, exactly as an MCP client would.
Arguments are a JSON object, read from stdin when given as "-".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runCall,
	}
}

func runCall(cmd *cobra.Command, args []string) error {
	arguments, err := callArguments(cmd.InOrStdin(), args[1:])
	if err != nil {
		return err
	}

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	name := args[0]
	for _, st := range env.catalog.State().Tools {
		if st.Tool.Name != name {
			continue
		}

		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = arguments

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		result, err := st.Handler(ctx, req)
		if err != nil {
			return err
		}

		text := resultText(result)
		if result.IsError {
			return errors.New(text)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	}

	return fmt.Errorf("unknown tool: %s", name)
}

func callArguments(stdin io.Reader, args []string) (map[string]any, error) {
	if len(args) == 0 {
		return map[string]any{}, nil
	}

	var data []byte
	if args[0] == "-" {
		var err error
		if data, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("reading arguments: %w", err)
		}
	} else {
		data = []byte(args[0])
	}

	var arguments map[string]any
	if err := json.Unmarshal(data, &arguments); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if arguments == nil {
		arguments = map[string]any{}
	}
	return arguments, nil
}

func resultText(result *mcp.CallToolResult) string {
	var text string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			text += tc.Text
		}
	}
	return text
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/insuratask/insuratask/internal/config"
	"github.com/insuratask/insuratask/internal/tools/common"
)

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all MCP tools served by 'insuratask mcp'.
The tools are registered against a throwaway in-memory database and
introspected, so the output always matches the tool definitions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.Database.Path = ":memory:"
			logger, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			a, err := newApp(context.Background(), cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			markdown, err := generateToolsDocs(a)
			if err != nil {
				return err
			}
			if outputFile == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), markdown)
				return err
			}
			if err := os.WriteFile(outputFile, []byte(markdown), 0o644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Documentation written to: %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

// generateToolsDocs registers every tool twice, read-only and read-write, to
// tell the write tools apart.
func generateToolsDocs(a *app) (string, error) {
	inst := toolsInstrumentation(a)

	readSrv := newMCPServer()
	if err := registerAllTools(readSrv, a, inst, true); err != nil {
		return "", err
	}
	allSrv := newMCPServer()
	if err := registerAllTools(allSrv, a, inst, false); err != nil {
		return "", err
	}

	readTools := readSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(allSrv.ListTools()))
	write := make(map[string]bool)
	for name, st := range allSrv.ListTools() {
		tools = append(tools, st.Tool)
		if _, ok := readTools[name]; !ok {
			write[name] = true
		}
	}
	return generateToolsMarkdown(tools, write), nil
}

func toolsInstrumentation(a *app) common.Instrumentation {
	return common.Instrumentation{Metrics: a.provider.Metrics(), Audit: a.audit}
}

func generateToolsMarkdown(tools []mcp.Tool, write map[string]bool) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("This document lists the tools available when running `insuratask mcp`.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")
	sb.WriteString("Tools marked *(write)* are only registered with `--read-write`.\n\n")

	toolsByCategory := groupToolsByCategory(tools)

	// Table of contents
	sb.WriteString("## Table of Contents\n\n")
	categories := make([]string, 0, len(toolsByCategory))
	for category := range toolsByCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		anchor := strings.ToLower(strings.ReplaceAll(category, " ", "-"))
		sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", category, anchor))
	}
	sb.WriteString("\n")

	for _, category := range categories {
		categoryTools := toolsByCategory[category]
		sort.Slice(categoryTools, func(i, j int) bool {
			return categoryTools[i].Name < categoryTools[j].Name
		})

		sb.WriteString(fmt.Sprintf("## %s\n\n", category))
		for _, tool := range categoryTools {
			sb.WriteString(generateToolMarkdown(tool, write[tool.Name]))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func groupToolsByCategory(tools []mcp.Tool) map[string][]mcp.Tool {
	categories := make(map[string][]mcp.Tool)
	for _, tool := range tools {
		category := getCategoryFromToolName(tool.Name)
		categories[category] = append(categories[category], tool)
	}
	return categories
}

func getCategoryFromToolName(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	switch prefix {
	case "tasks":
		return "Task Tools"
	case "templates":
		return "Template Tools"
	case "calendar":
		return "Google Calendar Tools"
	default:
		return "Other"
	}
}

func generateToolMarkdown(tool mcp.Tool, write bool) string {
	var sb strings.Builder

	if write {
		sb.WriteString(fmt.Sprintf("### %s *(write)*\n\n", tool.Name))
	} else {
		sb.WriteString(fmt.Sprintf("### %s\n\n", tool.Name))
	}

	if tool.Description != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", tool.Description))
	}

	if len(tool.InputSchema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")

		// Sort properties for consistent output
		propNames := make([]string, 0, len(tool.InputSchema.Properties))
		for name := range tool.InputSchema.Properties {
			propNames = append(propNames, name)
		}
		sort.Strings(propNames)

		for _, name := range propNames {
			propMap, ok := tool.InputSchema.Properties[name].(map[string]interface{})
			if !ok {
				continue
			}

			requiredStr := "optional"
			if contains(tool.InputSchema.Required, name) {
				requiredStr = "required"
			}
			sb.WriteString(fmt.Sprintf("- `%s` (%s, %s): ", name, getPropertyType(propMap), requiredStr))

			if desc, ok := propMap["description"].(string); ok {
				sb.WriteString(desc)
			}
			if values := enumValues(propMap); len(values) > 0 {
				sb.WriteString(fmt.Sprintf(" One of: `%s`.", strings.Join(values, "`, `")))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func getPropertyType(prop map[string]interface{}) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}

func enumValues(prop map[string]interface{}) []string {
	switch values := prop["enum"].(type) {
	case []string:
		return values
	case []interface{}:
		out := make([]string, 0, len(values))
		for _, v := range values {
			out = append(out, fmt.Sprint(v))
		}
		return out
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

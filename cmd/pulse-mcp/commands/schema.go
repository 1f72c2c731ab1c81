package commands

import (
	"fmt"
	"slices"
	"strings"

	"pulse-mcp/internal/dashboard"
	"pulse-mcp/internal/mcp"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"
)

// schemas lists the documents whose JSON Schema can be printed. Worklog
// reports are recursive and are left out.
var schemas = map[string]func() (*jsonschema.Schema, error){
	"health":          func() (*jsonschema.Schema, error) { return jsonschema.For[dashboard.Health](nil) },
	"burndown":        func() (*jsonschema.Schema, error) { return jsonschema.For[dashboard.BurnDownResult](nil) },
	"utilization":     func() (*jsonschema.Schema, error) { return jsonschema.For[dashboard.UtilizationReport](nil) },
	"allocation-file": func() (*jsonschema.Schema, error) { return jsonschema.For[dashboard.AllocationFile](nil) },
	"report-input":    func() (*jsonschema.Schema, error) { return jsonschema.For[mcp.WorklogReportInput](nil) },
	"overview-input":  func() (*jsonschema.Schema, error) { return jsonschema.For[mcp.OverviewInput](nil) },
	"allocation-input": func() (*jsonschema.Schema, error) {
		return jsonschema.For[mcp.AllocationUpsertInput](nil)
	},
}

func schemaNames() []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema NAME",
		Short:     "Print the JSON Schema of a result or tool input",
		Long:      "Available schemas: " + strings.Join(schemaNames(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: schemaNames(),
		// Schemas are static and need neither configuration nor a store.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			build, ok := schemas[args[0]]
			if !ok {
				return fmt.Errorf("unknown schema %q (available: %s)", args[0], strings.Join(schemaNames(), ", "))
			}
			schema, err := build()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), schema)
		},
	}
}

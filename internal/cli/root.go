package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mark3labs/camgen/internal/remote"
)

// Execute runs the camgen CLI. Usage problems match ErrUsage.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "camgen",
		Short:         "Generate typed TypeScript service clients from API schemas",
		Long:          "camgen turns service descriptions and OpenAPI/Swagger documents into TypeScript interfaces and a request class per service.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	cmd.SetFlagErrorFunc(flagError)

	pf := cmd.PersistentFlags()
	pf.StringP("config", "c", "", "Config file path (YAML or JSON); defaults to cam.config.yaml or cam.config.json in the working directory")
	pf.BoolP("verbose", "v", false, "Enable verbose logging output")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("server", "", "Schema server base URL for uuid@version sources (default "+remote.DefaultServer+")")
	pf.String("token", "", "Bearer token for the schema server")
	pf.Duration("timeout", 0, "HTTP timeout for remote sources (default 15s)")

	service := newServiceCmd()
	for _, sub := range []*cobra.Command{newGenerateCmd(), newInitCmd(), newValidateCmd(), newExportCmd(), service} {
		sub.SetFlagErrorFunc(flagError)
		cmd.AddCommand(sub)
	}
	for _, sub := range service.Commands() {
		sub.SetFlagErrorFunc(flagError)
	}

	return cmd
}

func flagError(c *cobra.Command, err error) error {
	return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}

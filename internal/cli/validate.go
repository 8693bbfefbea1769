package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mark3labs/camgen/internal/gen"
	"github.com/mark3labs/camgen/internal/schema"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check service documents for problems",
		Long: "Load each service and report diagnostics such as missing names, unknown types " +
			"or path placeholders without a matching path parameter.",
		Example: `  camgen validate --input service.yaml
  camgen validate --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			strict, err := cmd.Flags().GetBool("strict")
			if err != nil {
				return err
			}
			return runValidate(cmd, cfg, strict)
		},
	}

	cmd.Flags().String("input", "", "Path, URL or uuid@version of a service or OpenAPI/Swagger document")
	cmd.Flags().String("service", "", "Validate only this project service")
	cmd.Flags().Bool("strict", false, "Exit non-zero when any error is reported")

	return cmd
}

func runValidate(cmd *cobra.Command, cfg *GenerateConfig, strict bool) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg)
	jobs, err := cfg.jobs()
	if err != nil {
		return err
	}

	var failed []string
	for _, j := range jobs {
		svc, err := loadService(cmd.Context(), cfg, j, logger)
		if err != nil {
			return err
		}
		diags := schema.Lint(svc)
		printDiagnostics(cmd.OutOrStdout(), gen.ServiceName(svc), diags)
		if schema.HasErrors(diags) {
			failed = append(failed, gen.ServiceName(svc))
		}
	}
	if strict && len(failed) > 0 {
		return fmt.Errorf("validate: %d service(s) have errors: %v", len(failed), failed)
	}
	return nil
}

func printDiagnostics(w io.Writer, name string, diags []schema.Diagnostic) {
	if len(diags) == 0 {
		fmt.Fprintf(w, "%s: ok\n", name)
		return
	}
	fmt.Fprintf(w, "%s: %d finding(s)\n", name, len(diags))
	for _, d := range diags {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

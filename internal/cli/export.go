package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/camgen/internal/schema"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Convert a service document to OpenAPI 3.1",
		Long:  "Load one service and write it as an OpenAPI 3.1 document. The format follows the --out extension (.json or YAML).",
		Example: `  camgen export --input service.yaml --out openapi.yaml
  camgen export --service user --out -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			return runExport(cmd, cfg, strings.TrimSpace(out))
		},
	}

	cmd.Flags().String("input", "", "Path, URL or uuid@version of a service or OpenAPI/Swagger document")
	cmd.Flags().String("service", "", "Export this project service")
	// Shadows the generate out setting; export writes one file.
	cmd.Flags().StringP("out", "o", "-", "Output file; - writes to stdout")

	return cmd
}

func runExport(cmd *cobra.Command, cfg *GenerateConfig, out string) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg)
	jobs, err := cfg.jobs()
	if err != nil {
		return err
	}
	if len(jobs) != 1 {
		return newUsageError(fmt.Sprintf("export: %d services configured; pick one with --service", len(jobs)))
	}

	svc, err := loadService(cmd.Context(), cfg, jobs[0], logger)
	if err != nil {
		return err
	}
	data, err := schema.MarshalOpenAPI(schema.ToOpenAPI(svc), out)
	if err != nil {
		return err
	}
	if out == "" || out == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := writeFileAtomic(out, data); err != nil {
		return newUsageError(fmt.Sprintf("export: %v", err))
	}
	logger.Info("exported service", "service", svc.Name, "operations", len(svc.Operations), "path", out)
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/camgen/internal/emitter/tsemitter"
	"github.com/mark3labs/camgen/internal/gen"
	"github.com/mark3labs/camgen/internal/project"
	"github.com/mark3labs/camgen/internal/remote"
	"github.com/mark3labs/camgen/internal/schema"
)

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate TypeScript service clients",
		Long: "Generate TypeScript interfaces and a request class for each service. " +
			"Services come from --input or from the services listed in the project config file.",
		Example: strings.TrimSpace(`  camgen generate --input petstore.yaml --service pets --out ./src/services
  camgen generate --service user --demo
  camgen --config cam.config.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path, URL or uuid@version of a service or OpenAPI/Swagger document")
	flags.String("service", "", "Service name; selects one project service, or names the --input service")
	flags.String("out", "", "Output directory (default "+DefaultOutDir+")")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include operations using these HTTP methods")
	flags.StringArray("path", nil, "Only include operations whose path matches this regular expression (repeatable)")
	flags.Bool("response-optional", false, "Make every response field optional")
	flags.String("response-composition", "", "Combine multiple responses with intersection or union (default intersection)")
	flags.Bool("demo", false, "Also write request-demo.ts showing how to wire the request function")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Replace existing service directories")

	return cmd
}

// job is one service to generate.
type job struct {
	name   string
	source string
}

func (c *GenerateConfig) jobs() ([]job, error) {
	if c.Input != "" {
		return []job{{name: c.Service, source: c.Input}}, nil
	}
	if c.ConfigPath == "" {
		return nil, newUsageError("generate: --input is required when no cam.config.yaml is present")
	}
	pf, err := project.Load(c.ConfigPath)
	if err != nil {
		return nil, newUsageError(fmt.Sprintf("generate: %v", err))
	}
	base := filepath.Dir(c.ConfigPath)
	if c.Service != "" {
		source, ok := pf.Service(c.Service)
		if !ok {
			return nil, newUsageError(fmt.Sprintf("generate: service %q is not listed in %s", c.Service, c.ConfigPath))
		}
		return []job{{name: c.Service, source: relativeTo(base, source)}}, nil
	}
	names := pf.Names()
	if len(names) == 0 {
		return nil, newUsageError(fmt.Sprintf("generate: %s lists no services; add one with `camgen service add` or pass --input", c.ConfigPath))
	}
	jobs := make([]job, 0, len(names))
	for _, name := range names {
		source, _ := pf.Service(name)
		jobs = append(jobs, job{name: name, source: relativeTo(base, source)})
	}
	return jobs, nil
}

// relativeTo resolves a file source listed in a project file against the
// directory holding that file.
func relativeTo(base, source string) string {
	if remote.IsRef(source) || filepath.IsAbs(source) {
		return source
	}
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && u.Host != "" {
		return source
	}
	return filepath.Join(base, source)
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	logger := newLogger(os.Stderr, cfg)

	jobs, err := cfg.jobs()
	if err != nil {
		return err
	}

	opts := gen.Options{ResponseOptional: cfg.ResponseOptional, Composition: cfg.composition()}
	services := make([]tsemitter.Service, 0, len(jobs))
	for _, j := range jobs {
		svc, err := loadService(ctx, cfg, j, logger)
		if err != nil {
			return err
		}
		for _, d := range schema.Lint(svc) {
			logger.Warn("schema diagnostic", "service", gen.ServiceName(svc), "severity", string(d.Severity), "path", d.Path, "message", d.Message)
		}
		out := gen.Generate(svc, opts)
		logger.Debug("generated service", "service", out.Service, "operations", len(out.Descriptors), "types", len(out.Declarations))
		services = append(services, tsemitter.Service{Schema: svc, Output: out})
	}

	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}

	res, err := tsemitter.Emit(ctx, services, tsemitter.Options{
		OutDir:  cfg.Out,
		Demo:    cfg.Demo,
		Force:   cfg.Force,
		DryRun:  cfg.DryRun,
		Verbose: cfg.Verbose,
		Logger:  logger,
	})
	if err != nil {
		return wrapOutputError(err, absOut)
	}

	if cfg.DryRun {
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(absOut, len(res.Planned), paths)
		return nil
	}
	fmt.Fprintf(os.Stdout, "Generated %d service(s) in %s: %s\n", len(res.Dirs), absOut, strings.Join(res.Dirs, ", "))
	return nil
}

// loadService reads a job's source. uuid@version sources are fetched from
// the schema server, everything else goes through the document loader.
func loadService(ctx context.Context, cfg *GenerateConfig, j job, logger *slog.Logger) (*schema.ServiceSchema, error) {
	label := j.source
	if j.name != "" {
		label = j.name
	}
	if remote.IsRef(j.source) {
		ref, err := remote.ParseRef(j.source)
		if err != nil {
			return nil, newUsageError(fmt.Sprintf("%s: %v", label, err))
		}
		client, err := newRemoteClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		svc, err := client.GetService(ctx, ref.UUID, ref.Version)
		if err != nil {
			return nil, sourceUsageError(label, err)
		}
		return schema.Filter(svc, cfg.importOptions(j.name)...), nil
	}

	opts := []schema.Option{
		schema.WithImportOptions(cfg.importOptions(j.name)...),
		schema.WithLogger(logger),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, schema.WithHTTPTimeout(cfg.Timeout))
	}
	svc, err := schema.Load(ctx, j.source, opts...)
	if err != nil {
		return nil, sourceUsageError(label, err)
	}
	return svc, nil
}

func newRemoteClient(cfg *GenerateConfig, logger *slog.Logger) (*remote.Client, error) {
	opts := []remote.Option{remote.WithToken(cfg.Token), remote.WithLogger(logger)}
	if cfg.Timeout > 0 {
		opts = append(opts, remote.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	client, err := remote.New(cfg.Server, opts...)
	if err != nil {
		return nil, newUsageError(fmt.Sprintf("--server: %v", err))
	}
	return client, nil
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") ||
		strings.Contains(lower, "rename") || strings.Contains(lower, "not empty") || strings.Contains(lower, "already exists") ||
		strings.Contains(lower, "escapes") || strings.Contains(lower, "map to directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/camgen/internal/project"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample camgen project file",
		Long:  "Scaffold a commented camgen project file that lists services and documents the generate options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("out", project.DefaultFile, "Where to write the sample project file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = project.DefaultFile
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	content := sampleConfigYAML
	if strings.EqualFold(filepath.Ext(absPath), ".json") {
		content = sampleConfigJSON
	}
	if err := writeFileAtomic(absPath, []byte(strings.TrimSpace(content)+"\n")); err != nil {
		return newUsageError(fmt.Sprintf("init: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// writeFileAtomic writes through a temp file and a rename so readers never
// see a partial file.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create parent directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cannot write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("cannot place file at %s: %w", path, err)
	}
	return nil
}

// sampleConfigYAML is a commented example project file documenting available options.
const sampleConfigYAML = `# camgen configuration (YAML)
# All fields are optional. Environment variables (CAMGEN_*) override the
# file and command-line flags override both.

# Services to generate, as name: source. A source is uuid@version (fetched
# from the schema server), a local file or an http/https URL. Paths are
# relative to this file.
services:
  # user: 3f1c2a@1.0.0
  # pets: ./petstore.yaml

# Output directory; one sub-directory per service.
# outDir: src/services

# Schema server for uuid@version sources and its bearer token.
# server: https://cam-api.com/api
# token: ""

# Only include operations with these tags (comma-separated or list).
# includeTags: [public,read]

# Exclude operations with these tags (comma-separated or list).
# excludeTags: [internal]

# Only include these HTTP methods, or paths matching these expressions.
# methods: [GET, POST]
# paths: ["^/users"]

# Make every response field optional.
# responseOptional: false

# How several response types combine: intersection or union.
# responseComposition: intersection

# Also write request-demo.ts next to the service directories.
# demo: false

# Replace existing service directories.
# force: false

# Log level (debug, info, warn, error) and HTTP timeout.
# logLevel: info
# timeout: 15s
`

// sampleConfigJSON is the JSON variant; JSON has no comments so it only
// carries the common keys.
const sampleConfigJSON = `{
  "services": {},
  "outDir": "src/services",
  "responseComposition": "intersection"
}`

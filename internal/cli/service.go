package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/camgen/internal/project"
	"github.com/mark3labs/camgen/internal/remote"
)

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the services listed in the project file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	add := &cobra.Command{
		Use:   "add <name> <source>",
		Short: "Add a service to the project file",
		Long: "Add a service under name. source is uuid@version, a bare uuid (meaning uuid@latest), " +
			"a local file or an http/https URL. The source is loaded once to check it unless --no-verify is set.",
		Example: `  camgen service add user 3f1c2a@1.0.0
  camgen service add pets ./petstore.yaml --no-verify`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveProjectConfig(cmd)
			if err != nil {
				return err
			}
			noVerify, err := cmd.Flags().GetBool("no-verify")
			if err != nil {
				return err
			}
			return runServiceAdd(cmd, cfg, args[0], args[1], !noVerify)
		},
	}
	add.Flags().Bool("no-verify", false, "Skip loading the source before adding it")

	remove := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a service from the project file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return runServiceRemove(cmd, cfg, args[0])
		},
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the services in the project file",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			return runServiceList(cmd, cfg)
		},
	}

	cmd.AddCommand(add, remove, list)
	return cmd
}

// projectPath is the config file in use, or the default file name when
// none exists yet.
func (c *GenerateConfig) projectPath() string {
	if c.ConfigPath != "" {
		return c.ConfigPath
	}
	return project.DefaultFile
}

func openProject(cfg *GenerateConfig, create bool) (*project.File, error) {
	path := cfg.projectPath()
	pf, err := project.Load(path)
	if err == nil {
		return pf, nil
	}
	if create && errors.Is(err, fs.ErrNotExist) {
		return project.New(path), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, newUsageError(fmt.Sprintf("service: %s does not exist; run `camgen init` first", path))
	}
	return nil, newUsageError(fmt.Sprintf("service: %v", err))
}

func runServiceAdd(cmd *cobra.Command, cfg *GenerateConfig, name, source string, verify bool) error {
	if err := project.ValidName(name); err != nil {
		return newUsageError(fmt.Sprintf("service add: %v", err))
	}
	pf, err := openProject(cfg, true)
	if err != nil {
		return err
	}
	// Reject duplicates before touching the network.
	if _, exists := pf.Service(name); exists {
		return newUsageError(fmt.Sprintf("service add: %v: %s", project.ErrDuplicateName, name))
	}
	base := filepath.Dir(pf.Path)
	source = normalizeSource(base, strings.TrimSpace(source))
	if verify {
		logger := newLogger(os.Stderr, cfg)
		j := job{name: name, source: relativeTo(base, source)}
		svc, err := loadService(cmd.Context(), cfg, j, logger)
		if err != nil {
			return err
		}
		logger.Info("verified service", "name", name, "operations", len(svc.Operations))
	}
	if err := pf.AddService(name, source); err != nil {
		return newUsageError(fmt.Sprintf("service add: %v", err))
	}
	if err := pf.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", name, pf.Path)
	return nil
}

// normalizeSource turns a bare service id into a ref at the latest version,
// unless a file of that name exists next to the project file.
func normalizeSource(base, source string) string {
	if source == "" || remote.IsRef(source) || strings.Contains(source, "://") || strings.ContainsAny(source, `/\.`) {
		return source
	}
	if _, err := os.Stat(filepath.Join(base, source)); err == nil {
		return source
	}
	return source + "@" + remote.LatestVersion
}

func runServiceRemove(cmd *cobra.Command, cfg *GenerateConfig, name string) error {
	pf, err := openProject(cfg, false)
	if err != nil {
		return err
	}
	if err := pf.RemoveService(name); err != nil {
		return newUsageError(fmt.Sprintf("service remove: %v", err))
	}
	if err := pf.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", name, pf.Path)
	return nil
}

func runServiceList(cmd *cobra.Command, cfg *GenerateConfig) error {
	pf, err := openProject(cfg, false)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, name := range pf.Names() {
		source, _ := pf.Service(name)
		fmt.Fprintf(w, "%s\t%s\n", name, source)
	}
	return nil
}

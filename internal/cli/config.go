package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/camgen/internal/gen"
	"github.com/mark3labs/camgen/internal/project"
	"github.com/mark3labs/camgen/internal/schema"
)

// DefaultOutDir receives generated services when no out directory is set.
const DefaultOutDir = "src/services"

// envPrefix prefixes every environment override, as in CAMGEN_TOKEN.
const envPrefix = "camgen"

// GenerateConfig captures all inputs that influence a command after merging
// defaults, the config file, the environment and CLI overrides.
type GenerateConfig struct {
	Input               string
	Service             string
	Out                 string
	IncludeTags         []string
	ExcludeTags         []string
	Methods             []string
	Paths               []string
	ResponseOptional    bool
	ResponseComposition string
	Demo                bool
	DryRun              bool
	Force               bool
	Verbose             bool
	LogLevel            string
	Server              string
	Token               string
	Timeout             time.Duration
	ConfigPath          string
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Out:                 DefaultOutDir,
		ResponseComposition: gen.ComposeIntersection.String(),
		LogLevel:            "info",
		Timeout:             15 * time.Second,
	}
}

// envOverrides mirrors GenerateConfig for envconfig. Pointer fields stay nil
// when the variable is unset.
type envOverrides struct {
	Config              *string        `envconfig:"CONFIG"`
	Input               *string        `envconfig:"INPUT"`
	Service             *string        `envconfig:"SERVICE"`
	Out                 *string        `envconfig:"OUT"`
	IncludeTags         *[]string      `envconfig:"INCLUDE_TAGS"`
	ExcludeTags         *[]string      `envconfig:"EXCLUDE_TAGS"`
	Methods             *[]string      `envconfig:"METHODS"`
	Paths               *[]string      `envconfig:"PATHS"`
	ResponseOptional    *bool          `envconfig:"RESPONSE_OPTIONAL"`
	ResponseComposition *string        `envconfig:"RESPONSE_COMPOSITION"`
	Demo                *bool          `envconfig:"DEMO"`
	DryRun              *bool          `envconfig:"DRY_RUN"`
	Force               *bool          `envconfig:"FORCE"`
	Verbose             *bool          `envconfig:"VERBOSE"`
	LogLevel            *string        `envconfig:"LOG_LEVEL"`
	Server              *string        `envconfig:"SERVER"`
	Token               *string        `envconfig:"TOKEN"`
	Timeout             *time.Duration `envconfig:"TIMEOUT"`
}

func readEnv() (envOverrides, error) {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return env, newUsageError(fmt.Sprintf("environment: %v", err))
	}
	return env, nil
}

// resolveConfig merges every layer. The config file is --config, else
// CAMGEN_CONFIG, else a project file found in the working directory. An
// explicitly named file must exist.
func resolveConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	return resolve(cmd, false)
}

// resolveProjectConfig is resolveConfig for commands that create the
// project file, so a named file may be missing.
func resolveProjectConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	return resolve(cmd, true)
}

func resolve(cmd *cobra.Command, allowMissing bool) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	env, err := readEnv()
	if err != nil {
		return nil, err
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	explicit := configPath != ""
	if !explicit && env.Config != nil {
		configPath = strings.TrimSpace(*env.Config)
		explicit = configPath != ""
	}
	if !explicit {
		if found, ok := project.Find("."); ok {
			configPath = found
		}
	}
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			switch {
			case !errors.Is(err, fs.ErrNotExist):
				return nil, err
			case explicit && !allowMissing:
				return nil, newUsageError(err.Error())
			case !explicit:
				cfg.ConfigPath = ""
			}
		}
	}

	env.apply(&cfg)

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	return &cfg, nil
}

func (e envOverrides) apply(cfg *GenerateConfig) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&cfg.Input, e.Input)
	setString(&cfg.Service, e.Service)
	setString(&cfg.Out, e.Out)
	setString(&cfg.ResponseComposition, e.ResponseComposition)
	setString(&cfg.LogLevel, e.LogLevel)
	setString(&cfg.Server, e.Server)
	setString(&cfg.Token, e.Token)
	if e.IncludeTags != nil {
		cfg.IncludeTags = sanitizeTags(*e.IncludeTags)
	}
	if e.ExcludeTags != nil {
		cfg.ExcludeTags = sanitizeTags(*e.ExcludeTags)
	}
	if e.Methods != nil {
		cfg.Methods = sanitizeTags(*e.Methods)
	}
	if e.Paths != nil {
		cfg.Paths = sanitizeTags(*e.Paths)
	}
	setBool(&cfg.ResponseOptional, e.ResponseOptional)
	setBool(&cfg.Demo, e.Demo)
	setBool(&cfg.DryRun, e.DryRun)
	setBool(&cfg.Force, e.Force)
	setBool(&cfg.Verbose, e.Verbose)
	if e.Timeout != nil {
		cfg.Timeout = *e.Timeout
	}
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"input", &cfg.Input},
		{"service", &cfg.Service},
		{"out", &cfg.Out},
		{"response-composition", &cfg.ResponseComposition},
		{"log-level", &cfg.LogLevel},
		{"server", &cfg.Server},
		{"token", &cfg.Token},
	}
	for _, s := range strs {
		if !flags.Changed(s.name) {
			continue
		}
		value, err := flags.GetString(s.name)
		if err != nil {
			return err
		}
		*s.dst = strings.TrimSpace(value)
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"response-optional", &cfg.ResponseOptional},
		{"demo", &cfg.Demo},
		{"dry-run", &cfg.DryRun},
		{"force", &cfg.Force},
		{"verbose", &cfg.Verbose},
	}
	for _, b := range bools {
		if !flags.Changed(b.name) {
			continue
		}
		value, err := flags.GetBool(b.name)
		if err != nil {
			return err
		}
		*b.dst = value
	}

	if flags.Changed("include-tags") {
		value, err := flags.GetStringSlice("include-tags")
		if err != nil {
			return err
		}
		cfg.IncludeTags = sanitizeTags(value)
	}
	if flags.Changed("exclude-tags") {
		value, err := flags.GetStringSlice("exclude-tags")
		if err != nil {
			return err
		}
		cfg.ExcludeTags = sanitizeTags(value)
	}
	if flags.Changed("methods") {
		value, err := flags.GetStringSlice("methods")
		if err != nil {
			return err
		}
		cfg.Methods = sanitizeTags(value)
	}
	if flags.Changed("path") {
		value, err := flags.GetStringArray("path")
		if err != nil {
			return err
		}
		cfg.Paths = sanitizeTags(value)
	}
	if flags.Changed("timeout") {
		value, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = value
	}
	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Service = strings.TrimSpace(c.Service)
	c.Out = strings.TrimSpace(c.Out)
	c.ResponseComposition = strings.ToLower(strings.TrimSpace(c.ResponseComposition))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Server = strings.TrimSpace(c.Server)
	c.Token = strings.TrimSpace(c.Token)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Paths = sanitizeTags(c.Paths)
	methods := sanitizeTags(c.Methods)
	for i, m := range methods {
		methods[i] = string(schema.NormalizeMethod(m))
	}
	c.Methods = methods
	if c.Verbose {
		c.LogLevel = "debug"
	}
}

func (c *GenerateConfig) validate() error {
	if c.Out == "" {
		c.Out = DefaultOutDir
	}
	if _, ok := gen.ParseComposition(c.ResponseComposition); !ok {
		return newUsageError(fmt.Sprintf("--response-composition %q is not supported (allowed: intersection, union)", c.ResponseComposition))
	}
	if _, ok := parseLogLevel(c.LogLevel); !ok {
		return newUsageError(fmt.Sprintf("--log-level %q is not supported (allowed: debug, info, warn, error)", c.LogLevel))
	}
	if c.Timeout < 0 {
		return newUsageError("--timeout must not be negative")
	}
	for _, p := range c.Paths {
		if _, err := regexp.Compile(p); err != nil {
			return newUsageError(fmt.Sprintf("--path %q is not a valid regular expression: %v", p, err))
		}
	}
	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}
	return nil
}

// importOptions turns the operation filters into loader options. name, when
// set, replaces the service name found in the document.
func (c *GenerateConfig) importOptions(name string) []schema.ImportOption {
	opts := []schema.ImportOption{
		schema.WithIncludeTags(c.IncludeTags),
		schema.WithExcludeTags(c.ExcludeTags),
		schema.WithPathPatterns(c.Paths),
	}
	if len(c.Methods) > 0 {
		methods := make([]schema.HTTPMethod, 0, len(c.Methods))
		for _, m := range c.Methods {
			methods = append(methods, schema.HTTPMethod(m))
		}
		opts = append(opts, schema.WithMethods(methods))
	}
	if name != "" {
		opts = append(opts, schema.WithServiceName(name))
	}
	return opts
}

func (c *GenerateConfig) composition() gen.Composition {
	comp, _ := gen.ParseComposition(c.ResponseComposition)
	return comp
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read config file %q: %w", path, err)
		}
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}
	return applyConfigMap(cfg, path, raw)
}

// applyConfigMap applies one mapping of the config file. A nested "generate"
// block holds the same keys.
func applyConfigMap(cfg *GenerateConfig, path string, raw map[string]any) error {
	for key, value := range raw {
		var err error
		switch normalizeKey(key) {
		case "input":
			cfg.Input, err = valueAsString(value)
		case "service":
			cfg.Service, err = valueAsString(value)
		case "out", "outdir":
			cfg.Out, err = valueAsString(value)
		case "includetags":
			var list []string
			list, err = valueAsStringSlice(value)
			cfg.IncludeTags = sanitizeTags(list)
		case "excludetags":
			var list []string
			list, err = valueAsStringSlice(value)
			cfg.ExcludeTags = sanitizeTags(list)
		case "methods":
			cfg.Methods, err = valueAsStringSlice(value)
		case "paths":
			cfg.Paths, err = valueAsStringSlice(value)
		case "responseoptional":
			cfg.ResponseOptional, err = valueAsBool(value)
		case "responsecomposition":
			cfg.ResponseComposition, err = valueAsString(value)
		case "demo":
			cfg.Demo, err = valueAsBool(value)
		case "dryrun":
			cfg.DryRun, err = valueAsBool(value)
		case "force":
			cfg.Force, err = valueAsBool(value)
		case "verbose":
			cfg.Verbose, err = valueAsBool(value)
		case "loglevel":
			cfg.LogLevel, err = valueAsString(value)
		case "server":
			cfg.Server, err = valueAsString(value)
		case "token":
			cfg.Token, err = valueAsString(value)
		case "timeout":
			cfg.Timeout, err = valueAsDuration(value)
		case "services":
			// Read through the project package.
		case "generate", "generateconfig":
			nested, ok := value.(map[string]any)
			if value != nil && !ok {
				return newUsageError(fmt.Sprintf("config field %q: expected a mapping, got %T", key, value))
			}
			if err := applyConfigMap(cfg, path, nested); err != nil {
				return err
			}
		default:
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
		if err != nil {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}
	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

// valueAsDuration accepts a Go duration string or a number of seconds.
func valueAsDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case int:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", val)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("expected duration, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

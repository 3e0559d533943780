package cli

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mark3labs/apigen/internal/gen"
)

const envPrefix = "APIGEN"

// GenerateConfig captures all inputs that influence generation after merging
// defaults, config file values, environment and CLI overrides.
type GenerateConfig struct {
	Input       string            `mapstructure:"input"`
	Out         string            `mapstructure:"out"`
	PackageName string            `mapstructure:"packageName"`
	ClassName   string            `mapstructure:"className"`
	Namespacing bool              `mapstructure:"namespacing"`
	ParseDates  bool              `mapstructure:"parseDates"`
	InlineEnums bool              `mapstructure:"inlineEnums"`
	Headers     map[string]string `mapstructure:"headers"`
	IncludeTags []string          `mapstructure:"includeTags"`
	ExcludeTags []string          `mapstructure:"excludeTags"`
	Paths       []string          `mapstructure:"paths"`
	Methods     []string          `mapstructure:"methods"`
	Upgrade     bool              `mapstructure:"upgrade"`
	Strict      bool              `mapstructure:"strict"`
	Debounce    time.Duration     `mapstructure:"debounce"`
	DryRun      bool              `mapstructure:"dryRun"`
	Force       bool              `mapstructure:"force"`
	Verbose     bool              `mapstructure:"verbose"`

	ConfigPath string `mapstructure:"-"`

	log *slog.Logger
}

// configKeys maps config keys to the flags that override them.
var configKeys = map[string]string{
	"input":       "input",
	"out":         "out",
	"packageName": "package-name",
	"className":   "class-name",
	"namespacing": "namespacing",
	"parseDates":  "parse-dates",
	"inlineEnums": "inline-enums",
	"headers":     "header",
	"includeTags": "include-tags",
	"excludeTags": "exclude-tags",
	"paths":       "paths",
	"methods":     "methods",
	"upgrade":     "upgrade",
	"strict":      "strict",
	"debounce":    "debounce",
	"dryRun":      "dry-run",
	"force":       "force",
	"verbose":     "verbose",
}

func setDefaults(v *viper.Viper) {
	defaults := gen.DefaultOptions()
	v.SetDefault("input", "")
	v.SetDefault("out", "")
	v.SetDefault("packageName", "")
	v.SetDefault("className", defaults.ClassName)
	v.SetDefault("namespacing", defaults.Namespacing)
	v.SetDefault("parseDates", false)
	v.SetDefault("inlineEnums", false)
	v.SetDefault("headers", map[string]string{})
	v.SetDefault("includeTags", []string{})
	v.SetDefault("excludeTags", []string{})
	v.SetDefault("paths", []string{})
	v.SetDefault("methods", []string{})
	v.SetDefault("upgrade", true)
	v.SetDefault("strict", false)
	v.SetDefault("debounce", 300*time.Millisecond)
	v.SetDefault("dryRun", false)
	v.SetDefault("force", false)
	v.SetDefault("verbose", false)
}

// addGenerateFlags registers the flags shared by generate and watch.
func addGenerateFlags(flags *pflag.FlagSet) {
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document")
	flags.String("out", "", "Output directory of the generated package (derived from the API title when omitted)")
	flags.String("package-name", "", "Package name of the generated client (derived from --out when omitted)")
	flags.String("class-name", "", "Name of the generated client type")
	flags.Bool("namespacing", true, "Group operations by tag into namespace accessors")
	flags.Bool("parse-dates", false, "Map date-time strings to time.Time and convert timestamps in responses")
	flags.Bool("inline-enums", false, "Inline named string enums instead of declaring typed constants")
	flags.StringToString("header", nil, "Static header baked into the client (repeatable, key=value)")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("paths", nil, "Only include paths matching these glob patterns (e.g. /users/**)")
	flags.StringSlice("methods", nil, "Only include operations using these HTTP methods")
	flags.Bool("upgrade", true, "Convert Swagger 2.0 input to OpenAPI 3 (when false, 2.0 input is rejected)")
	flags.Bool("strict", false, "Fail on document validation errors instead of logging them")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")
}

// resolveGenerateConfig merges defaults < config file < APIGEN_* environment
// < changed flags.
func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	v := viper.New()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, newUsageError(fmt.Sprintf("read config file %q: %v", configPath, err))
		}
		if err := checkConfigKeys(v.AllKeys(), configPath); err != nil {
			return nil, err
		}
	}

	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	for key, flag := range configKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	var cfg GenerateConfig
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		trimStringsHook(),
	))
	if err := v.UnmarshalExact(&cfg, hook); err != nil {
		return nil, newUsageError(fmt.Sprintf("config: %v", err))
	}
	cfg.ConfigPath = configPath

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.log = newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	return &cfg, nil
}

// checkConfigKeys rejects keys the config file may not set. Nested keys such
// as headers.x-api-key are checked by their first segment.
func checkConfigKeys(keys []string, path string) error {
	known := make(map[string]struct{}, len(configKeys))
	for k := range configKeys {
		known[strings.ToLower(k)] = struct{}{}
	}
	var unknown []string
	for _, k := range keys {
		top, _, _ := strings.Cut(k, ".")
		if _, ok := known[top]; !ok {
			unknown = append(unknown, top)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, unknown[0]))
}

// trimStringsHook trims surrounding whitespace from every decoded string.
func trimStringsHook() mapstructure.DecodeHookFuncKind {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.String {
			return data, nil
		}
		return strings.TrimSpace(reflect.ValueOf(data).String()), nil
	}
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	c.PackageName = strings.TrimSpace(c.PackageName)
	c.ClassName = strings.TrimSpace(c.ClassName)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Paths = sanitizeTags(c.Paths)
	methods := sanitizeTags(c.Methods)
	for i, m := range methods {
		methods[i] = strings.ToLower(m)
	}
	c.Methods = methods
	if len(c.Headers) == 0 {
		c.Headers = nil
	}
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag, config file or APIGEN_INPUT)")
	}
	if c.ClassName != "" && !isIdent(c.ClassName) {
		return newUsageError(fmt.Sprintf("generate: --class-name %q is not a Go identifier", c.ClassName))
	}
	if _, err := c.httpMethods(); err != nil {
		return err
	}
	if c.Debounce < 0 {
		return newUsageError("generate: debounce must be non-negative")
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}
	return nil
}

func isIdent(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r == '_':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return s != ""
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

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
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
		Short: "Scaffold a sample apigen configuration file",
		Long:  "Scaffold a commented apigen configuration file that documents available options.",
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

	cmd.Flags().String("out", "apigen.yaml", "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx
	log := newLogger(os.Stderr, cfg.Verbose)

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = "apigen.yaml"
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

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"

	// Atomic write via temp + rename
	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
	}
	log.Debug("wrote sample config", "path", absPath, "bytes", len(content))
	fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# apigen configuration (YAML)
# All fields are optional. Environment variables (APIGEN_<KEY>) override
# config values, and command-line flags override both.

# Path or URL to the Swagger/OpenAPI document (http/https or local file).
# input: ./openapi.yaml

# Output directory of the generated package. When omitted, derived from the
# document title.
# out: ./client

# Package clause of the generated code. Defaults to the base name of out.
# packageName: petstore

# Name of the generated client type.
# className: ApiClient

# Group operations by their first tag (client.Pets.List) instead of
# publishing them flat on the client.
# namespacing: true

# Map date-time strings to time.Time and convert ISO-8601 timestamps in
# responses.
# parseDates: false

# Inline named string enums instead of declaring typed constants.
# inlineEnums: false

# Static headers baked into the generated client.
# headers:
#   X-Api-Key: changeme

# Only include operations with these tags (comma-separated or list).
# includeTags: [public,read]

# Exclude operations with these tags (comma-separated or list).
# excludeTags: [internal]

# Only include paths matching these glob patterns.
# paths: ["/users/**"]

# Only include operations using these HTTP methods.
# methods: [get, post]

# Convert Swagger 2.0 input to OpenAPI 3. When false, 2.0 input is rejected.
# upgrade: true

# Fail on document validation errors instead of logging them.
# strict: false

# Quiet period the watch command waits after the last change.
# debounce: 300ms

# Preview planned outputs without writing files.
# dryRun: false

# Overwrite existing generated files.
# force: false

# Enable verbose logging.
# verbose: false
`

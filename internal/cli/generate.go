package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	goemitter "github.com/mark3labs/apigen/internal/emitter/goemitter"
	"github.com/mark3labs/apigen/internal/gen"
	genspec "github.com/mark3labs/apigen/internal/spec"
)

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a typed Go client from an OpenAPI/Swagger document",
		Long: "Generate a typed Go client package from an OpenAPI/Swagger document. " +
			"Options can be provided via flags, environment (APIGEN_*), config files, or defaults.",
		Example: strings.TrimSpace(`  apigen generate --input spec.yaml --out ./petstore
  apigen generate --input https://example.com/openapi.json --include-tags pets --parse-dates
  apigen --config apigen.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}
	addGenerateFlags(cmd.Flags())
	return cmd
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	res, outDir, err := generateOnce(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.DryRun {
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(outDir, len(res.Planned), paths)
	}
	return nil
}

// generateOnce runs the whole pipeline: load, filter, map, print and write.
// It returns the emitter result and the absolute output directory.
func generateOnce(ctx context.Context, cfg *GenerateConfig) (*goemitter.Result, string, error) {
	log := cfg.logger()

	// 1) Load the document (file or http/https URL) with validation and conversion
	doc, err := genspec.Load(ctx, cfg.Input,
		genspec.WithUpgrade(cfg.Upgrade),
		genspec.WithStrict(cfg.Strict),
		genspec.WithLogger(log),
	)
	if err != nil {
		return nil, "", specUsageError(err)
	}

	// 2) Narrow the document when filters are set
	if cfg.hasFilters() {
		methods, err := cfg.httpMethods()
		if err != nil {
			return nil, "", err
		}
		doc, err = genspec.Filter(doc,
			genspec.WithIncludeTags(cfg.IncludeTags),
			genspec.WithExcludeTags(cfg.ExcludeTags),
			genspec.WithMethods(methods),
			genspec.WithPathPatterns(cfg.Paths),
		)
		if err != nil {
			return nil, "", specUsageError(err)
		}
	}

	// 3) Map to the target-neutral output
	out, err := gen.Generate(doc, gen.Options{
		ClassName:   cfg.ClassName,
		Namespacing: cfg.Namespacing,
		ParseDates:  cfg.ParseDates,
		InlineEnums: cfg.InlineEnums,
		Headers:     cfg.Headers,
		Logger:      log,
	})
	if err != nil {
		return nil, "", fmt.Errorf("generate: %w", err)
	}

	// 4) Derive the output directory when omitted
	outDir := cfg.Out
	if outDir == "" {
		outDir = deriveOutDir(out.Title)
	}
	absOut := outDir
	if ap, err := filepath.Abs(outDir); err == nil {
		absOut = ap
	}

	// 5) Print and write the client package
	res, err := goemitter.Emit(ctx, out, goemitter.Options{
		OutDir:      outDir,
		PackageName: cfg.PackageName,
		Force:       cfg.Force,
		DryRun:      cfg.DryRun,
		Logger:      log,
	})
	if err != nil {
		return nil, absOut, wrapOutputError(err, absOut)
	}
	log.Info("generated client",
		"dir", absOut,
		"package", res.PackageName,
		"operations", len(out.Routes()),
		"types", len(out.Types),
		"dryRun", cfg.DryRun,
	)
	return res, absOut, nil
}

func (c *GenerateConfig) hasFilters() bool {
	return len(c.IncludeTags) > 0 || len(c.ExcludeTags) > 0 || len(c.Paths) > 0 || len(c.Methods) > 0
}

func (c *GenerateConfig) httpMethods() ([]genspec.HttpMethod, error) {
	out := make([]genspec.HttpMethod, 0, len(c.Methods))
	for _, name := range c.Methods {
		m, ok := genspec.ParseMethod(name)
		if !ok {
			return nil, newUsageError(fmt.Sprintf("generate: unsupported method %q", name))
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *GenerateConfig) logger() *slog.Logger {
	if c.log == nil {
		c.log = newLogger(os.Stderr, c.Verbose)
	}
	return c.log
}

// specUsageError maps structured spec errors into friendly messages.
func specUsageError(err error) error {
	var se *genspec.SpecError
	if !errors.As(err, &se) {
		return err
	}
	msg := fmt.Sprintf("spec: %s", se.Message)
	if se.Location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
	}
	if se.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
	}
	return newUsageError(msg)
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "exists") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

// deriveOutDir turns a document title into a directory name, e.g.
// "Swagger Petstore" -> "swagger-petstore".
func deriveOutDir(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	repl := strings.NewReplacer("/", " ", "_", " ", ".", " ", ",", " ", ":", " ")
	t = repl.Replace(t)
	var b strings.Builder
	for i, part := range strings.Fields(t) {
		if i > 0 {
			b.WriteByte('-')
		}
		for _, r := range part {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
				b.WriteRune(r)
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "client"
	}
	return out
}

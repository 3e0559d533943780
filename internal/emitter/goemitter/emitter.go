package goemitter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/apigen/internal/gen"
	"github.com/mark3labs/apigen/internal/printer"
)

// Options controls how the Go emitter writes a generated client package.
type Options struct {
	OutDir       string // required; directory of the generated package
	PackageName  string // package clause; derived from OutDir when empty
	Filename     string // client source file name; defaults to client.go
	ClientImport string // runtime import path override
	Force        bool   // overwrite existing files
	DryRun       bool   // don't write, only plan
	Logger       *slog.Logger
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files and the resolved package name.
type Result struct {
	PackageName string
	Planned     []PlannedFile
}

// Emit renders out as a Go package under opts.OutDir.
func Emit(ctx context.Context, out *gen.Output, opts Options) (*Result, error) {
	if out == nil {
		return nil, fmt.Errorf("goemitter: nil Output")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("goemitter: OutDir is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	pkg := sanitizePackageName(opts.PackageName)
	if pkg == "" {
		pkg = sanitizePackageName(filepath.Base(filepath.Clean(opts.OutDir)))
		if pkg == "" {
			pkg = "client"
		}
	}
	filename := strings.TrimSpace(opts.Filename)
	if filename == "" {
		filename = "client.go"
	}

	src, err := printer.Print(out, printer.Options{
		PackageName:  pkg,
		ClientImport: opts.ClientImport,
		Filename:     filename,
	})
	if err != nil {
		return nil, fmt.Errorf("goemitter: %w", err)
	}

	files := map[string][]byte{
		filename: src,
		"doc.go": []byte(renderDoc(pkg, out)),
	}

	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, filepath.ToSlash(p))
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(files[rel]), Mode: 0o644})
	}

	if !opts.DryRun {
		if err := writeFiles(ctx, opts.OutDir, files, opts.Force); err != nil {
			return nil, err
		}
		log.Debug("wrote client", "dir", opts.OutDir, "package", pkg, "files", len(files))
	}

	return &Result{PackageName: pkg, Planned: planned}, nil
}

func renderDoc(pkg string, out *gen.Output) string {
	var b strings.Builder
	b.WriteString("// Code generated by apigen. DO NOT EDIT.\n\n")
	title := strings.TrimSpace(out.Title)
	if title == "" {
		title = "the API"
	}
	fmt.Fprintf(&b, "// Package %s is a generated client for %s.\n", pkg, title)
	fmt.Fprintf(&b, "package %s\n", pkg)
	return b.String()
}

func writeFiles(ctx context.Context, outDir string, files map[string][]byte, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	// Pre-flight: refuse to replace any existing file without force.
	if !force {
		for rel := range files {
			if _, err := os.Stat(filepath.Join(abs, rel)); err == nil {
				return fmt.Errorf("goemitter: output file %q exists (use --force to overwrite)", filepath.Join(abs, rel))
			}
		}
	}
	for rel, content := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := filepath.Join(abs, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		// atomic write via temp file + rename
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := os.WriteFile(tmp, content, 0o644); err != nil {
			return fmt.Errorf("write temp %s: %w", rel, err)
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", rel, err)
		}
	}
	return nil
}

// sanitizePackageName lower-cases name and keeps letters, digits and
// underscores. A leading digit is prefixed so the result stays a valid
// package clause.
func sanitizePackageName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "api" + out
	}
	return out
}

package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchRunner = runWatch

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the client whenever the source document changes",
		Long: `Watch a local OpenAPI/Swagger document and regenerate the client package
every time it is written. Existing output is always overwritten.

Example:
  apigen watch --input ./openapi.yaml --out ./client
  apigen watch --input ./openapi.yaml --debounce 1s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return watchRunner(cmd.Context(), cfg)
		},
	}
	addGenerateFlags(cmd.Flags())
	cmd.Flags().Duration("debounce", 300*time.Millisecond, "Quiet period after the last change before regenerating")
	return cmd
}

// runWatch generates once and then again after every burst of writes to the
// input file, until ctx is done. Generation errors are logged, not returned.
func runWatch(ctx context.Context, cfg *GenerateConfig) error {
	if strings.HasPrefix(cfg.Input, "http://") || strings.HasPrefix(cfg.Input, "https://") {
		return newUsageError("watch: --input must be a local file")
	}
	if cfg.DryRun {
		return newUsageError("watch: --dry-run is not supported")
	}
	input, err := filepath.Abs(cfg.Input)
	if err != nil {
		return fmt.Errorf("watch: resolve input: %w", err)
	}
	cfg.Force = true
	log := cfg.logger().With("input", input)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()
	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(input)); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	regenerate := func() {
		if _, _, err := generateOnce(ctx, cfg); err != nil {
			log.Error("regeneration failed", "error", err)
		}
	}
	regenerate()
	log.Info("watching for changes")

	// pending fires once the input has been quiet for the debounce period.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != input || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			log.Debug("change detected", "op", ev.Op.String())
			pending = time.After(cfg.Debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		case <-pending:
			pending = nil
			regenerate()
		}
	}
}

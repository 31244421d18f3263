package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/nao1215/lensfind/internal/config"
)

// catalogExtensions are the file extensions the watch command analyses.
var catalogExtensions = []string{".csv", ".txt", ".json"}

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <directory...>",
		Short: "Analyse catalogs as they appear in a directory",
		Long: `Watch monitors one or more directories and analyses every catalog file
(.csv, .txt or .json) that is created or rewritten there. Each report is
printed to stdout and, unless --no-db is given, saved to the database.

A catalog is analysed once it has not changed for the debounce period, so
a file written in several chunks is analysed once.

Examples:
  # Watch the extraction output directory
  lensfind watch ./catalogs

  # Also analyse the catalogs already present, skipping any analysed in
  # the last hour
  lensfind watch --initial --skip-recent 1h ./catalogs`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatchCmd,
	}

	addInputFlags(cmd)
	addReportFlags(cmd)
	addDatabaseFlags(cmd)

	cmd.Flags().Duration("debounce", config.DefaultWatchDebounce,
		"Quiet period after the last change before a catalog is analysed")
	cmd.Flags().Bool("initial", false, "Analyse catalogs already in the directories at startup")
	cmd.Flags().Duration("skip-recent", 0,
		"Skip catalogs analysed within this duration (requires the database)")

	return cmd
}

// runWatchCmd executes the watch command.
func runWatchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.WatchDebounce, err = cmd.Flags().GetDuration("debounce"); err != nil {
		return err
	}
	if cfg.WatchDebounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %s", cfg.WatchDebounce)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	for _, dir := range cfg.Targets {
		if info, err := os.Stat(dir); err != nil {
			return fmt.Errorf("cannot watch %s: %w", dir, err)
		} else if !info.IsDir() {
			return fmt.Errorf("cannot watch %s: not a directory", dir)
		}
	}

	initial, err := cmd.Flags().GetBool("initial")
	if err != nil {
		return err
	}
	skipRecent, err := cmd.Flags().GetDuration("skip-recent")
	if err != nil {
		return err
	}
	details, err := cmd.Flags().GetBool("details")
	if err != nil {
		return err
	}

	logger, err := setupLogger(cmd)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, release, err := newScanner(cfg, logger, cmd.OutOrStdout(), details)
	if err != nil {
		return err
	}
	defer release()

	handle := func(ctx context.Context, path string) {
		if s.recentlyAnalysed(ctx, path, skipRecent) {
			logger.Info("skipping recently analysed catalog", "catalog", path)
			return
		}
		s.analyse(ctx, path)
	}

	w, err := newCatalogWatcher(cfg.Targets, cfg.WatchDebounce, logger, handle)
	if err != nil {
		return err
	}
	defer w.Close()

	if initial {
		for _, path := range existingCatalogs(cfg.Targets) {
			if ctx.Err() != nil {
				break
			}
			handle(ctx, path)
		}
	}

	watchStatus(cmd.OutOrStdout(), cfg.Targets)

	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// recentlyAnalysed reports whether path was analysed within d. It is
// always false without a database or when d is zero.
func (s *scanner) recentlyAnalysed(ctx context.Context, path string, d time.Duration) bool {
	if s.db == nil || d <= 0 {
		return false
	}
	recent, err := s.db.HasRecentAnalysis(ctx, path, d)
	if err != nil {
		s.logger.Warn("failed to check analysis history", "catalog", path, "error", err)
		return false
	}
	return recent
}

// isCatalogFile reports whether path looks like a catalog the watcher
// should analyse. Hidden files are ignored.
func isCatalogFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return slices.Contains(catalogExtensions, strings.ToLower(filepath.Ext(base)))
}

// existingCatalogs returns the catalog files directly inside dirs, sorted.
func existingCatalogs(dirs []string) []string {
	var paths []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.Type().IsRegular() && isCatalogFile(e.Name()) {
				paths = append(paths, filepath.Join(dir, e.Name()))
			}
		}
	}
	slices.Sort(paths)
	return paths
}

// catalogWatcher batches file system events on catalog files and hands
// each changed catalog to a handler once the directory has been quiet for
// the debounce period.
type catalogWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	handle   func(ctx context.Context, path string)
}

// newCatalogWatcher starts watching dirs. Subdirectories are not watched.
func newCatalogWatcher(dirs []string, debounce time.Duration, logger *slog.Logger, handle func(context.Context, string)) (*catalogWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logger.Info("watching directory", "dir", dir)
	}

	return &catalogWatcher{
		watcher:  watcher,
		debounce: debounce,
		logger:   logger,
		handle:   handle,
	}, nil
}

// Close stops the underlying watcher.
func (w *catalogWatcher) Close() error {
	return w.watcher.Close()
}

// Run processes events until ctx is cancelled or the watcher fails.
// Handlers run on the calling goroutine, one catalog at a time.
func (w *catalogWatcher) Run(ctx context.Context) error {
	pending := make(map[string]struct{})
	var timerC <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isCatalogFile(event.Name) {
				continue
			}

			w.logger.Debug("catalog changed", "catalog", event.Name, "op", event.Op.String())
			pending[event.Name] = struct{}{}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			for _, path := range w.flush(pending) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.handle(ctx, path)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// flush empties pending and returns the paths that still exist, sorted.
func (w *catalogWatcher) flush(pending map[string]struct{}) []string {
	paths := make([]string, 0, len(pending))
	for path := range pending {
		delete(pending, path)
		if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
			w.logger.Debug("changed catalog is gone", "catalog", path)
			continue
		}
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

// watchStatus prints where the watcher is looking.
func watchStatus(out io.Writer, dirs []string) {
	fmt.Fprintf(out, "Watching %s for catalogs (press Ctrl+C to stop)...\n\n", strings.Join(dirs, ", "))
}

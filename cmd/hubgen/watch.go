package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/syssam/hubgen/compiler/load"
	"github.com/syssam/hubgen/config"
)

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate whenever schema documents or the project file change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := a.logger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			cfg, err := a.load(log)
			if err != nil {
				return err
			}
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			regenerate := func() {
				if _, err := a.run(ctx, log, out); err != nil {
					fmt.Fprintf(out, "%s %v\n", fatal("error:"), err)
				}
			}
			regenerate()

			project := a.config
			if project == "" {
				project = config.DefaultFile
			}
			var files []string
			if _, err := os.Stat(project); err == nil {
				files = append(files, project)
			}
			fmt.Fprintf(out, "watching %s\n", cfg.SchemaDir)
			return watch(ctx, log, []string{cfg.SchemaDir}, files, debounce, regenerate)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "quiet period before regenerating")
	return cmd
}

// watch calls fn once changes to schema documents below dirs, or to one of
// files, have settled for the debounce period. It returns when ctx is done.
func watch(ctx context.Context, log *zap.Logger, dirs, files []string, debounce time.Duration, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	addTree := func(root string) error {
		return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return err
			}
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return w.Add(p)
		})
	}
	roots := make([]string, len(dirs))
	for i, d := range dirs {
		roots[i] = filepath.Clean(d)
		if err := addTree(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	watched := make(map[string]bool, len(files))
	for _, f := range files {
		watched[filepath.Clean(f)] = true
		// Editors save atomically, so the directory is watched rather than the file.
		if err := w.Add(filepath.Dir(f)); err != nil {
			return fmt.Errorf("watch %s: %w", f, err)
		}
	}
	relevant := func(name string) bool {
		name = filepath.Clean(name)
		if watched[name] {
			return true
		}
		if !load.IsDocument(name) {
			return false
		}
		for _, r := range roots {
			if rel, err := filepath.Rel(r, name); err == nil && !strings.HasPrefix(rel, "..") {
				return true
			}
		}
		return false
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(ev.Name); err != nil {
						log.Warn("watch new directory", zap.String("path", ev.Name), zap.Error(err))
					}
					continue
				}
			}
			if ev.Op == fsnotify.Chmod || !relevant(ev.Name) {
				continue
			}
			log.Debug("schema changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			fn()
		}
	}
}

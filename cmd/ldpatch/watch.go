package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/c360studio/ldpatch/ldpatch"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// fileWatcher reports debounced changes to a single file. It watches the
// parent directory so editors that replace files by rename are still seen.
type fileWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

func newFileWatcher(path string, debounce time.Duration, logger *slog.Logger) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &fileWatcher{
		path:     abs,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
	}, nil
}

// Run delivers a signal on the returned channel after each burst of changes,
// until ctx is cancelled.
func (w *fileWatcher) Run(ctx context.Context) <-chan struct{} {
	changes := make(chan struct{}, 1)
	notify := func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed {
			return
		}
		select {
		case changes <- struct{}{}:
		default:
		}
	}

	go func() {
		defer w.close(changes)

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				w.schedule(notify)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("Watcher error", "path", w.path, "error", err)
			}
		}
	}()

	return changes
}

func (w *fileWatcher) schedule(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, fn)
}

// close stops pending notifications before closing changes.
func (w *fileWatcher) close(changes chan struct{}) {
	_ = w.watcher.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(changes)
}

func (c *cli) watchCmd() *cobra.Command {
	var (
		document string
		shape    shapeFlags
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a patch every time a document changes",
		Long: `Watch projects the document, then prints the patch between the previous
and the new projection after every change. Unreadable intermediate states
are logged and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := shape.options(c)
			if err != nil {
				return err
			}
			patcher, err := c.newPatcher()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return c.watch(ctx, cmd, patcher, document, opts)
		},
	}

	cmd.Flags().StringVar(&document, "document", "", "Document file to watch")
	shape.register(cmd)
	_ = cmd.MarkFlagRequired("document")
	return cmd
}

func (c *cli) watch(ctx context.Context, cmd *cobra.Command, patcher *ldpatch.Patcher, document string, opts ldpatch.ShapeOptions) error {
	doc, err := readDocument(document)
	if err != nil {
		return err
	}
	previous, err := patcher.Project(ctx, doc, opts)
	if err != nil {
		return err
	}

	w, err := newFileWatcher(document, c.cfg.Watch.DebounceDelay, c.logger)
	if err != nil {
		return err
	}
	c.logger.Info("Watching document", "path", w.path, "debounce", c.cfg.Watch.DebounceDelay)

	for range w.Run(ctx) {
		doc, err := readDocument(document)
		if err != nil {
			c.logger.Warn("Skipping unreadable document", "path", document, "error", err)
			continue
		}
		current, err := patcher.Project(ctx, doc, opts)
		if err != nil {
			c.logger.Warn("Skipping unprojectable document", "path", document, "error", err)
			continue
		}
		// Both sides are already projected, so compare them without a frame.
		p, err := patcher.Diff(ctx, previous, current, ldpatch.ShapeOptions{})
		if err != nil {
			c.logger.Warn("Diff failed", "path", document, "error", err)
			continue
		}
		previous = current
		if len(p) == 0 {
			continue
		}
		if err := writeJSON(cmd.OutOrStdout(), p); err != nil {
			return err
		}
	}
	return nil
}

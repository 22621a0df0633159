// Package ingest demonstrates one external-collaborator boundary named in
// the orchestrator's design: a producer that watches the filesystem and
// submits each new or changed file as an Item, asynchronously, without
// waiting on judgment.
package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/collective-judgment/cjo/internal/model"
)

// Submitter is the orchestrator surface a Watcher feeds. Satisfied by
// *orchestrator.Orchestrator.
type Submitter interface {
	SubmitAsync(item model.Item) uuid.UUID
}

// Config configures a Watcher.
type Config struct {
	Dir        string
	Submitter  Submitter
	Logger     *slog.Logger
	DebounceMs int // default 500ms, matching the teacher's hot-reload debounce
	Kind       model.Kind
}

// Watcher watches Dir and submits each create/write event as an Item once
// its debounce window has elapsed, collapsing an editor's rapid save-then-
// rewrite into a single submission.
type Watcher struct {
	dir        string
	submitter  Submitter
	logger     *slog.Logger
	debounceMs int
	kind       model.Kind
	fsw        *fsnotify.Watcher

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	stopCh  chan struct{}
	doneCh  chan struct{}
	stopMu  sync.Mutex
	stopped bool
}

// New builds a Watcher over cfg.Dir. The directory must already exist; New
// does not create it -- ingest watches an operator-provisioned directory,
// it doesn't own its lifecycle.
func New(cfg Config) (*Watcher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounceMs := cfg.DebounceMs
	if debounceMs <= 0 {
		debounceMs = 500
	}
	kind := cfg.Kind
	if kind == "" {
		kind = model.KindFreeText
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		dir:            cfg.Dir,
		submitter:      cfg.Submitter,
		logger:         logger,
		debounceMs:     debounceMs,
		kind:           kind,
		fsw:            fsw,
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}, nil
}

// Start begins watching cfg.Dir in the background. Non-blocking; Stop
// drains the watch loop before returning.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.dir); err != nil {
		return err
	}
	w.logger.Info("ingest: watcher started", "dir", w.dir, "debounce_ms", w.debounceMs)
	go w.watchLoop(ctx)
	return nil
}

// Stop halts the watcher and waits for its loop to exit.
func (w *Watcher) Stop() error {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	<-w.doneCh
	return w.fsw.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("ingest: watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return
	}
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	w.debounce(event.Name)
}

// debounce collapses repeated events for the same path within the debounce
// window into a single submission, the same shape as an editor's
// auto-save-triggered rewrite storm.
func (w *Watcher) debounce(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
	}
	w.debounceTimers[path] = time.AfterFunc(time.Duration(w.debounceMs)*time.Millisecond, func() {
		w.submit(path)
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()
	})
}

func (w *Watcher) submit(path string) {
	body, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("ingest: read file failed", "path", path, "error", err)
		return
	}

	item := model.Item{
		ID:         uuid.New(),
		Kind:       w.kind,
		Body:       string(body),
		Context:    map[string]any{"path": path},
		ReceivedAt: time.Now().UTC(),
	}

	submissionID := w.submitter.SubmitAsync(item)
	w.logger.Info("ingest: submitted file", "path", path, "submission_id", submissionID)
}

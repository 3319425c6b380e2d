// Package inbox imports conversation files dropped into a directory.
package inbox

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MikeSquared-Agency/convoscope/internal/conversation"
)

// DefaultDebounce is how long a file must stay quiet before it is imported.
const DefaultDebounce = 250 * time.Millisecond

// Target receives imported documents. session.View satisfies it.
type Target interface {
	Import(data []byte, source string) (*conversation.Conversation, error)
	ImportCC(r io.Reader, id, title string) (*conversation.Conversation, error)
}

// Watcher imports *.json documents and *.jsonl Claude Code transcripts
// written to a directory. Editors and copy tools emit several events per
// file, so imports are debounced per path.
type Watcher struct {
	dir      string
	source   string
	target   Target
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	mu        sync.Mutex
	pending   map[string]*time.Timer
	processed map[string][sha256.Size]byte
	running   bool
	stopped   bool
	wg        sync.WaitGroup
}

// New creates a watcher for dir. source labels the imports it performs.
func New(dir, source string, target Target, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("inbox dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox dir %q is not a directory", dir)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:       dir,
		source:    source,
		target:    target,
		debounce:  debounce,
		logger:    logger,
		watcher:   fw,
		pending:   make(map[string]*time.Timer),
		processed: make(map[string][sha256.Size]byte),
	}, nil
}

// Watch blocks until ctx is cancelled, importing files as they settle.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("inbox watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("inbox watcher started", "dir", w.dir, "debounce_ms", w.debounce.Milliseconds())
	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("inbox events channel closed")
			}
			if !accepts(event) {
				continue
			}
			w.logger.Debug("inbox event", "path", event.Name, "op", event.Op.String())
			w.schedule(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("inbox errors channel closed")
			}
			w.logger.Error("inbox watcher error", "error", err)
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if prev, ok := w.pending[path]; ok && prev.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		current := w.pending[path] == t
		if current {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if current {
			if err := w.ImportFile(path); err != nil {
				w.logger.Warn("inbox import failed", "path", path, "error", err)
			}
		}
	})
	w.pending[path] = t
}

// ImportFile imports one file by extension. A file whose content is
// unchanged since it was last imported is skipped.
func (w *Watcher) ImportFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".jsonl" {
		return fmt.Errorf("unsupported inbox file %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	w.mu.Lock()
	prev, seen := w.processed[path]
	w.mu.Unlock()
	if seen && prev == sum {
		w.logger.Debug("inbox file unchanged, skipping", "path", path)
		return nil
	}

	var conv *conversation.Conversation
	if ext == ".jsonl" {
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		conv, err = w.target.ImportCC(bytes.NewReader(data), id, "")
	} else {
		conv, err = w.target.Import(data, w.source)
	}
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.processed[path] = sum
	w.mu.Unlock()
	w.logger.Info("inbox file imported", "path", path, "conversation_id", conv.ID)
	return nil
}

// shutdown cancels pending imports and waits for any already running.
func (w *Watcher) shutdown() {
	w.mu.Lock()
	w.stopped = true
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("close inbox watcher", "error", err)
	}
}

func accepts(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".json", ".jsonl":
		return true
	}
	return false
}

package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tether/pkg/logging"
)

// ChangeOp is what happened to a manifest.
type ChangeOp string

const (
	ChangeAdded   ChangeOp = "added"
	ChangeChanged ChangeOp = "changed"
	ChangeRemoved ChangeOp = "removed"
)

// Change is a debounced manifest change.
type Change struct {
	Op         ChangeOp
	Identifier string
	Path       string
	Timestamp  time.Time
}

// DefaultDebounce is used when NewScanner gets a zero interval.
const DefaultDebounce = 500 * time.Millisecond

type pendingChange struct {
	change Change
	timer  *time.Timer
}

// Scanner watches a repository directory and reports manifest changes.
// Bursts of events for the same identifier collapse into one Change.
type Scanner struct {
	mu sync.Mutex

	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	pending  map[string]*pendingChange
	stopCh   chan struct{}
	running  bool
}

// NewScanner creates a scanner for dir.
func NewScanner(dir string, debounce time.Duration) *Scanner {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Scanner{
		dir:      dir,
		debounce: debounce,
		pending:  make(map[string]*pendingChange),
	}
}

// Start begins watching. Changes are sent to changes without blocking; a
// full channel drops the change with a warning.
func (s *Scanner) Start(ctx context.Context, changes chan<- Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	s.watcher = watcher
	s.stopCh = make(chan struct{})
	s.running = true
	go s.processEvents(ctx, watcher, s.stopCh, changes)

	logging.Info("Scanner", "Watching %s for unit manifests", s.dir)
	return nil
}

func (s *Scanner) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh <-chan struct{}, changes chan<- Change) {
	for {
		select {
		case <-ctx.Done():
			s.cancelPending()
			return
		case <-stopCh:
			s.cancelPending()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event, changes)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Scanner", err, "Filesystem watcher error")
		}
	}
}

func (s *Scanner) handleEvent(event fsnotify.Event, changes chan<- Change) {
	if !isManifestFile(event.Name) {
		return
	}
	id := identifierFromPath(event.Name)
	if ValidateIdentifier(id) != nil {
		return
	}

	var op ChangeOp
	switch {
	case event.Has(fsnotify.Create):
		op = ChangeAdded
	case event.Has(fsnotify.Write):
		op = ChangeChanged
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename shows up as a Create under the new name.
		op = ChangeRemoved
	default:
		return
	}

	s.debounceChange(Change{Op: op, Identifier: id, Path: event.Name, Timestamp: time.Now()}, changes)
}

func (s *Scanner) debounceChange(c Change, changes chan<- Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.pending[c.Identifier]; ok {
		prev.timer.Stop()
		c.Op = mergeOps(prev.change.Op, c.Op)
	}

	key := c.Identifier
	entry := &pendingChange{change: c}
	entry.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		current, ok := s.pending[key]
		if ok && current == entry {
			delete(s.pending, key)
		}
		s.mu.Unlock()
		if !ok || current != entry {
			return
		}

		select {
		case changes <- entry.change:
			logging.Debug("Scanner", "Manifest %s %s", entry.change.Identifier, entry.change.Op)
		default:
			logging.Warn("Scanner", "Change channel full, dropping %s %s", entry.change.Identifier, entry.change.Op)
		}
	})
	s.pending[key] = entry
}

// mergeOps folds a burst of operations into one. Added then changed is still
// added; anything followed by removed is removed; removed then added is a
// change of the manifest.
func mergeOps(prev, next ChangeOp) ChangeOp {
	switch {
	case next == ChangeRemoved:
		return ChangeRemoved
	case prev == ChangeAdded:
		return ChangeAdded
	case prev == ChangeRemoved && next == ChangeAdded:
		return ChangeChanged
	}
	return next
}

func (s *Scanner) cancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pending {
		p.timer.Stop()
	}
	s.pending = make(map[string]*pendingChange)
}

// Stop ends watching. Pending changes are discarded.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)

	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
		s.watcher = nil
	}
	logging.Info("Scanner", "Stopped watching %s", s.dir)
	return err
}

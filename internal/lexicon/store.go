package lexicon

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"applysharp/internal/errors"
)

// Store hands out the current lexicon snapshot and, when backed by a file,
// reloads it whenever the file changes on disk.
type Store struct {
	mu      sync.RWMutex
	current *Lexicon

	path          string
	debounceDelay time.Duration
	debounceTimer *time.Timer
	fsWatcher     *fsnotify.Watcher
	reloadChan    chan struct{}
	stopChan      chan struct{}
	running       bool

	logger *errors.Logger
}

// NewStore loads the lexicon from path, or the defaults when path is empty.
func NewStore(path string, logger *errors.Logger) (*Store, error) {
	s := &Store{
		current:       Default(),
		path:          path,
		debounceDelay: 500 * time.Millisecond,
		reloadChan:    make(chan struct{}, 1),
		stopChan:      make(chan struct{}),
		logger:        logger,
	}
	if path == "" {
		return s, nil
	}

	lex, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.current = lex
	return s, nil
}

// Current returns the active snapshot.
func (s *Store) Current() *Lexicon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Watch starts reloading the lexicon file on change. It is a no-op without a file.
func (s *Store) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	if s.running {
		return fmt.Errorf("lexicon watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory so atomic rename-over writes are seen.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch lexicon directory: %w", err)
	}

	s.fsWatcher = watcher
	s.running = true
	go s.watchLoop()

	if s.logger != nil {
		s.logger.Info("Lexicon file watcher started", "file", s.path, "debounce_delay", s.debounceDelay)
	}
	return nil
}

// Stop stops watching the lexicon file.
func (s *Store) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	close(s.stopChan)
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.running = false
	return s.fsWatcher.Close()
}

func (s *Store) watchLoop() {
	for {
		select {
		case event, ok := <-s.fsWatcher.Events:
			if !ok {
				return
			}
			if s.shouldProcessEvent(event) {
				s.scheduleReload()
			}

		case err, ok := <-s.fsWatcher.Errors:
			if !ok {
				return
			}
			if s.logger != nil {
				s.logger.LogError(err, "Lexicon watcher error")
			}

		case <-s.reloadChan:
			s.reload()

		case <-s.stopChan:
			return
		}
	}
}

func (s *Store) shouldProcessEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(s.path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (s *Store) scheduleReload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.debounceDelay, func() {
		select {
		case s.reloadChan <- struct{}{}:
		default:
		}
	})
}

// reload swaps in the file's content. A broken file keeps the previous snapshot.
func (s *Store) reload() {
	lex, err := Load(s.path)
	if err != nil {
		if s.logger != nil {
			s.logger.LogError(err, "Lexicon reload failed, keeping previous word lists", "file", s.path)
		}
		return
	}

	s.mu.Lock()
	s.current = lex
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("Lexicon reloaded", "file", s.path, "ai_words", len(lex.AIWords), "skills", len(lex.Skills))
	}
}

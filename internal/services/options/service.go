// Package options keeps the runtime options file in sync with the running
// poller, reloading it when it is edited on disk.
package options

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/tadox-dashboard-tui/internal/config"
	"github.com/j-veylop/tadox-dashboard-tui/internal/logger"
	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
)

const debounceInterval = 100 * time.Millisecond

// File represents the JSON file structure for options storage.
type File struct {
	Options models.Options `json:"options"`
	Version int            `json:"version,omitempty"`
}

// EventType defines the type of options event.
type EventType int

const (
	EventOptionsLoaded EventType = iota
	EventOptionsChanged
	EventError
)

// Event represents an options service event.
type Event struct {
	Error   error
	Options models.Options
	Type    EventType
}

// Service owns the options file and publishes every effective change.
type Service struct {
	watcher   *fsnotify.Watcher
	eventChan chan Event
	stopChan  chan struct{}
	filePath  string
	opts      models.Options
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closeOnce sync.Once
}

// New loads the options file, creating it when missing, and starts watching it.
func New(filePath string) (*Service, error) {
	if filePath == "" {
		return nil, errors.New("options file path is empty")
	}

	s := &Service{
		filePath:  filePath,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create options directory: %w", err)
	}

	opts, err := readFile(filePath)
	switch {
	case err == nil:
		s.opts = opts
	case os.IsNotExist(err):
		if err := s.save(s.opts); err != nil {
			return nil, fmt.Errorf("failed to create options file: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to load options: %w", err)
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventOptionsLoaded, Options: s.Get()})
	return s, nil
}

// Events returns the event channel for subscribing to option changes.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Get returns a copy of the current options.
func (s *Service) Get() models.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.opts)
}

// Update applies fn to a copy of the options, normalizes and saves the
// result and publishes it.
func (s *Service) Update(fn func(*models.Options)) (models.Options, error) {
	s.mu.Lock()
	next := clone(s.opts)
	fn(&next)
	next = Normalize(next)
	if equal(next, s.opts) {
		s.mu.Unlock()
		return next, nil
	}
	if err := s.save(next); err != nil {
		s.mu.Unlock()
		return s.Get(), fmt.Errorf("failed to save options: %w", err)
	}
	s.opts = next
	s.mu.Unlock()

	s.publish(next)
	return clone(next), nil
}

// SetHome binds the options to a home.
func (s *Service) SetHome(home models.Home) (models.Options, error) {
	return s.Update(func(o *models.Options) {
		o.HomeID = home.ID
		o.HomeName = home.Name
	})
}

// Normalize clamps the scan interval override into the accepted range.
// Zero keeps the tier preset.
func Normalize(opts models.Options) models.Options {
	if opts.ScanIntervalSeconds <= 0 {
		opts.ScanIntervalSeconds = 0
		return opts
	}
	minSec := int(config.MinScanInterval / time.Second)
	maxSec := int(config.MaxScanInterval / time.Second)
	if opts.ScanIntervalSeconds < minSec {
		opts.ScanIntervalSeconds = minSec
	}
	if opts.ScanIntervalSeconds > maxSec {
		opts.ScanIntervalSeconds = maxSec
	}
	return opts
}

func readFile(path string) (models.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Options{}, err
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return models.Options{}, fmt.Errorf("failed to parse options file: %w", err)
	}
	return Normalize(file.Options), nil
}

// save writes the options file atomically.
func (s *Service) save(opts models.Options) error {
	data, err := json.MarshalIndent(File{Options: opts, Version: 1}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	// Write to temp file first, then rename
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "error", removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// startWatcher watches the parent directory so renames onto the file are seen.
func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	s.wg.Add(1)
	go s.watchLoop()
	return nil
}

// watchLoop handles file system events with debouncing.
func (s *Service) watchLoop() {
	defer s.wg.Done()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filepath.Base(s.filePath) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceInterval, s.handleFileChange)
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

// handleFileChange reloads the file after an external edit. Our own writes
// come back through here too and are dropped when nothing changed.
func (s *Service) handleFileChange() {
	opts, err := readFile(s.filePath)
	if err != nil {
		logger.Warn("failed to reload options file", "path", s.filePath, "error", err)
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}

	s.mu.Lock()
	if equal(opts, s.opts) {
		s.mu.Unlock()
		return
	}
	s.opts = opts
	s.mu.Unlock()

	logger.Info("options file changed", "path", s.filePath)
	s.publish(opts)
}

func (s *Service) publish(opts models.Options) {
	s.sendEvent(Event{Type: EventOptionsChanged, Options: clone(opts)})
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the file watcher and cleans up resources.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)
		if s.watcher != nil {
			err = s.watcher.Close()
		}
		s.wg.Wait()
	})
	return err
}

func clone(o models.Options) models.Options {
	out := o
	out.EnableWeather = cloneBool(o.EnableWeather)
	out.EnableMobileDevices = cloneBool(o.EnableMobileDevices)
	out.EnableAirComfort = cloneBool(o.EnableAirComfort)
	out.EnableRunningTimes = cloneBool(o.EnableRunningTimes)
	return out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func equal(a, b models.Options) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

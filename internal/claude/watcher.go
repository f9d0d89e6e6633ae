package claude

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// WatchEvent is a single file system event surfaced for one session
// file, consumed by the REST layer's websocket broadcast.
type WatchEvent struct {
	Type      string          `json:"type"` // created, modified, deleted
	FilePath  string          `json:"file_path"`
	Session   *SessionSummary `json:"session,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ProjectWatcher watches a corpus root's project directories for
// session-file changes and drives reloads. On each create or modify
// event it runs a fresh, uncached ExtractSession of that one file to
// build the WatchEvent; project-wide reloads are left to the reload
// callback, which it calls after a debounce window.
type ProjectWatcher struct {
	watcher       *fsnotify.Watcher
	corpusRoot    string
	logger        *logrus.Logger
	eventCallback func(WatchEvent)
	reloadCallback func(projectDir string)
	stopChan      chan struct{}
}

// NewProjectWatcher creates a watcher rooted at corpusRoot
// (<home>/.claude).
func NewProjectWatcher(corpusRoot string, logger *logrus.Logger) (*ProjectWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &ProjectWatcher{
		watcher:    w,
		corpusRoot: corpusRoot,
		logger:     logger,
		stopChan:   make(chan struct{}),
	}, nil
}

// SetEventCallback registers a callback fired for each individual
// create/modify/delete event.
func (pw *ProjectWatcher) SetEventCallback(cb func(WatchEvent)) { pw.eventCallback = cb }

// SetReloadCallback registers a callback fired (debounced) with the
// project directory that should be reloaded via LoadProjectSessions.
func (pw *ProjectWatcher) SetReloadCallback(cb func(projectDir string)) { pw.reloadCallback = cb }

// Start begins watching every project directory under corpusRoot/projects.
func (pw *ProjectWatcher) Start() error {
	projectsDir := filepath.Join(pw.corpusRoot, "projects")

	err := filepath.Walk(projectsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // a single unreadable path doesn't abort the walk
		}
		if info.IsDir() {
			return pw.watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set up directory watching: %w", err)
	}

	go pw.eventLoop()
	return nil
}

// Stop stops the watcher.
func (pw *ProjectWatcher) Stop() error {
	close(pw.stopChan)
	return pw.watcher.Close()
}

func (pw *ProjectWatcher) eventLoop() {
	var debounceTimer *time.Timer
	const debounceDelay = 500 * time.Millisecond
	pendingProjects := make(map[string]bool)

	for {
		select {
		case <-pw.stopChan:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = pw.watcher.Add(event.Name)
				}
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".jsonl") {
				continue
			}

			eventType := ""
			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				eventType = "created"
			case event.Op&fsnotify.Write == fsnotify.Write:
				eventType = "modified"
			case event.Op&fsnotify.Remove == fsnotify.Remove:
				eventType = "deleted"
			}
			if eventType == "" {
				continue
			}

			if pw.eventCallback != nil {
				we := WatchEvent{Type: eventType, FilePath: event.Name, Timestamp: time.Now()}
				if eventType != "deleted" {
					if res, err := ExtractSession(event.Name, nil); err == nil && res.Session.ActualSessionID != "" {
						session := res.Session
						session.ProjectName = filepath.Base(DecodeProjectPath(filepath.Base(filepath.Dir(event.Name))).Path)
						we.Session = &session
					}
				}
				pw.eventCallback(we)
			}

			projectDir := filepath.Dir(event.Name)
			pendingProjects[projectDir] = true

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				for dir := range pendingProjects {
					if pw.reloadCallback != nil {
						pw.reloadCallback(dir)
					}
				}
				pendingProjects = make(map[string]bool)
			})

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			if pw.logger != nil {
				pw.logger.WithError(err).Warn("file watcher error")
			}
		}
	}
}

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
)

// Settings are the runtime-editable values carried by the YAML settings file.
// The service-account token is an explicit non-interactive credential, not a
// borrowed user token.
type Settings struct {
	ServiceAccountToken string `yaml:"service_account_token"`
	APIKey              string `yaml:"api_key"`
	DefaultWorkspace    string `yaml:"default_workspace"`
}

// SettingsWatcher loads the settings file and reloads it when it changes.
// Without a configured file it serves only the static API key.
type SettingsWatcher struct {
	log          *zap.Logger
	filePath     string
	staticAPIKey string
	watcher      *fsnotify.Watcher
	stopCh       chan struct{}
	mu           sync.RWMutex
	settings     Settings
	lastModTime  time.Time
}

func NewSettingsWatcher(log *zap.Logger, filePath, staticAPIKey string) *SettingsWatcher {
	return &SettingsWatcher{
		log:          log,
		filePath:     filePath,
		staticAPIKey: staticAPIKey,
		stopCh:       make(chan struct{}),
	}
}

// Start loads the initial settings and begins watching for changes. A missing
// file path disables watching entirely.
func (w *SettingsWatcher) Start(ctx context.Context) error {
	if w.filePath == "" {
		return nil
	}

	absPath, err := filepath.Abs(w.filePath)
	if err != nil {
		return fmt.Errorf("get absolute path: %w", err)
	}
	w.filePath = absPath

	if err := w.loadSettings(); err != nil {
		return fmt.Errorf("load initial settings: %w", err)
	}

	w.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := w.watcher.Add(w.filePath); err != nil {
		w.log.Warn("Could not watch settings file, changes require a restart.",
			zap.String("file", w.filePath),
			zap.Error(err),
		)
		_ = w.watcher.Close()
		w.watcher = nil
		return nil
	}

	go w.watchSettingsFile(ctx)
	w.log.Debug("Settings watcher started successfully.", zap.String("settings_file", w.filePath))
	return nil
}

// Stop stops the watcher
func (w *SettingsWatcher) Stop() {
	close(w.stopCh)
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}

// Get returns the current parsed settings
func (w *SettingsWatcher) Get() Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings
}

// ServiceAccountToken returns the configured service-account credential.
func (w *SettingsWatcher) ServiceAccountToken() string {
	return w.Get().ServiceAccountToken
}

// APIKey returns the settings-file API key, falling back to the static one.
func (w *SettingsWatcher) APIKey() string {
	if key := w.Get().APIKey; key != "" {
		return key
	}
	return w.staticAPIKey
}

// DefaultWorkspace returns the workspace commands operate on when the user
// does not name one.
func (w *SettingsWatcher) DefaultWorkspace() string {
	return w.Get().DefaultWorkspace
}

func (w *SettingsWatcher) loadSettings() error {
	content, err := os.ReadFile(w.filePath) // #nosec G304 -- filePath is controlled by configuration
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}

	var settings Settings
	if err := yaml.Unmarshal(content, &settings); err != nil {
		return fmt.Errorf("unmarshal yaml: %w", err)
	}

	w.mu.Lock()
	w.settings = settings
	w.mu.Unlock()
	return nil
}

func (w *SettingsWatcher) watchSettingsFile(ctx context.Context) {
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.checkFileModification()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("Settings watcher error", zap.Error(err))
		}
	}
}

func (w *SettingsWatcher) checkFileModification() {
	fileInfo, err := os.Stat(w.filePath)
	if err != nil {
		w.log.Error("Failed to stat settings file",
			zap.String("file", w.filePath),
			zap.Error(err),
		)
		return
	}

	if fileInfo.ModTime().After(w.lastModTime) {
		w.lastModTime = fileInfo.ModTime()
		w.log.Info("Settings file changed, reloading",
			zap.String("file", w.filePath),
		)
		if err := w.loadSettings(); err != nil {
			w.log.Error("Failed to reload settings", zap.Error(err))
		}
	}
}

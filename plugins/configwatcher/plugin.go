// Package configwatcher provides config file monitoring for pubship.
// Thresholds are an immutable snapshot taken at startup, so the plugin
// does not hot-reload anything; it detects drift between the running
// configuration and the file on disk and reports it, so operators know a
// restart is needed.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/pubship"
	"github.com/bft-labs/pubship/pkg/log"
)

// ChangeFunc is invoked, debounced, whenever the watched config file is
// written or recreated.
type ChangeFunc func(path string)

// Plugin watches the publisher's config file for changes.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	path          string
	debounceDelay time.Duration
	onChange      ChangeFunc

	// Runtime state
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the config file to watch. Required.
	Path string

	// DebounceDelay is the delay to wait after a file change before
	// reporting it. Editors often produce several events per save.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// OnChange is invoked after the debounce window. When nil, the
	// plugin logs a warning instead.
	OnChange ChangeFunc
}

// DefaultConfig returns a Config with sensible defaults for the given path.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}

	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		onChange:      cfg.OnChange,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize sets up the plugin and starts the watcher loop.
func (p *Plugin) Initialize(ctx context.Context, cfg pubship.PluginConfig) error {
	p.mu.Lock()
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.path == "" {
		p.logger.Warn("config watcher disabled: no config file path")
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx)

	p.logger.Info("config watcher initialized", log.String("path", p.path))
	return nil
}

// Shutdown stops the watcher loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

// watchLoop watches the config file's directory for changes. Watching the
// directory rather than the file survives rename-and-replace saves.
func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("config watcher: failed to create watcher", log.Err(err))
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		p.logger.Error("config watcher: failed to watch directory", log.Err(err))
		return
	}

	want := filepath.Base(p.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != want {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReport()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher: watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReport() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}

	p.debounce = time.AfterFunc(p.debounceDelay, p.report)
}

func (p *Plugin) report() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()

	if fn != nil {
		fn(p.path)
		return
	}
	p.logger.Warn("config file changed on disk; restart to apply",
		log.String("path", p.path))
}

package vizcore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads a config file when it changes on disk and hands each
// valid result to a callback. Invalid edits are logged and ignored; the last
// good config stays in effect.
type ConfigWatcher struct {
	path     string
	logger   Logger
	onChange func(Config)
	debounce time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
}

func NewConfigWatcher(path string, logger Logger, onChange func(Config)) (*ConfigWatcher, error) {
	if logger == nil {
		logger = NewNopLogger()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory; editors often replace the file instead of
	// writing it in place.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}
	return &ConfigWatcher{
		path:     abs,
		logger:   logger,
		onChange: onChange,
		debounce: 50 * time.Millisecond,
		watcher:  w,
		done:     make(chan struct{}),
	}, nil
}

// Run blocks until ctx is done or the watcher is closed.
func (cw *ConfigWatcher) Run(ctx context.Context) error {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cw.done:
			return nil
		case e, ok := <-cw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != cw.path || e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(cw.debounce)
			} else {
				timer.Reset(cw.debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			cw.reload()
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return nil
			}
			cw.logger.Warnf("config: watch error: %v", err)
		}
	}
}

func (cw *ConfigWatcher) reload() {
	cfg, err := LoadConfig(cw.path)
	if err != nil {
		cw.logger.Warnf("config: reload rejected: %v", err)
		return
	}
	cw.logger.Infof("config: reloaded %s", cw.path)
	if cw.onChange != nil {
		cw.onChange(cfg)
	}
}

func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.closed {
		return errors.New("config watcher already closed")
	}
	cw.closed = true
	close(cw.done)
	return cw.watcher.Close()
}

package quotastore

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// tamperWatcher observes the store's main database file for unexpected
// deletion or truncation while the store is open, logging an
// invariant-class warning. It is purely observational — it never
// enforces policy. An fsnotify watcher with a polling fallback for
// filesystems that don't support inotify.
type tamperWatcher struct {
	watcher     *fsnotify.Watcher
	path        string
	pollingMode bool
	logger      *log.Logger
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastSize    int64
}

func newTamperWatcher(path string, logger *log.Logger) *tamperWatcher {
	tw := &tamperWatcher{path: path, logger: logger}

	if stat, err := os.Stat(path); err == nil {
		tw.lastSize = stat.Size()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		tw.pollingMode = true
		return tw
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		tw.pollingMode = true
		return tw
	}
	tw.watcher = watcher
	return tw
}

func (tw *tamperWatcher) start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	tw.cancel = cancel

	if tw.pollingMode {
		tw.startPolling(ctx)
	} else {
		tw.startFSWatch(ctx)
	}
}

func (tw *tamperWatcher) startFSWatch(ctx context.Context) {
	tw.wg.Add(1)
	go func() {
		defer tw.wg.Done()
		for {
			select {
			case event, ok := <-tw.watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Remove != 0 {
					tw.logger.Printf("invariant: store file %s was removed while open", tw.path)
				}
				if event.Op&fsnotify.Write != 0 {
					tw.checkTruncation()
				}
			case _, ok := <-tw.watcher.Errors:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (tw *tamperWatcher) startPolling(ctx context.Context) {
	tw.wg.Add(1)
	go func() {
		defer tw.wg.Done()
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tw.checkTruncation()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (tw *tamperWatcher) checkTruncation() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	stat, err := os.Stat(tw.path)
	if err != nil {
		tw.logger.Printf("invariant: store file %s is no longer readable: %v", tw.path, err)
		return
	}
	if stat.Size() < tw.lastSize {
		tw.logger.Printf("invariant: store file %s shrank from %d to %d bytes", tw.path, tw.lastSize, stat.Size())
	}
	tw.lastSize = stat.Size()
}

func (tw *tamperWatcher) close() error {
	if tw.cancel != nil {
		tw.cancel()
	}
	tw.wg.Wait()
	if tw.watcher != nil {
		return tw.watcher.Close()
	}
	return nil
}

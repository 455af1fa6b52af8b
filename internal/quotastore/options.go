package quotastore

import (
	"log"
	"os"
	"time"

	"github.com/tilequota/diskquota/internal/calculator"
)

// Options configures Open. Every field has a usable zero value; QueueSize
// and DrainTimeout of zero mean "take whatever tuning.yaml (or its
// compiled-in defaults) says" — set them explicitly only to override the
// tuning file.
type Options struct {
	// Locator supplies the cache root directory when non-nil; otherwise
	// Open's cacheRoot argument is used directly.
	Locator calculator.CacheDirectoryLocator

	// Logger receives informational, warning, and invariant-violation
	// log lines. Defaults to a logger writing to os.Stderr, matching the
	// teacher's low-ceremony CLI logging.
	Logger *log.Logger

	// QueueSize overrides the Transaction Worker's submission queue
	// depth.
	QueueSize int

	// DrainTimeout overrides the bounded shutdown drain deadline.
	DrainTimeout time.Duration

	// DisableTamperWatch turns off the fsnotify-based external-tamper
	// watcher, useful for tests that don't want the extra goroutine.
	DisableTamperWatch bool

	// Now, if set, replaces time.Now for computing page-creation
	// timestamps — tests inject a fixed clock for determinism.
	Now func() time.Time
}

func (o Options) loggerOrDefault() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(os.Stderr, "diskquota: ", log.LstdFlags)
}

func (o Options) clockOrDefault() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

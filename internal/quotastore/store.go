// Package quotastore is the Store Facade (SF): the public API of the
// tile-cache disk-quota accounting store, plus the Startup Reconciler
// and Eviction Query components layered on top of internal/pagestore
// and internal/txworker.
package quotastore

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/tilequota/diskquota/internal/calculator"
	"github.com/tilequota/diskquota/internal/pagestore"
	"github.com/tilequota/diskquota/internal/tuning"
	"github.com/tilequota/diskquota/internal/txworker"
	"github.com/tilequota/diskquota/internal/types"
)

const storeDirName = "diskquota_page_store"

// Store is the disk-quota accounting store's public handle. A process
// opens at most one Store per cache root at a time; the directory-wide
// flock enforces this across processes, and the Transaction Worker
// linearizes access within this process.
type Store struct {
	dir     string
	engine  *pagestore.Engine
	worker  *txworker.Worker
	calc    calculator.TilePageCalculator
	lock    *flock.Flock
	logger  *log.Logger
	watcher *tamperWatcher
	drain   time.Duration
	now     func() time.Time
}

func (s *Store) logInfo(format string, args ...any) { s.logger.Printf("info: "+format, args...) }
func (s *Store) logWarn(format string, args ...any) { s.logger.Printf("warn: "+format, args...) }
func (s *Store) logInvariant(format string, args ...any) {
	s.logger.Printf("invariant: "+format, args...)
}

// Open initializes (or reopens) the store rooted at
// <cacheRoot>/diskquota_page_store, running the Startup Reconciler
// before returning.
func Open(ctx context.Context, cacheRoot string, calc calculator.TilePageCalculator, opts Options) (*Store, error) {
	if opts.Locator != nil {
		root, err := opts.Locator.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve cache directory: %w", err)
		}
		cacheRoot = root
	}

	dir := filepath.Join(cacheRoot, storeDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.WrapStorageError("create store directory", err)
	}

	lock := flock.New(filepath.Join(dir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, types.WrapStorageError("acquire store lock", err)
	}
	if !locked {
		return nil, fmt.Errorf("diskquota: store directory %s is already open by another process", dir)
	}

	tuned := tuning.Defaults()
	if loaded, err := tuning.Load(dir); err == nil {
		tuned = loaded
	}
	queueSize := tuned.QueueSize
	if opts.QueueSize > 0 {
		queueSize = opts.QueueSize
	}
	drain := tuned.DrainTimeout
	if opts.DrainTimeout > 0 {
		drain = opts.DrainTimeout
	}

	engine, err := pagestore.Open(ctx, dir)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	worker := txworker.New(queueSize)

	s := &Store{
		dir:    dir,
		engine: engine,
		worker: worker,
		calc:   calc,
		lock:   lock,
		logger: opts.loggerOrDefault(),
		drain:  drain,
		now:    opts.clockOrDefault(),
	}

	if !opts.DisableTamperWatch {
		s.watcher = newTamperWatcher(engine.FilePath(), opts.loggerOrDefault())
		s.watcher.start(ctx)
	}

	if _, err := worker.SubmitAndWait(ctx, func(ctx context.Context) (any, error) {
		return nil, s.reconcile(ctx)
	}); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}

	return s, nil
}

// Close drains the Transaction Worker (bounded by the configured
// DrainTimeout), stops the tamper watcher, closes the PSE, and releases
// the directory lock.
func (s *Store) Close(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, s.drain)
	defer cancel()
	workerErr := s.worker.Close(drainCtx)

	if s.watcher != nil {
		_ = s.watcher.close()
	}

	engineErr := s.engine.Close()
	lockErr := s.lock.Unlock()

	if workerErr != nil {
		return workerErr
	}
	if engineErr != nil {
		return engineErr
	}
	return lockErr
}

// GloballyUsedQuota returns the sentinel Quota's byte count.
func (s *Store) GloballyUsedQuota(ctx context.Context) (*big.Int, error) {
	v, err := s.worker.SubmitAndWait(ctx, func(ctx context.Context) (any, error) {
		tx, err := s.engine.Begin(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Abort()
		q, err := tx.GetQuota(types.GlobalTileSetID)
		if err != nil {
			return nil, err
		}
		return q.Bytes, tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return v.(*big.Int), nil
}

// UsedQuotaByTileSetID returns the Quota row for a tile set, failing
// with types.ErrNoSuchTileSet if absent.
func (s *Store) UsedQuotaByTileSetID(ctx context.Context, tileSetID string) (types.Quota, error) {
	v, err := s.worker.SubmitAndWait(ctx, func(ctx context.Context) (any, error) {
		tx, err := s.engine.Begin(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Abort()
		q, err := tx.GetQuota(tileSetID)
		if err != nil {
			return nil, err
		}
		return q, tx.Commit()
	})
	if err != nil {
		return types.Quota{}, err
	}
	return v.(types.Quota), nil
}

// UsedQuotaByLayer sums bytes across every tile set of a layer, failing
// with types.ErrNoSuchLayer if the layer has no tile sets.
func (s *Store) UsedQuotaByLayer(ctx context.Context, layer string) (*big.Int, error) {
	v, err := s.worker.SubmitAndWait(ctx, func(ctx context.Context) (any, error) {
		tx, err := s.engine.Begin(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Abort()

		ids, err := tx.ListTileSetIDsByLayer(layer)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, types.ErrNoSuchLayer
		}

		total := big.NewInt(0)
		for _, id := range ids {
			q, err := tx.GetQuota(id)
			if err != nil {
				return nil, err
			}
			total.Add(total, q.Bytes)
		}
		return total, tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return v.(*big.Int), nil
}

// TileSets returns a snapshot of every tile set excluding the sentinel.
// Bypasses the Transaction Worker.
func (s *Store) TileSets(ctx context.Context) ([]types.TileSet, error) {
	return s.engine.ListTileSets(ctx)
}

// TileSetByID returns a single tile set, failing with
// types.ErrNoSuchTileSet if absent.
func (s *Store) TileSetByID(ctx context.Context, id string) (types.TileSet, error) {
	v, err := s.worker.SubmitAndWait(ctx, func(ctx context.Context) (any, error) {
		tx, err := s.engine.Begin(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Abort()
		ts, err := tx.GetTileSet(id)
		if err != nil {
			return nil, err
		}
		return ts, tx.Commit()
	})
	if err != nil {
		return types.TileSet{}, err
	}
	return v.(types.TileSet), nil
}

// TilesForPage maps a tile page to grid-coverage rectangles via the
// external tile-page calculator. Bypasses the Transaction Worker.
func (s *Store) TilesForPage(ctx context.Context, page types.TilePage) ([]types.GridCoverage, error) {
	ts, err := s.engine.GetTileSetRead(ctx, page.TileSetID)
	if err != nil {
		return nil, err
	}
	return s.calc.ToGridCoverage(ctx, ts, page)
}

// DeleteLayer cascade-deletes every tile set belonging to layer,
// asynchronously.
func (s *Store) DeleteLayer(ctx context.Context, layer string) *Future {
	return s.submitFuture(ctx, func(ctx context.Context) (any, error) {
		tx, err := s.engine.Begin(ctx)
		if err != nil {
			return nil, err
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Abort()
			}
		}()

		if err := s.cascadeDeleteLayer(tx, layer); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return nil, nil
	})
}

func (s *Store) nowMinutes() int64 {
	return s.now().UnixMilli() / 60000
}

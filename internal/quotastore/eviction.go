package quotastore

import (
	"context"

	"github.com/tilequota/diskquota/internal/pagestore"
	"github.com/tilequota/diskquota/internal/types"
)

// LeastRecentlyUsedPage returns the eviction candidate under the LRU
// policy, restricted to the given set of layer names, or nil if no page
// qualifies.
func (s *Store) LeastRecentlyUsedPage(ctx context.Context, layers map[string]struct{}) (*types.TilePage, error) {
	return s.evictionCandidate(ctx, types.PolicyLRU, layers)
}

// LeastFrequentlyUsedPage returns the eviction candidate under the LFU
// policy, restricted to the given set of layer names, or nil if no page
// qualifies.
func (s *Store) LeastFrequentlyUsedPage(ctx context.Context, layers map[string]struct{}) (*types.TilePage, error) {
	return s.evictionCandidate(ctx, types.PolicyLFU, layers)
}

func (s *Store) evictionCandidate(ctx context.Context, policy types.Policy, layers map[string]struct{}) (*types.TilePage, error) {
	v, err := s.worker.SubmitAndWait(ctx, func(ctx context.Context) (any, error) {
		tx, err := s.engine.Begin(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Abort()

		member, err := tileSetMembership(tx, layers)
		if err != nil {
			return nil, err
		}

		cursor, err := tx.ScanByPolicy(policy)
		if err != nil {
			return nil, err
		}

		var found *types.TilePage
		for cursor.Next() {
			page, stats, err := pagestore.ScanRow(cursor)
			if err != nil {
				_ = cursor.Close()
				return nil, err
			}
			if stats.FillFactor <= 0 {
				continue
			}
			if _, ok := member[page.TileSetID]; !ok {
				continue
			}
			found = &page
			break
		}
		cursorErr := cursor.Err()
		if err := cursor.Close(); err != nil {
			return nil, err
		}
		if cursorErr != nil {
			return nil, cursorErr
		}

		return found, tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.TilePage), nil
}

func tileSetMembership(tx *pagestore.Tx, layers map[string]struct{}) (map[string]struct{}, error) {
	member := make(map[string]struct{})
	for layer := range layers {
		ids, err := tx.ListTileSetIDsByLayer(layer)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			member[id] = struct{}{}
		}
	}
	return member, nil
}

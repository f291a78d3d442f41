package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of SiteStore and ActivityStore.
// Useful for testing and for hosts embedding the index without a database.
// It honors the same semantics as the SQL layer: insert-if-absent site
// mappings and forward-only conditional upserts.
type MemoryStore struct {
	mu sync.RWMutex

	siteKeys map[string]int32
	siteIDs  map[int32]string
	nextKey  int32

	userRows   map[userKey]time.Time
	tempIPRows map[tempKey]time.Time
}

type userKey struct {
	globalUserID int64
	siteKey      int32
}

type tempKey struct {
	ipHex   string
	siteKey int32
}

// NewMemoryStore creates an empty in-memory index store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		siteKeys:   make(map[string]int32),
		siteIDs:    make(map[int32]string),
		nextKey:    1,
		userRows:   make(map[userKey]time.Time),
		tempIPRows: make(map[tempKey]time.Time),
	}
}

func (s *MemoryStore) ResolveSiteKey(_ context.Context, siteID string) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.siteKeys[siteID]; ok {
		return key, nil
	}
	key := s.nextKey
	s.nextKey++
	s.siteKeys[siteID] = key
	s.siteIDs[key] = siteID
	return key, nil
}

func (s *MemoryStore) LookupSiteKey(_ context.Context, siteID string) (int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.siteKeys[siteID]
	if !ok {
		return 0, ErrSiteNotFound
	}
	return key, nil
}

func (s *MemoryStore) SiteID(_ context.Context, siteKey int32) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	siteID, ok := s.siteIDs[siteKey]
	if !ok {
		return "", ErrSiteNotFound
	}
	return siteID, nil
}

func (s *MemoryStore) UserLastSeen(_ context.Context, globalUserID int64, siteKey int32) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen, ok := s.userRows[userKey{globalUserID, siteKey}]
	return seen, ok, nil
}

func (s *MemoryStore) TempIPLastSeen(_ context.Context, ipHex string, siteKey int32) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen, ok := s.tempIPRows[tempKey{ipHex, siteKey}]
	return seen, ok, nil
}

func (s *MemoryStore) UpsertUserActivity(_ context.Context, row UserActivityRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey{row.GlobalUserID, row.SiteKey}
	if current, ok := s.userRows[key]; ok && !row.LastSeen.After(current) {
		return nil // forward-only, same as the SQL WHERE guard
	}
	s.userRows[key] = row.LastSeen
	return nil
}

func (s *MemoryStore) UpsertTempIPActivity(_ context.Context, row TempIPActivityRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tempKey{row.IPHex, row.SiteKey}
	if current, ok := s.tempIPRows[key]; ok && !row.LastSeen.After(current) {
		return nil
	}
	s.tempIPRows[key] = row.LastSeen
	return nil
}

func (s *MemoryStore) DeleteExpiredUserActivity(_ context.Context, cutoff time.Time, siteKey *int32, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, seen := range s.userRows {
		if deleted >= int64(limit) {
			break
		}
		if !seen.Before(cutoff) {
			continue
		}
		if siteKey != nil && key.siteKey != *siteKey {
			continue
		}
		delete(s.userRows, key)
		deleted++
	}
	return deleted, nil
}

func (s *MemoryStore) DeleteExpiredTempIPActivity(_ context.Context, cutoff time.Time, siteKey *int32, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, seen := range s.tempIPRows {
		if deleted >= int64(limit) {
			break
		}
		if !seen.Before(cutoff) {
			continue
		}
		if siteKey != nil && key.siteKey != *siteKey {
			continue
		}
		delete(s.tempIPRows, key)
		deleted++
	}
	return deleted, nil
}

func (s *MemoryStore) ActiveUsersAfterCursor(_ context.Context, cutoff time.Time, cursor int64, limit int) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{})
	for key, last := range s.userRows {
		if last.Before(cutoff) {
			continue
		}
		if key.globalUserID <= cursor {
			continue
		}
		seen[key.globalUserID] = struct{}{}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *MemoryStore) SiteKeysForUser(_ context.Context, globalUserID int64) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []int32
	for key := range s.userRows {
		if key.globalUserID == globalUserID {
			keys = append(keys, key.siteKey)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (s *MemoryStore) SiteKeysForIP(_ context.Context, ipHex string) ([]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []int32
	for key := range s.tempIPRows {
		if key.ipHex == ipHex {
			keys = append(keys, key.siteKey)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

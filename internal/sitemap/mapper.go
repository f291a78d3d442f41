// Package sitemap maps verbose site identifiers to the compact surrogate
// keys stored in activity rows. Mappings are created lazily on first use and
// are stable for the life of the deployment, so both directions are cached
// in process.
package sitemap

import (
	"context"
	"errors"
	"sync"

	"github.com/wikimesh/centralindex/internal/core/storage"
)

// Mapper is a read-through cache over the site mapping table.
type Mapper struct {
	store storage.SiteStore

	mu    sync.RWMutex
	byID  map[string]int32
	byKey map[int32]string
}

func NewMapper(store storage.SiteStore) *Mapper {
	return &Mapper{
		store: store,
		byID:  make(map[string]int32),
		byKey: make(map[int32]string),
	}
}

// Resolve returns the surrogate key for siteID, creating a mapping row on
// first use. Repeated calls for the same siteID always return the same key;
// the storage layer's insert-if-absent keeps concurrent first callers
// consistent.
func (m *Mapper) Resolve(ctx context.Context, siteID string) (int32, error) {
	m.mu.RLock()
	key, ok := m.byID[siteID]
	m.mu.RUnlock()
	if ok {
		return key, nil
	}

	key, err := m.store.ResolveSiteKey(ctx, siteID)
	if err != nil {
		return 0, err
	}

	m.cache(siteID, key)
	return key, nil
}

// Lookup returns the key for siteID without creating a mapping. The second
// return is false for an unknown siteID.
func (m *Mapper) Lookup(ctx context.Context, siteID string) (int32, bool, error) {
	m.mu.RLock()
	key, ok := m.byID[siteID]
	m.mu.RUnlock()
	if ok {
		return key, true, nil
	}

	key, err := m.store.LookupSiteKey(ctx, siteID)
	if errors.Is(err, storage.ErrSiteNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	m.cache(siteID, key)
	return key, true, nil
}

// SiteID translates a surrogate key back to its site identifier.
// Returns storage.ErrSiteNotFound for a key with no mapping row.
func (m *Mapper) SiteID(ctx context.Context, key int32) (string, error) {
	m.mu.RLock()
	siteID, ok := m.byKey[key]
	m.mu.RUnlock()
	if ok {
		return siteID, nil
	}

	siteID, err := m.store.SiteID(ctx, key)
	if err != nil {
		return "", err
	}

	m.cache(siteID, key)
	return siteID, nil
}

func (m *Mapper) cache(siteID string, key int32) {
	m.mu.Lock()
	m.byID[siteID] = key
	m.byKey[key] = siteID
	m.mu.Unlock()
}

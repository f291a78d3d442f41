package sitemap

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wikimesh/centralindex/internal/core/storage"
)

// fakeSiteStore implements storage.SiteStore with insert-if-absent semantics.
type fakeSiteStore struct {
	mu           sync.Mutex
	keys         map[string]int32
	next         int32
	resolveCalls int
}

func newFakeSiteStore() *fakeSiteStore {
	return &fakeSiteStore{keys: make(map[string]int32), next: 1}
}

func (f *fakeSiteStore) ResolveSiteKey(_ context.Context, siteID string) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	if key, ok := f.keys[siteID]; ok {
		return key, nil
	}
	key := f.next
	f.next++
	f.keys[siteID] = key
	return key, nil
}

func (f *fakeSiteStore) LookupSiteKey(_ context.Context, siteID string) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key, ok := f.keys[siteID]; ok {
		return key, nil
	}
	return 0, storage.ErrSiteNotFound
}

func (f *fakeSiteStore) SiteID(_ context.Context, siteKey int32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, key := range f.keys {
		if key == siteKey {
			return id, nil
		}
	}
	return "", storage.ErrSiteNotFound
}

func TestMapper_ResolveAssignsDistinctStableKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMapper(newFakeSiteStore())

	en, err := m.Resolve(ctx, "enwiki")
	require.NoError(t, err)
	de, err := m.Resolve(ctx, "dewiki")
	require.NoError(t, err)

	require.NotZero(t, en)
	require.NotZero(t, de)
	require.NotEqual(t, en, de)

	// Repeated resolution is stable.
	en2, err := m.Resolve(ctx, "enwiki")
	require.NoError(t, err)
	require.Equal(t, en, en2)
	de2, err := m.Resolve(ctx, "dewiki")
	require.NoError(t, err)
	require.Equal(t, de, de2)
}

func TestMapper_ResolveCachesStoreHits(t *testing.T) {
	ctx := context.Background()
	store := newFakeSiteStore()
	m := NewMapper(store)

	for i := 0; i < 10; i++ {
		_, err := m.Resolve(ctx, "enwiki")
		require.NoError(t, err)
	}
	require.Equal(t, 1, store.resolveCalls)
}

func TestMapper_ConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	m := NewMapper(newFakeSiteStore())

	const workers = 16
	keys := make([]int32, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key, err := m.Resolve(ctx, "enwiki")
			require.NoError(t, err)
			keys[i] = key
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.Equal(t, keys[0], keys[i])
	}
}

func TestMapper_LookupDoesNotCreate(t *testing.T) {
	ctx := context.Background()
	store := newFakeSiteStore()
	m := NewMapper(store)

	_, ok, err := m.Lookup(ctx, "nowiki")
	require.NoError(t, err)
	require.False(t, ok)

	// Still unknown: Lookup must not have minted a mapping.
	_, err = store.LookupSiteKey(ctx, "nowiki")
	require.ErrorIs(t, err, storage.ErrSiteNotFound)
}

func TestMapper_SiteIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMapper(newFakeSiteStore())

	key, err := m.Resolve(ctx, "frwiki")
	require.NoError(t, err)

	siteID, err := m.SiteID(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "frwiki", siteID)

	_, err = m.SiteID(ctx, key+100)
	require.ErrorIs(t, err, storage.ErrSiteNotFound)
}

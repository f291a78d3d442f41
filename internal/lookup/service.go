// Package lookup is the read side of the activity index: batched scans of
// recently active users and per-subject site fan-out.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wikimesh/centralindex/internal/core/iphex"
	"github.com/wikimesh/centralindex/internal/core/storage"
	"github.com/wikimesh/centralindex/internal/identity"
	"github.com/wikimesh/centralindex/internal/sitemap"
)

const defaultBatchSize = 500

// ErrNotTempAccount is returned when a registered account is passed to a
// temp-account-only lookup. A caller contract violation, not an empty result.
var ErrNotTempAccount = errors.New("performer is not a temporary account")

// Service answers read queries against the activity index.
type Service struct {
	store            storage.ActivityStore
	mapper           *sitemap.Mapper
	resolver         identity.Resolver
	defaultBatchSize int
}

func NewService(store storage.ActivityStore, mapper *sitemap.Mapper, resolver identity.Resolver, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Service{
		store:            store,
		mapper:           mapper,
		resolver:         resolver,
		defaultBatchSize: batchSize,
	}
}

// UsersActiveSince returns a lazy iterator over the distinct global user ids
// with activity at or after cutoff on any site, ascending. The iterator
// fetches batchSize rows per underlying scan (the service default when
// batchSize <= 0) and may be abandoned between batches. A fresh call
// re-scans from the start.
func (s *Service) UsersActiveSince(ctx context.Context, cutoff time.Time, batchSize int) *UserIterator {
	if batchSize <= 0 {
		batchSize = s.defaultBatchSize
	}
	return &UserIterator{
		ctx:       ctx,
		store:     s.store,
		cutoff:    cutoff,
		batchSize: batchSize,
	}
}

// ActiveSitesForUser returns the site identifiers the user has been active
// on, ascending lexicographic, deduplicated. A user with no activity rows
// yields an empty slice, not an error.
func (s *Service) ActiveSitesForUser(ctx context.Context, user identity.UserRef) ([]string, error) {
	globalID, err := s.resolver.GlobalID(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("resolve performer %q: %w", user.Name, err)
	}

	keys, err := s.store.SiteKeysForUser(ctx, globalID)
	if err != nil {
		return nil, err
	}
	return s.siteNames(ctx, keys)
}

// ActiveSitesForTempAccount returns the sites on which a temporary account's
// IP has qualifying activity. Passing a registered account is a contract
// violation and fails fast with ErrNotTempAccount.
func (s *Service) ActiveSitesForTempAccount(ctx context.Context, user identity.UserRef, ip string) ([]string, error) {
	if !user.IsTemp {
		return nil, fmt.Errorf("%w: %q", ErrNotTempAccount, user.Name)
	}

	ipHex, err := iphex.FromString(ip)
	if err != nil {
		return nil, fmt.Errorf("normalize lookup ip: %w", err)
	}

	keys, err := s.store.SiteKeysForIP(ctx, ipHex)
	if err != nil {
		return nil, err
	}
	return s.siteNames(ctx, keys)
}

// siteNames resolves site keys to identifiers via the mapper, deduplicating
// defensively even though the schema already guarantees distinct keys.
func (s *Service) siteNames(ctx context.Context, keys []int32) ([]string, error) {
	seen := make(map[int32]struct{}, len(keys))
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		name, err := s.mapper.SiteID(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("resolve site key %d: %w", key, err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

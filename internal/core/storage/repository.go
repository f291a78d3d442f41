package storage

import (
	"context"
	"errors"
	"time"
)

// ErrSiteNotFound is returned when a site key or site id has no mapping row.
var ErrSiteNotFound = errors.New("site mapping not found")

// UserActivityRow is one row of the per-user activity index, unique on
// (GlobalUserID, SiteKey).
type UserActivityRow struct {
	GlobalUserID int64
	SiteKey      int32
	LastSeen     time.Time
}

// TempIPActivityRow is one row of the temp-account IP activity index, unique
// on (IPHex, SiteKey). IPHex is the normalized fixed-width hex form.
type TempIPActivityRow struct {
	IPHex    string
	SiteKey  int32
	LastSeen time.Time
}

// SiteStore persists the siteId -> siteKey surrogate mapping.
type SiteStore interface {
	// ResolveSiteKey returns the key for siteID, creating the mapping row on
	// first use. Concurrent first use of the same siteID must yield one key.
	ResolveSiteKey(ctx context.Context, siteID string) (int32, error)

	// LookupSiteKey returns the key for siteID without creating a mapping.
	// Returns ErrSiteNotFound for an unknown siteID.
	LookupSiteKey(ctx context.Context, siteID string) (int32, error)

	// SiteID returns the site identifier for a key.
	// Returns ErrSiteNotFound for an unknown key.
	SiteID(ctx context.Context, siteKey int32) (string, error)
}

// ActivityStore persists and scans the two activity index tables.
// All writes are conditional upserts: a row's last_seen only ever moves
// forward, so concurrent writers cannot regress a newer timestamp.
type ActivityStore interface {
	UserLastSeen(ctx context.Context, globalUserID int64, siteKey int32) (time.Time, bool, error)
	TempIPLastSeen(ctx context.Context, ipHex string, siteKey int32) (time.Time, bool, error)

	UpsertUserActivity(ctx context.Context, row UserActivityRow) error
	UpsertTempIPActivity(ctx context.Context, row TempIPActivityRow) error

	// DeleteExpiredUserActivity removes up to limit rows with last_seen
	// strictly older than cutoff, optionally scoped to one site key.
	// Returns the number of rows deleted.
	DeleteExpiredUserActivity(ctx context.Context, cutoff time.Time, siteKey *int32, limit int) (int64, error)
	DeleteExpiredTempIPActivity(ctx context.Context, cutoff time.Time, siteKey *int32, limit int) (int64, error)

	// ActiveUsersAfterCursor returns distinct global user ids with activity at
	// or after cutoff on any site, ascending, starting strictly after cursor.
	// cursor=0 means "from the beginning".
	ActiveUsersAfterCursor(ctx context.Context, cutoff time.Time, cursor int64, limit int) ([]int64, error)

	// SiteKeysForUser returns the distinct site keys holding activity rows
	// for one global user id. Empty for an unknown user.
	SiteKeysForUser(ctx context.Context, globalUserID int64) ([]int32, error)

	// SiteKeysForIP is the temp-account variant, keyed by normalized IP hex.
	SiteKeysForIP(ctx context.Context, ipHex string) ([]int32, error)
}

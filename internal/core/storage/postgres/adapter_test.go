package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/wikimesh/centralindex/internal/core/storage"
)

func TestAdapter_ResolveSiteKey(t *testing.T) {
	tests := []struct {
		name       string
		mockResult func(mock sqlmock.Sqlmock)
		wantKey    int32
		wantErr    bool
	}{
		{
			name: "first use inserts mapping",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryResolveSiteKey)).
					WithArgs("enwiki").
					WillReturnRows(sqlmock.NewRows([]string{"site_key"}).AddRow(int32(1)))
			},
			wantKey: 1,
		},
		{
			name: "conflict falls back to select",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryResolveSiteKey)).
					WithArgs("enwiki").
					WillReturnRows(sqlmock.NewRows([]string{"site_key"}))
				mock.ExpectQuery(regexp.QuoteMeta(querySelectSiteKey)).
					WithArgs("enwiki").
					WillReturnRows(sqlmock.NewRows([]string{"site_key"}).AddRow(int32(7)))
			},
			wantKey: 7,
		},
		{
			name: "insert failure propagates",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryResolveSiteKey)).
					WithArgs("enwiki").
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			tc.mockResult(mock)

			key, err := adapter.ResolveSiteKey(context.Background(), "enwiki")
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tc.wantKey, key)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_LookupSiteKey_Unknown(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(querySelectSiteKey)).
		WithArgs("nowiki").
		WillReturnRows(sqlmock.NewRows([]string{"site_key"}))

	_, err := adapter.LookupSiteKey(context.Background(), "nowiki")
	require.ErrorIs(t, err, storage.ErrSiteNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_SiteID_Unknown(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(querySelectSiteID)).
		WithArgs(int32(99)).
		WillReturnRows(sqlmock.NewRows([]string{"site_id"}))

	_, err := adapter.SiteID(context.Background(), 99)
	require.ErrorIs(t, err, storage.ErrSiteNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_UserLastSeen(t *testing.T) {
	seen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("row present", func(t *testing.T) {
		adapter, mock, db := newMockAdapter(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(queryUserLastSeen)).
			WithArgs(int64(2), int32(1)).
			WillReturnRows(sqlmock.NewRows([]string{"last_seen"}).AddRow(seen))

		got, ok, err := adapter.UserLastSeen(context.Background(), 2, 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, seen, got)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no row", func(t *testing.T) {
		adapter, mock, db := newMockAdapter(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(queryUserLastSeen)).
			WithArgs(int64(2), int32(1)).
			WillReturnRows(sqlmock.NewRows([]string{"last_seen"}))

		_, ok, err := adapter.UserLastSeen(context.Background(), 2, 1)
		require.NoError(t, err)
		require.False(t, ok)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdapter_UpsertUserActivity(t *testing.T) {
	seen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(queryUpsertUserActivity)).
		WithArgs(int64(2), int32(1), seen).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.UpsertUserActivity(context.Background(), storage.UserActivityRow{
		GlobalUserID: 2,
		SiteKey:      1,
		LastSeen:     seen,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_UpsertTempIPActivity(t *testing.T) {
	seen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(queryUpsertTempIPActivity)).
		WithArgs("v4-C0A80001", int32(1), seen).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.UpsertTempIPActivity(context.Background(), storage.TempIPActivityRow{
		IPHex:    "v4-C0A80001",
		SiteKey:  1,
		LastSeen: seen,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_DeleteExpiredUserActivity(t *testing.T) {
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("unscoped", func(t *testing.T) {
		adapter, mock, db := newMockAdapter(t)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta(queryDeleteExpiredUserActivity)).
			WithArgs(cutoff, 100).
			WillReturnResult(sqlmock.NewResult(0, 42))

		n, err := adapter.DeleteExpiredUserActivity(context.Background(), cutoff, nil, 100)
		require.NoError(t, err)
		require.Equal(t, int64(42), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scoped to one site", func(t *testing.T) {
		adapter, mock, db := newMockAdapter(t)
		defer db.Close()

		siteKey := int32(3)
		mock.ExpectExec(regexp.QuoteMeta(queryDeleteExpiredUserActivityScoped)).
			WithArgs(cutoff, siteKey, 100).
			WillReturnResult(sqlmock.NewResult(0, 5))

		n, err := adapter.DeleteExpiredUserActivity(context.Background(), cutoff, &siteKey, 100)
		require.NoError(t, err)
		require.Equal(t, int64(5), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdapter_ActiveUsersAfterCursor(t *testing.T) {
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryActiveUsersAfterCursor)).
		WithArgs(cutoff, int64(0), 3).
		WillReturnRows(sqlmock.NewRows([]string{"global_user_id"}).
			AddRow(int64(2)).
			AddRow(int64(5)).
			AddRow(int64(9)))

	ids, err := adapter.ActiveUsersAfterCursor(context.Background(), cutoff, 0, 3)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 5, 9}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_SiteKeysForUser(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(querySiteKeysForUser)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"site_key"}).
			AddRow(int32(1)).
			AddRow(int32(4)))

	keys, err := adapter.SiteKeysForUser(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 4}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := &Adapter{
		db:                    db,
		stmtResolveSiteKey:    mustPrepareStmt(t, db, mock, queryResolveSiteKey),
		stmtSelectSiteKey:     mustPrepareStmt(t, db, mock, querySelectSiteKey),
		stmtSelectSiteID:      mustPrepareStmt(t, db, mock, querySelectSiteID),
		stmtUpsertUser:        mustPrepareStmt(t, db, mock, queryUpsertUserActivity),
		stmtUpsertTempIP:      mustPrepareStmt(t, db, mock, queryUpsertTempIPActivity),
		stmtUserLastSeen:      mustPrepareStmt(t, db, mock, queryUserLastSeen),
		stmtTempIPLastSeen:    mustPrepareStmt(t, db, mock, queryTempIPLastSeen),
		stmtActiveUsersCursor: mustPrepareStmt(t, db, mock, queryActiveUsersAfterCursor),
		stmtSiteKeysForUser:   mustPrepareStmt(t, db, mock, querySiteKeysForUser),
		stmtSiteKeysForIP:     mustPrepareStmt(t, db, mock, querySiteKeysForIP),
	}

	return adapter, mock, db
}

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

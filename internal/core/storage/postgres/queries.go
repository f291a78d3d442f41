package postgres

// SQL for the site mapping and activity index tables.

const (
	// queryResolveSiteKey inserts a mapping row if absent.
	// ON CONFLICT DO NOTHING returns no rows (sql.ErrNoRows) when the mapping
	// already exists; the caller falls back to querySelectSiteKey. The two
	// statements together give atomic insert-if-absent: concurrent first use
	// of one siteID can never mint two keys.
	queryResolveSiteKey = `
		INSERT INTO site_map (site_id)
		VALUES ($1)
		ON CONFLICT (site_id) DO NOTHING
		RETURNING site_key
	`

	querySelectSiteKey = `SELECT site_key FROM site_map WHERE site_id = $1`

	querySelectSiteID = `SELECT site_id FROM site_map WHERE site_key = $1`

	// queryUpsertUserActivity is a conditional upsert: the row's last_seen only
	// moves forward. The WHERE guard makes concurrent writers race-safe without
	// a separate read-modify-write cycle.
	queryUpsertUserActivity = `
		INSERT INTO user_activity (global_user_id, site_key, last_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (global_user_id, site_key)
		DO UPDATE SET last_seen = EXCLUDED.last_seen
		WHERE user_activity.last_seen < EXCLUDED.last_seen
	`

	queryUpsertTempIPActivity = `
		INSERT INTO temp_ip_activity (ip_hex, site_key, last_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (ip_hex, site_key)
		DO UPDATE SET last_seen = EXCLUDED.last_seen
		WHERE temp_ip_activity.last_seen < EXCLUDED.last_seen
	`

	queryUserLastSeen = `
		SELECT last_seen FROM user_activity
		WHERE global_user_id = $1 AND site_key = $2
	`

	queryTempIPLastSeen = `
		SELECT last_seen FROM temp_ip_activity
		WHERE ip_hex = $1 AND site_key = $2
	`

	// Purge deletes are bounded via a ctid subselect since Postgres DELETE has
	// no LIMIT clause. Each statement is its own transaction, so a bounded
	// batch never holds locks longer than one small delete.
	queryDeleteExpiredUserActivity = `
		DELETE FROM user_activity
		WHERE ctid IN (
			SELECT ctid FROM user_activity
			WHERE last_seen < $1
			LIMIT $2
		)
	`

	queryDeleteExpiredUserActivityScoped = `
		DELETE FROM user_activity
		WHERE ctid IN (
			SELECT ctid FROM user_activity
			WHERE last_seen < $1 AND site_key = $2
			LIMIT $3
		)
	`

	queryDeleteExpiredTempIPActivity = `
		DELETE FROM temp_ip_activity
		WHERE ctid IN (
			SELECT ctid FROM temp_ip_activity
			WHERE last_seen < $1
			LIMIT $2
		)
	`

	queryDeleteExpiredTempIPActivityScoped = `
		DELETE FROM temp_ip_activity
		WHERE ctid IN (
			SELECT ctid FROM temp_ip_activity
			WHERE last_seen < $1 AND site_key = $2
			LIMIT $3
		)
	`

	// queryActiveUsersAfterCursor pages distinct active user ids with keyset
	// pagination on global_user_id. DISTINCT collapses multi-site activity so
	// a user appears once per page regardless of how many sites they touched.
	queryActiveUsersAfterCursor = `
		SELECT DISTINCT global_user_id
		FROM user_activity
		WHERE last_seen >= $1 AND global_user_id > $2
		ORDER BY global_user_id ASC
		LIMIT $3
	`

	querySiteKeysForUser = `
		SELECT DISTINCT site_key
		FROM user_activity
		WHERE global_user_id = $1
		ORDER BY site_key ASC
	`

	querySiteKeysForIP = `
		SELECT DISTINCT site_key
		FROM temp_ip_activity
		WHERE ip_hex = $1
		ORDER BY site_key ASC
	`
)

package pgstore

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const lastSeenUIDKey = "mail_last_seen_uid"

// LastSeenUID returns the highest mailbox UID already processed by email
// ingestion, zero when ingestion has never run.
func (s *Store) LastSeenUID(ctx context.Context) (uint32, error) {
	var raw string
	err := s.db.QueryRow(ctx, `
SELECT value FROM ingest_cursor WHERE key = $1
`, lastSeenUIDKey).Scan(&raw)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "select ingest cursor")
	}

	uid, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "corrupt ingest cursor %q", raw)
	}
	return uint32(uid), nil
}

// SetLastSeenUID advances the mailbox cursor.
func (s *Store) SetLastSeenUID(ctx context.Context, uid uint32) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO ingest_cursor (key, value)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
`, lastSeenUIDKey, strconv.FormatUint(uint64(uid), 10))
	return errors.Wrap(err, "upsert ingest cursor")
}

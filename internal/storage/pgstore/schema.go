package pgstore

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS packages (
  id BIGSERIAL PRIMARY KEY,
  tracking_number TEXT NOT NULL,
  courier TEXT NOT NULL,
  service TEXT NOT NULL DEFAULT '',
  tracking_url TEXT NOT NULL DEFAULT '',
  source_email_uid BIGINT NOT NULL DEFAULT 0,
  source_email_subject TEXT NULL,
  source_email_from TEXT NULL,
  source_email_date TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  deleted_at TIMESTAMPTZ NULL,
  UNIQUE (tracking_number)
)`,
		`
CREATE TABLE IF NOT EXISTS package_status (
  id BIGSERIAL PRIMARY KEY,
  package_id BIGINT NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  estimated_arrival_date TEXT NOT NULL DEFAULT '',
  last_known_location TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  checked_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_package_status_package_id_id ON package_status(package_id, id DESC)`,
		// De-duplicates re-observed events: an observation carrying its own
		// timestamp appends at most once.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_package_status_dedup ON package_status(package_id, status, estimated_arrival_date, last_known_location, description, checked_at)`,
		`
CREATE TABLE IF NOT EXISTS ingest_cursor (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}

package pgstore

import (
	"context"
	"time"

	"packtrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// StatusInsert is one observation headed for the history ledger.
type StatusInsert struct {
	Status models.Status

	EstimatedArrivalDate *string
	LastKnownLocation    *string
	Description          *string

	// CheckedAt nil means "observed now".
	CheckedAt *time.Time
}

// InsertPackageStatus appends one observation to a package's history.
// Returns true when a row was actually inserted.
//
// Dedup policy: observations carrying their own CheckedAt are caught by the
// unique index (re-observing the same courier event appends nothing).
// Observations without one would get a fresh now() per poll cycle, so they
// are instead compared against the package's latest history row and skipped
// when nothing changed.
func (s *Store) InsertPackageStatus(ctx context.Context, packageID int64, in StatusInsert) (bool, error) {
	if !in.Status.Valid() {
		return false, errors.Errorf("invalid canonical status %q", string(in.Status))
	}

	eta := deref(in.EstimatedArrivalDate)
	loc := deref(in.LastKnownLocation)
	desc := deref(in.Description)

	if in.CheckedAt != nil {
		tag, err := s.db.Exec(ctx, `
INSERT INTO package_status (
  package_id, status, estimated_arrival_date, last_known_location, description, checked_at
)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (package_id, status, estimated_arrival_date, last_known_location, description, checked_at) DO NOTHING
`, packageID, string(in.Status), eta, loc, desc, in.CheckedAt.UTC())
		if err != nil {
			return false, errors.Wrap(err, "insert package status")
		}
		return tag.RowsAffected() > 0, nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lastStatus, lastETA, lastLoc, lastDesc string
	err = tx.QueryRow(ctx, `
SELECT status, estimated_arrival_date, last_known_location, description
FROM package_status
WHERE package_id = $1
ORDER BY id DESC LIMIT 1
`, packageID).Scan(&lastStatus, &lastETA, &lastLoc, &lastDesc)
	switch {
	case err == pgx.ErrNoRows:
		// First entry for this package.
	case err != nil:
		return false, errors.Wrap(err, "select latest status")
	default:
		if lastStatus == string(in.Status) && lastETA == eta && lastLoc == loc && lastDesc == desc {
			return false, nil
		}
	}

	_, err = tx.Exec(ctx, `
INSERT INTO package_status (
  package_id, status, estimated_arrival_date, last_known_location, description, checked_at
)
VALUES ($1,$2,$3,$4,$5, now())
`, packageID, string(in.Status), eta, loc, desc)
	if err != nil {
		return false, errors.Wrap(err, "insert package status")
	}

	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrap(err, "commit tx")
	}
	return true, nil
}

// GetPackageStatusHistory returns a package's full ledger, newest entry
// first.
func (s *Store) GetPackageStatusHistory(ctx context.Context, packageID int64) ([]*models.StatusHistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, package_id, status,
       NULLIF(estimated_arrival_date, ''),
       NULLIF(last_known_location, ''),
       NULLIF(description, ''),
       checked_at, created_at
FROM package_status
WHERE package_id = $1
ORDER BY id DESC
`, packageID)
	if err != nil {
		return nil, errors.Wrap(err, "select status history")
	}
	defer rows.Close()

	var out []*models.StatusHistoryEntry
	for rows.Next() {
		var e models.StatusHistoryEntry
		var statusRaw string
		if err := rows.Scan(
			&e.ID, &e.PackageID, &statusRaw,
			&e.EstimatedArrivalDate, &e.LastKnownLocation, &e.Description,
			&e.CheckedAt, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan status history")
		}
		status, err := models.ParseStatus(statusRaw)
		if err != nil {
			return nil, errors.Wrapf(err, "history entry %d", e.ID)
		}
		e.Status = status
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

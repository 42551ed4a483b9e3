package pgstore

import (
	"context"

	"packtrack/internal/models"
	"github.com/pkg/errors"
)

// InsertPackage creates a package for a newly confirmed tracking number.
// Returns true if a new row was inserted; an already-known tracking number
// is a no-op.
func (s *Store) InsertPackage(ctx context.Context, p *models.NewPackage) (bool, error) {
	tag, err := s.db.Exec(ctx, `
INSERT INTO packages (
  tracking_number, courier, service, tracking_url,
  source_email_uid, source_email_subject, source_email_from, source_email_date
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (tracking_number) DO NOTHING
`, p.TrackingNumber, p.Courier, p.Service, p.TrackingURL,
		int64(p.SourceEmailUID), p.SourceEmailSubject, p.SourceEmailFrom, p.SourceEmailDate)
	if err != nil {
		return false, errors.Wrap(err, "insert package")
	}
	return tag.RowsAffected() > 0, nil
}

// GetActivePackages returns every non-deleted package whose derived status
// (latest history entry by insertion order, waiting when there is none) is
// not delivered.
func (s *Store) GetActivePackages(ctx context.Context) ([]*models.Package, error) {
	rows, err := s.db.Query(ctx, `
WITH current_status AS (
  SELECT p.id, p.tracking_number, p.courier, p.service,
         COALESCE(
           (SELECT ps.status FROM package_status ps
            WHERE ps.package_id = p.id
            ORDER BY ps.id DESC LIMIT 1),
           'waiting'
         ) AS status
  FROM packages p
  WHERE p.deleted_at IS NULL
)
SELECT id, tracking_number, courier, service, status
FROM current_status
WHERE status <> $1
ORDER BY id
`, string(models.StatusDelivered))
	if err != nil {
		return nil, errors.Wrap(err, "select active packages")
	}
	defer rows.Close()

	var out []*models.Package
	for rows.Next() {
		var p models.Package
		var statusRaw string
		if err := rows.Scan(&p.ID, &p.TrackingNumber, &p.Courier, &p.Service, &statusRaw); err != nil {
			return nil, errors.Wrap(err, "scan active package")
		}
		status, err := models.ParseStatus(statusRaw)
		if err != nil {
			return nil, errors.Wrapf(err, "package %d", p.ID)
		}
		p.Status = status
		out = append(out, &p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListPackagesWithStatus is the read-side listing: every non-deleted
// package with its latest status details, newest package first.
func (s *Store) ListPackagesWithStatus(ctx context.Context) ([]*models.PackageWithStatus, error) {
	rows, err := s.db.Query(ctx, `
SELECT p.id, p.tracking_number, p.courier, p.service,
       COALESCE(ps.status, 'waiting') AS status,
       NULLIF(ps.last_known_location, '') AS last_known_location,
       p.tracking_url,
       p.source_email_from,
       p.created_at
FROM packages p
LEFT JOIN package_status ps ON ps.id = (
  SELECT ps2.id FROM package_status ps2
  WHERE ps2.package_id = p.id
  ORDER BY ps2.id DESC LIMIT 1
)
WHERE p.deleted_at IS NULL
ORDER BY p.created_at DESC
`)
	if err != nil {
		return nil, errors.Wrap(err, "select packages with status")
	}
	defer rows.Close()

	var out []*models.PackageWithStatus
	for rows.Next() {
		var p models.PackageWithStatus
		if err := rows.Scan(
			&p.ID, &p.TrackingNumber, &p.Courier, &p.Service,
			&p.Status, &p.LastKnownLocation, &p.TrackingURL,
			&p.SourceEmailFrom, &p.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan package with status")
		}
		out = append(out, &p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// DeletePackage soft-deletes: the package disappears from active and listing
// queries but its history stays.
func (s *Store) DeletePackage(ctx context.Context, packageID int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE packages SET deleted_at = now()
WHERE id = $1 AND deleted_at IS NULL
`, packageID)
	if err != nil {
		return false, errors.Wrap(err, "soft-delete package")
	}
	return tag.RowsAffected() > 0, nil
}

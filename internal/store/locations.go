package store

import (
	"context"

	"github.com/matheus3301/mailcore/internal/errs"
	"github.com/matheus3301/mailcore/internal/message"
)

// Location is a position report. Independent locations are points of
// interest bound to a single message rather than part of a stream.
type Location struct {
	ID          uint32
	Latitude    float64
	Longitude   float64
	Accuracy    float64
	Timestamp   int64
	ChatID      message.ChatID
	FromID      message.ContactID
	Independent bool
}

// InsertLocation stores a location and returns its id.
func (q *Queries) InsertLocation(ctx context.Context, l Location) (uint32, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO locations (latitude, longitude, accuracy, timestamp, chat_id, from_id, independent)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.Latitude, l.Longitude, l.Accuracy, l.Timestamp, l.ChatID, l.FromID, l.Independent)
	if err != nil {
		return 0, errs.Persistence("insert location", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Persistence("insert location id", err)
	}
	return uint32(id), nil
}

// DeleteIndependentLocation removes a point of interest. Streamed
// locations with the same id are left alone.
func (q *Queries) DeleteIndependentLocation(ctx context.Context, id uint32) (bool, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM locations WHERE independent = 1 AND id = ?`, id)
	if err != nil {
		return false, errs.Persistence("delete location", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// LocationExists reports whether a location row exists.
func (q *Queries) LocationExists(ctx context.Context, id uint32) (bool, error) {
	n, err := q.count(ctx, `SELECT COUNT(*) FROM locations WHERE id = ?`, id)
	return n > 0, err
}

// DeleteOrphanLocations removes independent locations no message refers to.
func (q *Queries) DeleteOrphanLocations(ctx context.Context) (int64, error) {
	res, err := q.q.ExecContext(ctx, `
		DELETE FROM locations
		WHERE independent = 1 AND id NOT IN (SELECT location_id FROM msgs WHERE location_id != 0)`)
	if err != nil {
		return 0, errs.Persistence("delete orphan locations", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

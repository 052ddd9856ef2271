package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/matheus3301/mailcore/internal/errs"
	"github.com/matheus3301/mailcore/internal/message"
)

// Evidence is one read receipt recorded for an outgoing message.
type Evidence struct {
	MsgID         message.MsgID
	ContactID     message.ContactID
	TimestampSent int64
}

// EvidenceExists reports whether contactID already confirmed msgID.
func (q *Queries) EvidenceExists(ctx context.Context, msgID message.MsgID, contactID message.ContactID) (bool, error) {
	var c message.ContactID
	err := q.q.QueryRowContext(ctx, `SELECT contact_id FROM msgs_mdns WHERE msg_id = ? AND contact_id = ?`,
		msgID, contactID).Scan(&c)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errs.Persistence("lookup read receipt", err)
	}
	return true, nil
}

// InsertEvidence records a read receipt. A second receipt from the same
// contact is ignored.
func (q *Queries) InsertEvidence(ctx context.Context, e Evidence) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO msgs_mdns (msg_id, contact_id, timestamp_sent) VALUES (?, ?, ?)
		ON CONFLICT(msg_id, contact_id) DO NOTHING`,
		e.MsgID, e.ContactID, e.TimestampSent)
	if err != nil {
		return errs.Persistence("insert read receipt", err)
	}
	return nil
}

// CountEvidence counts distinct contacts that confirmed msgID.
func (q *Queries) CountEvidence(ctx context.Context, msgID message.MsgID) (int, error) {
	return q.count(ctx, `SELECT COUNT(*) FROM msgs_mdns WHERE msg_id = ?`, msgID)
}

// ListEvidence returns the receipts of msgID ordered by send time.
func (q *Queries) ListEvidence(ctx context.Context, msgID message.MsgID) ([]Evidence, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT msg_id, contact_id, timestamp_sent FROM msgs_mdns
		WHERE msg_id = ? ORDER BY timestamp_sent, contact_id`, msgID)
	if err != nil {
		return nil, errs.Persistence("list read receipts", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Evidence
	for rows.Next() {
		var e Evidence
		if err := rows.Scan(&e.MsgID, &e.ContactID, &e.TimestampSent); err != nil {
			return nil, errs.Persistence("scan read receipt", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence("list read receipts", err)
	}
	return out, nil
}

// DeleteEvidenceForMessage removes all receipts of msgID.
func (q *Queries) DeleteEvidenceForMessage(ctx context.Context, msgID message.MsgID) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM msgs_mdns WHERE msg_id = ?`, msgID)
	if err != nil {
		return errs.Persistence("delete read receipts", err)
	}
	return nil
}

// DeleteOrphanEvidence removes receipts whose message row is gone.
func (q *Queries) DeleteOrphanEvidence(ctx context.Context) (int64, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM msgs_mdns WHERE msg_id NOT IN (SELECT id FROM msgs)`)
	if err != nil {
		return 0, errs.Persistence("delete orphan read receipts", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/matheus3301/mailcore/internal/errs"
	"github.com/matheus3301/mailcore/internal/message"
)

// CreateContact inserts a contact and returns its id.
func (q *Queries) CreateContact(ctx context.Context, c message.ContactInfo) (message.ContactID, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO contacts (name, authname, addr, last_seen, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.AuthName, c.Addr, c.LastSeen, time.Now().Unix())
	if err != nil {
		return 0, errs.Persistence("insert contact", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Persistence("insert contact id", err)
	}
	return message.ContactID(id), nil
}

// GetContact returns a contact by id, or nil if not found.
func (q *Queries) GetContact(ctx context.Context, id message.ContactID) (*message.ContactInfo, error) {
	var c message.ContactInfo
	err := q.q.QueryRowContext(ctx, `SELECT id, name, authname, addr, last_seen FROM contacts WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.AuthName, &c.Addr, &c.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("get contact", err)
	}
	return &c, nil
}

// ContactIDByAddr looks up a contact by address, 0 if unknown.
func (q *Queries) ContactIDByAddr(ctx context.Context, addr string) (message.ContactID, error) {
	var id message.ContactID
	err := q.q.QueryRowContext(ctx, `SELECT id FROM contacts WHERE addr = ? COLLATE NOCASE AND id > ? ORDER BY id LIMIT 1`,
		addr, message.ContactIDLastSpecial).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errs.Persistence("lookup contact by addr", err)
	}
	return id, nil
}

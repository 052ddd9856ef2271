package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/mailcore/internal/errs"
	"github.com/matheus3301/mailcore/internal/message"
)

const selectMessage = `
	SELECT m.id, m.rfc724_mid, m.mime_in_reply_to, m.server_folder, m.server_uid,
		m.chat_id, m.from_id, m.to_id, m.timestamp, m.timestamp_sent, m.timestamp_rcvd,
		m.type, m.state, m.msgrmsg, m.txt, m.param, m.starred, m.hidden, m.location_id,
		COALESCE(c.blocked, 0)
	FROM msgs m LEFT JOIN chats c ON c.id = m.chat_id`

// SaveMessage inserts a new message row and returns its id. Messages that
// already carry a real id are rejected; use the narrow updates for those.
func (q *Queries) SaveMessage(ctx context.Context, m *message.Message) (message.MsgID, error) {
	if !m.ID.IsUnset() {
		return 0, errs.InvalidIdentity("message %s is already saved", m.ID)
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO msgs (rfc724_mid, mime_in_reply_to, server_folder, server_uid, chat_id,
			from_id, to_id, timestamp, timestamp_sent, timestamp_rcvd, type, state, msgrmsg,
			txt, param, starred, hidden, location_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RFC724Mid, m.InReplyTo, m.ServerFolder, m.ServerUID, m.ChatID,
		m.FromID, m.ToID, m.TimestampSort, m.TimestampSent, m.TimestampRcvd,
		int(m.Viewtype), int(m.State), int(m.Messenger),
		m.Text, m.Params.String(), m.Starred, m.Hidden, m.LocationID)
	if err != nil {
		return 0, errs.Persistence("insert message", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Persistence("insert message id", err)
	}
	m.ID = message.MsgID(id)
	return m.ID, nil
}

// LoadMessage reads one message with the blocked flag of its chat.
func (q *Queries) LoadMessage(ctx context.Context, id message.MsgID) (*message.Message, error) {
	if id.IsSpecial() {
		return nil, errs.InvalidIdentity("cannot load special message id %s", id)
	}
	row := q.q.QueryRowContext(ctx, selectMessage+` WHERE m.id = ?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("message %s not found", id)
	}
	if err != nil {
		return nil, errs.Persistence(fmt.Sprintf("load message %s", id), err)
	}
	return m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*message.Message, error) {
	var (
		m                            message.Message
		viewtype, state, msgr, block int64
		param                        string
	)
	err := s.Scan(&m.ID, &m.RFC724Mid, &m.InReplyTo, &m.ServerFolder, &m.ServerUID,
		&m.ChatID, &m.FromID, &m.ToID, &m.TimestampSort, &m.TimestampSent, &m.TimestampRcvd,
		&viewtype, &state, &msgr, &m.Text, &param, &m.Starred, &m.Hidden, &m.LocationID,
		&block)
	if err != nil {
		return nil, err
	}
	m.Viewtype = message.ViewtypeFromDB(viewtype)
	m.State = message.StateFromDB(state)
	m.Messenger = message.MessengerFromDB(msgr)
	m.ChatBlocked = message.BlockedFromDB(block)
	m.Params = message.ParseParams(param)
	return &m, nil
}

// SeenState returns the state of a message and the blocking state of its
// chat. ok is false for missing messages and messages in special chats.
func (q *Queries) SeenState(ctx context.Context, id message.MsgID) (state message.State, blocked message.Blocked, ok bool, err error) {
	var st, bl int64
	err = q.q.QueryRowContext(ctx, `
		SELECT m.state, COALESCE(c.blocked, 0)
		FROM msgs m LEFT JOIN chats c ON c.id = m.chat_id
		WHERE m.id = ? AND m.chat_id > ?`, id, message.ChatIDLastSpecial).Scan(&st, &bl)
	if errors.Is(err, sql.ErrNoRows) {
		return message.Undefined, message.BlockedNot, false, nil
	}
	if err != nil {
		return message.Undefined, message.BlockedNot, false, errs.Persistence("read seen state", err)
	}
	return message.StateFromDB(st), message.BlockedFromDB(bl), true, nil
}

// UpdateMessageState writes the state column only. A missing row is
// errs.NotFound.
func (q *Queries) UpdateMessageState(ctx context.Context, id message.MsgID, state message.State) error {
	res, err := q.q.ExecContext(ctx, `UPDATE msgs SET state = ? WHERE id = ?`, int(state), id)
	if err != nil {
		return errs.Persistence("update message state", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Persistence("update message state", err)
	}
	if n == 0 {
		return errs.NotFound("message %d", uint32(id))
	}
	return nil
}

// SetStarred writes the starred flag.
func (q *Queries) SetStarred(ctx context.Context, id message.MsgID, starred bool) error {
	_, err := q.q.ExecContext(ctx, `UPDATE msgs SET starred = ? WHERE id = ?`, starred, id)
	if err != nil {
		return errs.Persistence("update starred", err)
	}
	return nil
}

// SaveParams writes the param column only.
func (q *Queries) SaveParams(ctx context.Context, id message.MsgID, p message.Params) error {
	_, err := q.q.ExecContext(ctx, `UPDATE msgs SET param = ? WHERE id = ?`, p.String(), id)
	if err != nil {
		return errs.Persistence("update params", err)
	}
	return nil
}

// UpdateStateAndParams writes state and params in one statement.
func (q *Queries) UpdateStateAndParams(ctx context.Context, id message.MsgID, state message.State, p message.Params) error {
	_, err := q.q.ExecContext(ctx, `UPDATE msgs SET state = ?, param = ? WHERE id = ?`, int(state), p.String(), id)
	if err != nil {
		return errs.Persistence("update state and params", err)
	}
	return nil
}

// UpdateServerUID records where the remote copy of every row with the given
// correlation string lives.
func (q *Queries) UpdateServerUID(ctx context.Context, mid, folder string, uid uint32) error {
	_, err := q.q.ExecContext(ctx, `UPDATE msgs SET server_folder = ?, server_uid = ? WHERE rfc724_mid = ?`, folder, uid, mid)
	if err != nil {
		return errs.Persistence("update server uid", err)
	}
	return nil
}

// SetMimeData stores the raw text and headers of a received message.
func (q *Queries) SetMimeData(ctx context.Context, id message.MsgID, rawText, headers string) error {
	_, err := q.q.ExecContext(ctx, `UPDATE msgs SET txt_raw = ?, mime_headers = ? WHERE id = ?`, rawText, headers, id)
	if err != nil {
		return errs.Persistence("update mime data", err)
	}
	return nil
}

// MessageExists reports whether id is a live (not trashed) message.
func (q *Queries) MessageExists(ctx context.Context, id message.MsgID) (bool, error) {
	if id.IsSpecial() {
		return false, nil
	}
	var chatID message.ChatID
	err := q.q.QueryRowContext(ctx, `SELECT chat_id FROM msgs WHERE id = ?`, id).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errs.Persistence("message exists", err)
	}
	return !chatID.IsTrash(), nil
}

// RawText returns the undecoded text of a message.
func (q *Queries) RawText(ctx context.Context, id message.MsgID) (string, error) {
	var s string
	err := q.q.QueryRowContext(ctx, `SELECT txt_raw FROM msgs WHERE id = ?`, id).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errs.Persistence("raw text", err)
	}
	return s, nil
}

// MimeHeaders returns the stored headers of a message, empty if none.
func (q *Queries) MimeHeaders(ctx context.Context, id message.MsgID) (string, error) {
	var s string
	err := q.q.QueryRowContext(ctx, `SELECT mime_headers FROM msgs WHERE id = ?`, id).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errs.Persistence("mime headers", err)
	}
	return s, nil
}

// RealMessageCount counts messages in unblocked, non-special chats.
func (q *Queries) RealMessageCount(ctx context.Context) (int, error) {
	return q.count(ctx, `
		SELECT COUNT(*) FROM msgs m LEFT JOIN chats c ON c.id = m.chat_id
		WHERE m.id > ? AND m.chat_id > ? AND c.blocked = 0`,
		message.MsgIDLastSpecial, message.ChatIDLastSpecial)
}

// DeaddropMessageCount counts messages waiting in contact requests.
func (q *Queries) DeaddropMessageCount(ctx context.Context) (int, error) {
	return q.count(ctx, `
		SELECT COUNT(*) FROM msgs m LEFT JOIN chats c ON c.id = m.chat_id
		WHERE c.blocked = ?`, int(message.BlockedDeaddrop))
}

// EstimateDeletionCount counts messages older than seconds that a cleanup
// would remove, either from the server or from the device. selfChatID is
// excluded.
func (q *Queries) EstimateDeletionCount(ctx context.Context, fromServer bool, seconds int64, selfChatID message.ChatID) (int, error) {
	threshold := time.Now().Unix() - seconds
	if fromServer {
		return q.count(ctx, `
			SELECT COUNT(*) FROM msgs
			WHERE id > ? AND timestamp < ? AND chat_id != ? AND server_uid != 0`,
			message.MsgIDLastSpecial, threshold, selfChatID)
	}
	return q.count(ctx, `
		SELECT COUNT(*) FROM msgs
		WHERE id > ? AND timestamp < ? AND chat_id != ? AND chat_id != ? AND hidden = 0`,
		message.MsgIDLastSpecial, threshold, message.ChatIDTrash, selfChatID)
}

// RFC724MidCount counts rows with the correlation string that still
// reference a remote artifact.
func (q *Queries) RFC724MidCount(ctx context.Context, mid string) (int, error) {
	return q.count(ctx, `SELECT COUNT(*) FROM msgs WHERE rfc724_mid = ? AND server_uid != 0`, mid)
}

// MidLocation is where a message with a given correlation string lives.
type MidLocation struct {
	Folder string
	UID    uint32
	ID     message.MsgID
}

// RFC724MidExists looks up the first row with the correlation string.
// Returns nil if there is none or mid is empty.
func (q *Queries) RFC724MidExists(ctx context.Context, mid string) (*MidLocation, error) {
	if mid == "" {
		return nil, nil
	}
	var loc MidLocation
	err := q.q.QueryRowContext(ctx, `SELECT server_folder, server_uid, id FROM msgs WHERE rfc724_mid = ? ORDER BY id LIMIT 1`, mid).
		Scan(&loc.Folder, &loc.UID, &loc.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("rfc724 mid exists", err)
	}
	return &loc, nil
}

// OutgoingRef is an outgoing message resolved by its correlation string.
type OutgoingRef struct {
	MsgID    message.MsgID
	ChatID   message.ChatID
	ChatType message.Chattype
	State    message.State
}

// OutgoingByMid finds the oldest message sent by self with the given
// correlation string. Returns nil if none.
func (q *Queries) OutgoingByMid(ctx context.Context, mid string) (*OutgoingRef, error) {
	var (
		ref             OutgoingRef
		chatID, chatTyp sql.NullInt64
		state           int64
	)
	err := q.q.QueryRowContext(ctx, `
		SELECT m.id, c.id, c.type, m.state
		FROM msgs m LEFT JOIN chats c ON m.chat_id = c.id
		WHERE m.rfc724_mid = ? AND m.from_id = ?
		ORDER BY m.id ASC LIMIT 1`, mid, message.ContactIDSelf).
		Scan(&ref.MsgID, &chatID, &chatTyp, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("lookup outgoing message", err)
	}
	ref.ChatID = message.ChatID(chatID.Int64)
	ref.ChatType = message.ChattypeFromDB(chatTyp.Int64)
	ref.State = message.StateFromDB(state)
	return &ref, nil
}

// TrashMessage moves a message to the trash chat and clears its text.
// The row stays so the remote copy can still be found.
func (q *Queries) TrashMessage(ctx context.Context, id message.MsgID) error {
	_, err := q.q.ExecContext(ctx, `UPDATE msgs SET chat_id = ?, txt = '', txt_raw = '' WHERE id = ?`,
		message.ChatIDTrash, id)
	if err != nil {
		return errs.Persistence("trash message", err)
	}
	return nil
}

// DeleteMessageRow removes the message row only. Use DB.DeleteMessage to
// also drop its receipts.
func (q *Queries) DeleteMessageRow(ctx context.Context, id message.MsgID) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM msgs WHERE id = ?`, id)
	if err != nil {
		return errs.Persistence("delete message", err)
	}
	return nil
}

// UnlinkMessage forgets the remote location of a message.
func (q *Queries) UnlinkMessage(ctx context.Context, id message.MsgID) error {
	_, err := q.q.ExecContext(ctx, `UPDATE msgs SET server_folder = '', server_uid = 0 WHERE id = ?`, id)
	if err != nil {
		return errs.Persistence("unlink message", err)
	}
	return nil
}

// DeleteMessage removes receipts and then the message in one transaction.
func (db *DB) DeleteMessage(ctx context.Context, id message.MsgID) error {
	return db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.DeleteEvidenceForMessage(ctx, id); err != nil {
			return err
		}
		return tx.DeleteMessageRow(ctx, id)
	})
}

// TrashedUnlinked returns trashed messages without a remote copy.
func (q *Queries) TrashedUnlinked(ctx context.Context) ([]message.MsgID, error) {
	return q.ids(ctx, `SELECT id FROM msgs WHERE chat_id = ? AND server_uid = 0 AND id > ? ORDER BY id`,
		message.ChatIDTrash, message.MsgIDLastSpecial)
}

// MessagesByMid lists rows sharing a correlation string, oldest first.
func (q *Queries) MessagesByMid(ctx context.Context, mid string) ([]message.MsgID, error) {
	return q.ids(ctx, `SELECT id FROM msgs WHERE rfc724_mid = ? ORDER BY id`, mid)
}

func (q *Queries) ids(ctx context.Context, query string, args ...any) ([]message.MsgID, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Persistence("list ids", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []message.MsgID
	for rows.Next() {
		var id message.MsgID
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Persistence("scan id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence("list ids", err)
	}
	return ids, nil
}

func (q *Queries) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := q.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errs.Persistence("count", err)
	}
	return n, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/matheus3301/mailcore/internal/errs"
	"github.com/matheus3301/mailcore/internal/message"
)

// CreateChat inserts a chat and returns its id.
func (q *Queries) CreateChat(ctx context.Context, c message.ChatInfo) (message.ChatID, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO chats (type, name, blocked, self_talk, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		int(c.Type), c.Name, int(c.Blocked), c.SelfTalk, time.Now().Unix())
	if err != nil {
		return 0, errs.Persistence("insert chat", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Persistence("insert chat id", err)
	}
	return message.ChatID(id), nil
}

// GetChat returns a chat by id, or nil if not found.
func (q *Queries) GetChat(ctx context.Context, id message.ChatID) (*message.ChatInfo, error) {
	var (
		c            message.ChatInfo
		typ, blocked int64
	)
	err := q.q.QueryRowContext(ctx, `SELECT id, type, name, blocked, self_talk FROM chats WHERE id = ?`, id).
		Scan(&c.ID, &typ, &c.Name, &blocked, &c.SelfTalk)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("get chat", err)
	}
	c.Type = message.ChattypeFromDB(typ)
	c.Blocked = message.BlockedFromDB(blocked)
	return &c, nil
}

// SetChatBlocked changes the blocking state of a chat.
func (q *Queries) SetChatBlocked(ctx context.Context, id message.ChatID, b message.Blocked) error {
	_, err := q.q.ExecContext(ctx, `UPDATE chats SET blocked = ? WHERE id = ?`, int(b), id)
	if err != nil {
		return errs.Persistence("update chat blocked", err)
	}
	return nil
}

// AddChatMember adds contactID to chatID. Adding an existing member is a no-op.
func (q *Queries) AddChatMember(ctx context.Context, chatID message.ChatID, contactID message.ContactID) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO chats_contacts (chat_id, contact_id) VALUES (?, ?)
		ON CONFLICT(chat_id, contact_id) DO NOTHING`, chatID, contactID)
	if err != nil {
		return errs.Persistence("add chat member", err)
	}
	return nil
}

// RemoveChatMember removes contactID from chatID.
func (q *Queries) RemoveChatMember(ctx context.Context, chatID message.ChatID, contactID message.ContactID) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM chats_contacts WHERE chat_id = ? AND contact_id = ?`, chatID, contactID)
	if err != nil {
		return errs.Persistence("remove chat member", err)
	}
	return nil
}

// ChatMemberCount counts the members of a chat. Self is a member row like
// any other contact, so a group of self plus two peers counts 3.
func (q *Queries) ChatMemberCount(ctx context.Context, chatID message.ChatID) (int, error) {
	return q.count(ctx, `SELECT COUNT(*) FROM chats_contacts WHERE chat_id = ?`, chatID)
}

// ChatIDByContact returns the single chat with contactID, 0 if none.
func (q *Queries) ChatIDByContact(ctx context.Context, contactID message.ContactID) (message.ChatID, error) {
	var id message.ChatID
	err := q.q.QueryRowContext(ctx, `
		SELECT c.id FROM chats c
		INNER JOIN chats_contacts cc ON c.id = cc.chat_id
		WHERE c.type = ? AND c.id > ? AND cc.contact_id = ?
		ORDER BY c.id LIMIT 1`,
		int(message.ChattypeSingle), message.ChatIDLastSpecial, contactID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errs.Persistence("lookup chat by contact", err)
	}
	return id, nil
}

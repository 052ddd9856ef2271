// Package mdn turns read receipts into the "read" state of outgoing
// messages.
package mdn

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/mailcore/internal/message"
	"github.com/matheus3301/mailcore/internal/metrics"
	"github.com/matheus3301/mailcore/internal/store"
)

// Engine records receipts and decides when a message counts as read.
//
// In one-to-one chats the first receipt is enough. In groups a message is
// read once (members+1)/2 distinct contacts confirmed it, members counting
// self. Receipts are stored even when the message can no longer change
// state so message info can list them.
type Engine struct {
	db      *store.DB
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewEngine creates an engine over db.
func NewEngine(db *store.DB, logger *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{db: db, logger: logger, metrics: m}
}

// Receipt is the outcome of FromExt that fired a transition.
type Receipt struct {
	ChatID message.ChatID
	MsgID  message.MsgID
}

// FromExt processes a receipt from fromID for the message with correlation
// string mid, sent by the peer at sentTS. It returns the chat and message
// only on the call that moved the message to OutMdnRcvd; every other call,
// including duplicates and receipts for unknown messages, returns false.
func (e *Engine) FromExt(ctx context.Context, fromID message.ContactID, mid string, sentTS int64) (message.ChatID, message.MsgID, bool) {
	if fromID.IsSpecial() || mid == "" {
		e.metrics.Receipt(metrics.ReceiptIgnored)
		return 0, 0, false
	}

	log := e.logger.With(zap.Uint32("from_id", uint32(fromID)), zap.String("mid", mid))

	var fired *Receipt
	err := e.db.WithTx(ctx, func(tx *store.Tx) error {
		fired = nil
		ref, err := tx.OutgoingByMid(ctx, mid)
		if err != nil {
			return err
		}
		if ref == nil {
			log.Debug("receipt for unknown message")
			e.metrics.Receipt(metrics.ReceiptUnresolved)
			return nil
		}
		log = log.With(zap.Stringer("msg_id", ref.MsgID), zap.Stringer("chat_id", ref.ChatID))

		e.record(ctx, tx, log, store.Evidence{MsgID: ref.MsgID, ContactID: fromID, TimestampSent: sentTS})

		if !ref.State.CanFail() {
			return nil
		}

		readByAll := true
		if ref.ChatType.IsGroup() {
			members, err := tx.ChatMemberCount(ctx, ref.ChatID)
			if err != nil {
				return err
			}
			confirmed, err := tx.CountEvidence(ctx, ref.MsgID)
			if err != nil {
				return err
			}
			required := (members + 1) / 2
			readByAll = confirmed >= required
			log.Debug("group receipt",
				zap.Int("members", members), zap.Int("confirmed", confirmed), zap.Int("required", required))
		}
		if !readByAll {
			return nil
		}

		// Keep the receipt even if the state write fails; a later receipt
		// re-evaluates the quorum.
		if err := tx.UpdateMessageState(ctx, ref.MsgID, message.OutMdnRcvd); err != nil {
			log.Error("failed to mark message read", zap.Error(err))
			return nil
		}
		fired = &Receipt{ChatID: ref.ChatID, MsgID: ref.MsgID}
		return nil
	})
	if err != nil {
		log.Warn("failed to process read receipt", zap.Error(err))
		return 0, 0, false
	}
	if fired == nil {
		return 0, 0, false
	}

	log.Info("message read by all recipients")
	e.metrics.Receipt(metrics.ReceiptReadByAll)
	e.metrics.Transition(message.OutMdnRcvd.String())
	return fired.ChatID, fired.MsgID, true
}

// record stores a receipt once per contact. Failures are logged and do not
// stop the quorum check.
func (e *Engine) record(ctx context.Context, tx *store.Tx, log *zap.Logger, ev store.Evidence) {
	exists, err := tx.EvidenceExists(ctx, ev.MsgID, ev.ContactID)
	if err != nil {
		log.Warn("failed to check read receipt", zap.Error(err))
	}
	if exists {
		e.metrics.Receipt(metrics.ReceiptDuplicate)
		return
	}
	if err := tx.InsertEvidence(ctx, ev); err != nil {
		log.Warn("failed to record read receipt", zap.Error(err))
		return
	}
	e.metrics.Receipt(metrics.ReceiptRecorded)
}

// ReadReceipts lists the receipts recorded for id.
func (e *Engine) ReadReceipts(ctx context.Context, id message.MsgID) ([]store.Evidence, error) {
	return e.db.ListEvidence(ctx, id)
}

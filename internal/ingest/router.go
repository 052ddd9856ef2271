// Package ingest routes transport signals to the message engines.
package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/mailcore/internal/bus"
	"github.com/matheus3301/mailcore/internal/mdn"
	"github.com/matheus3301/mailcore/internal/message"
	"github.com/matheus3301/mailcore/internal/status"
	"github.com/matheus3301/mailcore/internal/store"
)

// Signal kinds published by the mail transport.
const (
	KindReceipt   = "transport.mdn"
	KindSent      = "transport.sent"
	KindDelivered = "transport.delivered"
	KindFailed    = "transport.failed"
	KindUID       = "transport.uid"
)

// ReceiptSignal is a read receipt parsed from an incoming MDN.
type ReceiptSignal struct {
	From          message.ContactID
	RFC724Mid     string
	SentTimestamp int64
}

// SentSignal reports that a send attempt handed the message to the server.
type SentSignal struct {
	MsgID message.MsgID
}

// AckSignal reports that the server accepted an outgoing message.
type AckSignal struct {
	MsgID message.MsgID
}

// FailureSignal reports that sending a message failed for good.
type FailureSignal struct {
	MsgID message.MsgID
	Error string
}

// UIDSignal reports where a message was stored on the server.
type UIDSignal struct {
	RFC724Mid string
	Folder    string
	UID       uint32
}

// Router subscribes to "transport." events on the bus and applies them.
type Router struct {
	db     *store.DB
	bus    *bus.Bus
	mdn    *mdn.Engine
	status *status.Machine
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRouter creates a router.
func NewRouter(db *store.DB, b *bus.Bus, engine *mdn.Engine, machine *status.Machine, logger *zap.Logger) *Router {
	return &Router{
		db:     db,
		bus:    b,
		mdn:    engine,
		status: machine,
		logger: logger,
	}
}

// Start begins consuming transport signals.
func (r *Router) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	ch, unsub := r.bus.Subscribe("transport.", 256)

	go func() {
		defer close(r.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops consuming and waits for the current signal to finish.
func (r *Router) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

func (r *Router) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case KindReceipt:
		if s, ok := evt.Payload.(ReceiptSignal); ok {
			r.Receipt(ctx, s)
		}
	case KindSent:
		if s, ok := evt.Payload.(SentSignal); ok {
			r.status.Pending(ctx, s.MsgID)
		}
	case KindDelivered:
		if s, ok := evt.Payload.(AckSignal); ok {
			r.status.Delivered(ctx, s.MsgID)
		}
	case KindFailed:
		if s, ok := evt.Payload.(FailureSignal); ok {
			r.status.SetFailed(ctx, s.MsgID, s.Error)
		}
	case KindUID:
		if s, ok := evt.Payload.(UIDSignal); ok {
			if err := r.db.UpdateServerUID(ctx, s.RFC724Mid, s.Folder, s.UID); err != nil {
				r.logger.Warn("failed to update server uid", zap.String("mid", s.RFC724Mid), zap.Error(err))
			}
		}
	default:
		r.logger.Debug("ignoring transport signal", zap.String("kind", evt.Kind))
	}
}

// Receipt feeds a read receipt to the quorum engine and announces a
// message that became read.
func (r *Router) Receipt(ctx context.Context, s ReceiptSignal) bool {
	chatID, msgID, fired := r.mdn.FromExt(ctx, s.From, s.RFC724Mid, s.SentTimestamp)
	if !fired {
		return false
	}
	ref := bus.MsgRef{ChatID: chatID, MsgID: msgID}
	r.bus.Emit(bus.KindMsgRead, ref)
	r.bus.Emit(bus.KindMsgsChanged, ref)
	return true
}

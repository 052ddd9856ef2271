// Package status persists message lifecycle transitions and announces them.
package status

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/mailcore/internal/bus"
	"github.com/matheus3301/mailcore/internal/jobs"
	"github.com/matheus3301/mailcore/internal/message"
	"github.com/matheus3301/mailcore/internal/metrics"
	"github.com/matheus3301/mailcore/internal/store"
)

// Machine writes message states. Writes are unconditional overwrites; the
// only precondition enforced here is message.State.CanFail for failures.
// Notifications are published only after a write succeeded.
type Machine struct {
	db      *store.DB
	events  bus.Publisher
	jobs    jobs.Scheduler
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewMachine creates a machine.
func NewMachine(db *store.DB, events bus.Publisher, sched jobs.Scheduler, logger *zap.Logger, m *metrics.Metrics) *Machine {
	return &Machine{
		db:      db,
		events:  events,
		jobs:    sched,
		logger:  logger,
		metrics: m,
	}
}

// Update writes state for id and publishes a change scoped to the message.
func (m *Machine) Update(ctx context.Context, id message.MsgID, state message.State) bool {
	if !m.write(ctx, id, state) {
		return false
	}
	m.events.Publish(bus.NewEvent(bus.KindMsgsChanged, bus.MsgRef{MsgID: id}))
	return true
}

// write persists a state. A transition to InSeen also queues the
// remote mark-seen task; the consumer tolerates duplicates.
func (m *Machine) write(ctx context.Context, id message.MsgID, state message.State) bool {
	if err := m.db.UpdateMessageState(ctx, id, state); err != nil {
		m.logger.Error("failed to update message state",
			zap.Stringer("msg_id", id), zap.Stringer("state", state), zap.Error(err))
		return false
	}
	m.metrics.Transition(state.String())
	if state == message.InSeen {
		if err := m.jobs.Enqueue(ctx, jobs.MarkseenMsgOnImap, uint32(id), message.Params{}, 0); err != nil {
			m.logger.Error("failed to queue remote mark-seen", zap.Stringer("msg_id", id), zap.Error(err))
		}
	}
	return true
}

// MarkSeen handles the user viewing messages. In regular chats fresh and
// noticed messages become seen; in contact requests fresh messages only
// become noticed, so nothing is reported back to the sender. Messages in
// special chats are skipped. One aggregate change is published if anything
// changed. Returns false only for empty input.
func (m *Machine) MarkSeen(ctx context.Context, ids []message.MsgID) bool {
	if len(ids) == 0 {
		return false
	}

	changed := false
	for _, id := range ids {
		state, blocked, ok, err := m.db.SeenState(ctx, id)
		if err != nil {
			m.logger.Warn("failed to read message for mark-seen", zap.Stringer("msg_id", id), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		switch {
		case blocked == message.BlockedNot:
			if state == message.InFresh || state == message.InNoticed {
				if m.write(ctx, id, message.InSeen) {
					m.logger.Info("message seen", zap.Stringer("msg_id", id))
					changed = true
				}
			}
		case state == message.InFresh:
			if m.write(ctx, id, message.InNoticed) {
				changed = true
			}
		}
	}

	if changed {
		m.events.Publish(bus.NewEvent(bus.KindMsgsChanged, bus.MsgRef{}))
	}
	return true
}

// Star sets or clears the starred flag on every id in order and stops at
// the first failed write.
func (m *Machine) Star(ctx context.Context, ids []message.MsgID, star bool) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if err := m.db.SetStarred(ctx, id, star); err != nil {
			m.logger.Error("failed to star message", zap.Stringer("msg_id", id), zap.Error(err))
			return false
		}
	}
	m.events.Publish(bus.NewEvent(bus.KindMsgsChanged, bus.MsgRef{}))
	return true
}

// SetFailed moves a message to OutFailed and records errText. States that
// cannot fail are left untouched. MsgFailed is published only when the
// write succeeded.
func (m *Machine) SetFailed(ctx context.Context, id message.MsgID, errText string) bool {
	msg, err := m.db.LoadMessage(ctx, id)
	if err != nil {
		m.logger.Warn("failed to load message to mark failed", zap.Stringer("msg_id", id), zap.Error(err))
		return false
	}
	if !msg.State.CanFail() {
		m.logger.Debug("message cannot fail in its state",
			zap.Stringer("msg_id", id), zap.Stringer("state", msg.State))
		return false
	}

	params := msg.Params.Clone()
	if errText != "" {
		params.Set(message.ParamError, errText)
		m.logger.Warn("message failed", zap.Stringer("msg_id", id), zap.String("error", errText))
	}
	if err := m.db.UpdateStateAndParams(ctx, id, message.OutFailed, params); err != nil {
		m.logger.Error("failed to persist failure", zap.Stringer("msg_id", id), zap.Error(err))
		return false
	}
	m.metrics.Transition(message.OutFailed.String())
	m.events.Publish(bus.NewEvent(bus.KindMsgFailed, bus.MsgRef{ChatID: msg.ChatID, MsgID: id}))
	return true
}

// Delivered records a transport acknowledgement. Messages already
// delivered or read keep their state.
func (m *Machine) Delivered(ctx context.Context, id message.MsgID) bool {
	msg, err := m.db.LoadMessage(ctx, id)
	if err != nil {
		m.logger.Warn("failed to load delivered message", zap.Stringer("msg_id", id), zap.Error(err))
		return false
	}
	if msg.State >= message.OutDelivered || !msg.State.IsOutgoing() {
		return false
	}
	if !m.write(ctx, id, message.OutDelivered) {
		return false
	}
	m.events.Publish(bus.NewEvent(bus.KindMsgDelivered, bus.MsgRef{ChatID: msg.ChatID, MsgID: id}))
	return true
}

// Pending records a successful send attempt. Only outgoing messages not yet
// delivered move; a failed message that is resent becomes pending again.
func (m *Machine) Pending(ctx context.Context, id message.MsgID) bool {
	msg, err := m.db.LoadMessage(ctx, id)
	if err != nil {
		m.logger.Warn("failed to load sent message", zap.Stringer("msg_id", id), zap.Error(err))
		return false
	}
	if !msg.State.IsOutgoing() || msg.State >= message.OutDelivered || msg.State == message.OutPending {
		return false
	}
	if !m.write(ctx, id, message.OutPending) {
		return false
	}
	m.events.Publish(bus.NewEvent(bus.KindMsgsChanged, bus.MsgRef{ChatID: msg.ChatID, MsgID: id}))
	return true
}

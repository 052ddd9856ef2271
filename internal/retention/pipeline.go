// Package retention removes messages locally and on the server.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/mailcore/internal/bus"
	"github.com/matheus3301/mailcore/internal/errs"
	"github.com/matheus3301/mailcore/internal/jobs"
	"github.com/matheus3301/mailcore/internal/message"
	"github.com/matheus3301/mailcore/internal/metrics"
	"github.com/matheus3301/mailcore/internal/store"
)

// DefaultHousekeepingDelay is how long a sweep waits after a bulk delete.
const DefaultHousekeepingDelay = 10 * time.Second

// Flags for EmptyServer.
const (
	EmptyMvbox uint32 = 0x01
	EmptyInbox uint32 = 0x02
)

// Config tunes the pipeline.
type Config struct {
	HousekeepingDelay time.Duration
}

// Pipeline deletes messages in stages: a message is first moved to the
// trash chat, then removed from the server by a job, and finally purged
// from the database by a housekeeping sweep once no remote copy is left.
type Pipeline struct {
	db      *store.DB
	jobs    jobs.Scheduler
	events  bus.Publisher
	logger  *zap.Logger
	metrics *metrics.Metrics
	delay   time.Duration
}

// NewPipeline creates a pipeline.
func NewPipeline(db *store.DB, sched jobs.Scheduler, events bus.Publisher, logger *zap.Logger, m *metrics.Metrics, cfg Config) *Pipeline {
	delay := cfg.HousekeepingDelay
	if delay <= 0 {
		delay = DefaultHousekeepingDelay
	}
	return &Pipeline{
		db:      db,
		jobs:    sched,
		events:  events,
		logger:  logger,
		metrics: m,
		delay:   delay,
	}
}

// Trash moves id to the trash chat and clears its text. Trashing twice is
// harmless.
func (p *Pipeline) Trash(ctx context.Context, id message.MsgID) error {
	if id.IsSpecial() {
		return errs.InvalidIdentity("cannot trash %s", id)
	}
	return p.db.TrashMessage(ctx, id)
}

// DeleteFromDB removes the receipts of id and then the row.
func (p *Pipeline) DeleteFromDB(ctx context.Context, id message.MsgID) error {
	if id.IsSpecial() {
		return errs.InvalidIdentity("cannot delete %s", id)
	}
	return p.db.DeleteMessage(ctx, id)
}

// Unlink forgets where id lives on the server so no remote delete is
// attempted for it.
func (p *Pipeline) Unlink(ctx context.Context, id message.MsgID) error {
	if id.IsSpecial() {
		return errs.InvalidIdentity("cannot unlink %s", id)
	}
	return p.db.UnlinkMessage(ctx, id)
}

// DeleteMsgs trashes every id and queues its removal from the server.
// Sentinel ids are skipped. If anything was processed, one change is
// published and the pending housekeeping sweep is replaced by a single
// deferred one. Returns false when no id was processed.
func (p *Pipeline) DeleteMsgs(ctx context.Context, ids []message.MsgID) bool {
	processed := 0
	for _, id := range ids {
		log := p.logger.With(zap.Stringer("msg_id", id))
		if id.IsSpecial() {
			log.Warn("refusing to delete special message")
			continue
		}

		msg, err := p.db.LoadMessage(ctx, id)
		switch {
		case err != nil:
			log.Warn("failed to load message for deletion", zap.Error(err))
		case msg.HasLocation():
			if _, err := p.db.DeleteIndependentLocation(ctx, msg.LocationID); err != nil {
				log.Warn("failed to delete location", zap.Uint32("location_id", msg.LocationID), zap.Error(err))
			}
		}

		if err := p.db.TrashMessage(ctx, id); err != nil {
			log.Error("failed to trash message", zap.Error(err))
		}
		if err := p.jobs.Enqueue(ctx, jobs.DeleteMsgOnImap, uint32(id), message.Params{}, 0); err != nil {
			log.Error("failed to queue server deletion", zap.Error(err))
		}
		processed++
	}

	if processed == 0 {
		return false
	}
	p.metrics.Deletion("trash", processed)
	p.events.Publish(bus.NewEvent(bus.KindMsgsChanged, bus.MsgRef{}))
	p.scheduleHousekeeping(ctx)
	p.logger.Info("messages deleted", zap.Int("count", processed))
	return true
}

// scheduleHousekeeping coalesces sweeps: repeated bulk deletes leave one
// pending housekeeping job.
func (p *Pipeline) scheduleHousekeeping(ctx context.Context) {
	if err := p.jobs.KillAction(ctx, jobs.Housekeeping); err != nil {
		p.logger.Warn("failed to cancel pending housekeeping", zap.Error(err))
	}
	if err := p.jobs.Enqueue(ctx, jobs.Housekeeping, 0, message.Params{}, p.delay); err != nil {
		p.logger.Error("failed to queue housekeeping", zap.Error(err))
	}
}

// EmptyServer replaces any pending request to empty server folders with
// one for flags.
func (p *Pipeline) EmptyServer(ctx context.Context, flags uint32) error {
	if err := p.jobs.KillAction(ctx, jobs.EmptyServer); err != nil {
		return err
	}
	return p.jobs.Enqueue(ctx, jobs.EmptyServer, flags, message.Params{}, 0)
}

// Sweep reports what one housekeeping run removed.
type Sweep struct {
	Messages  int
	Receipts  int64
	Locations int64
}

// Housekeeping purges trashed messages without a server copy and
// reclaims receipts and locations nothing refers to anymore.
func (p *Pipeline) Housekeeping(ctx context.Context) (Sweep, error) {
	var s Sweep
	ids, err := p.db.TrashedUnlinked(ctx)
	if err != nil {
		return s, err
	}
	for _, id := range ids {
		if err := p.db.DeleteMessage(ctx, id); err != nil {
			p.logger.Warn("failed to purge message", zap.Stringer("msg_id", id), zap.Error(err))
			continue
		}
		s.Messages++
	}

	if s.Receipts, err = p.db.DeleteOrphanEvidence(ctx); err != nil {
		return s, err
	}
	if s.Locations, err = p.db.DeleteOrphanLocations(ctx); err != nil {
		return s, err
	}

	p.metrics.Deletion("purge", s.Messages)
	p.logger.Info("housekeeping done",
		zap.Int("messages", s.Messages),
		zap.Int64("receipts", s.Receipts),
		zap.Int64("locations", s.Locations))
	return s, nil
}

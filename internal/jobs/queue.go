// Package jobs persists deferred work and runs it in the background.
package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/mailcore/internal/message"
	"github.com/matheus3301/mailcore/internal/store"
)

// Action identifies what a job does.
type Action int

const (
	Housekeeping      Action = 105
	EmptyServer       Action = 107
	DeleteMsgOnImap   Action = 110
	MarkseenMsgOnImap Action = 130
)

var actionNames = map[Action]string{
	Housekeeping:      "housekeeping",
	EmptyServer:       "empty_server",
	DeleteMsgOnImap:   "delete_msg_on_imap",
	MarkseenMsgOnImap: "markseen_msg_on_imap",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("action_%d", int(a))
}

// Job is a unit of deferred work handed to a Handler.
type Job struct {
	ID        int64
	Action    Action
	ForeignID uint32
	Params    message.Params
	Tries     int
}

// Scheduler is the write side of the queue used by the engines.
type Scheduler interface {
	Enqueue(ctx context.Context, action Action, foreignID uint32, params message.Params, delay time.Duration) error
	KillAction(ctx context.Context, action Action) error
}

// Queue stores jobs in the account database.
type Queue struct {
	db     *store.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewQueue creates a queue over db.
func NewQueue(db *store.DB, logger *zap.Logger) *Queue {
	return &Queue{db: db, logger: logger, now: time.Now}
}

// Enqueue persists a job that becomes due after delay.
func (q *Queue) Enqueue(ctx context.Context, action Action, foreignID uint32, params message.Params, delay time.Duration) error {
	now := q.now()
	id, err := q.db.InsertJob(ctx, store.Job{
		Action:           int(action),
		ForeignID:        foreignID,
		Params:           params,
		AddedTimestamp:   now.Unix(),
		DesiredTimestamp: now.Add(delay).Unix(),
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", action, err)
	}
	q.logger.Debug("job queued",
		zap.Int64("job_id", id),
		zap.Stringer("action", action),
		zap.Uint32("foreign_id", foreignID),
		zap.Duration("delay", delay))
	return nil
}

// KillAction drops every pending job of action.
func (q *Queue) KillAction(ctx context.Context, action Action) error {
	n, err := q.db.DeleteJobsByAction(ctx, int(action))
	if err != nil {
		return fmt.Errorf("kill %s: %w", action, err)
	}
	if n > 0 {
		q.logger.Debug("jobs killed", zap.Stringer("action", action), zap.Int64("count", n))
	}
	return nil
}

// Pending lists queued jobs of action.
func (q *Queue) Pending(ctx context.Context, action Action) ([]Job, error) {
	rows, err := q.db.JobsByAction(ctx, int(action))
	if err != nil {
		return nil, err
	}
	out := make([]Job, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

func fromRow(r store.Job) Job {
	return Job{
		ID:        r.ID,
		Action:    Action(r.Action),
		ForeignID: r.ForeignID,
		Params:    r.Params,
		Tries:     r.Tries,
	}
}

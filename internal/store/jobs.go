package store

import (
	"context"
	"time"

	"github.com/matheus3301/mailcore/internal/errs"
	"github.com/matheus3301/mailcore/internal/message"
)

// Job is a persisted unit of deferred work.
type Job struct {
	ID               int64
	Action           int
	ForeignID        uint32
	Params           message.Params
	AddedTimestamp   int64
	DesiredTimestamp int64
	Tries            int
	LastError        string
}

// InsertJob queues a job to run no earlier than j.DesiredTimestamp.
func (q *Queries) InsertJob(ctx context.Context, j Job) (int64, error) {
	if j.AddedTimestamp == 0 {
		j.AddedTimestamp = time.Now().Unix()
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO jobs (added_timestamp, desired_timestamp, action, foreign_id, param)
		VALUES (?, ?, ?, ?, ?)`,
		j.AddedTimestamp, j.DesiredTimestamp, j.Action, j.ForeignID, j.Params.String())
	if err != nil {
		return 0, errs.Persistence("insert job", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Persistence("insert job id", err)
	}
	return id, nil
}

// DeleteJobsByAction drops every pending job of the given action.
func (q *Queries) DeleteJobsByAction(ctx context.Context, action int) (int64, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM jobs WHERE action = ?`, action)
	if err != nil {
		return 0, errs.Persistence("delete jobs", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteJob removes a finished or abandoned job.
func (q *Queries) DeleteJob(ctx context.Context, id int64) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return errs.Persistence("delete job", err)
	}
	return nil
}

// RescheduleJob records a failed attempt and moves the job to a later time.
func (q *Queries) RescheduleJob(ctx context.Context, id int64, desired int64, lastErr string) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE jobs SET tries = tries + 1, desired_timestamp = ?, last_error = ?
		WHERE id = ?`, desired, lastErr, id)
	if err != nil {
		return errs.Persistence("reschedule job", err)
	}
	return nil
}

// DueJobs returns jobs whose desired time is not after now, oldest first.
func (q *Queries) DueJobs(ctx context.Context, now int64, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	return q.listJobs(ctx, `
		SELECT id, action, foreign_id, param, added_timestamp, desired_timestamp, tries, last_error
		FROM jobs WHERE desired_timestamp <= ?
		ORDER BY desired_timestamp, id LIMIT ?`, now, limit)
}

// JobsByAction lists pending jobs of one action.
func (q *Queries) JobsByAction(ctx context.Context, action int) ([]Job, error) {
	return q.listJobs(ctx, `
		SELECT id, action, foreign_id, param, added_timestamp, desired_timestamp, tries, last_error
		FROM jobs WHERE action = ? ORDER BY id`, action)
}

func (q *Queries) listJobs(ctx context.Context, query string, args ...any) ([]Job, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Persistence("list jobs", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []Job
	for rows.Next() {
		var (
			j     Job
			param string
		)
		if err := rows.Scan(&j.ID, &j.Action, &j.ForeignID, &param, &j.AddedTimestamp,
			&j.DesiredTimestamp, &j.Tries, &j.LastError); err != nil {
			return nil, errs.Persistence("scan job", err)
		}
		j.Params = message.ParseParams(param)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence("list jobs", err)
	}
	return jobs, nil
}

package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/matheus3301/mailcore/internal/metrics"
	"github.com/matheus3301/mailcore/internal/store"
)

// Handler executes one job. A returned error reschedules the job until its
// tries are used up.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// RunnerConfig tunes polling and retries.
type RunnerConfig struct {
	PollInterval time.Duration
	MaxTries     int
	BatchSize    int
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxTries <= 0 {
		c.MaxTries = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

// Runner polls the queue for due jobs and dispatches them to handlers.
type Runner struct {
	db       *store.DB
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cfg      RunnerConfig
	now      func() time.Time
	mu       sync.RWMutex
	handlers map[Action]Handler
	sched    gocron.Scheduler
	cancel   context.CancelFunc
}

// NewRunner creates a runner over db.
func NewRunner(db *store.DB, logger *zap.Logger, m *metrics.Metrics, cfg RunnerConfig) *Runner {
	return &Runner{
		db:       db,
		logger:   logger,
		metrics:  m,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		handlers: make(map[Action]Handler),
	}
}

// Register binds a handler to an action, replacing any previous one.
func (r *Runner) Register(action Action, h Handler) {
	r.mu.Lock()
	r.handlers[action] = h
	r.mu.Unlock()
}

// Start begins polling for due jobs.
func (r *Runner) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(&gocronLogger{logger: r.logger.Named("gocron")}),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(r.cfg.PollInterval),
		gocron.NewTask(func() { r.RunDue(ctx) }),
		gocron.WithName("jobs.poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule poll: %w", err)
	}
	s.Start()
	r.sched = s
	r.logger.Info("job runner started", zap.Duration("interval", r.cfg.PollInterval))
	return nil
}

// Stop cancels running handlers and waits for the poller to exit.
func (r *Runner) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.sched == nil {
		return nil
	}
	if err := r.sched.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

// RunDue executes every job that is due now and returns how many ran.
func (r *Runner) RunDue(ctx context.Context) int {
	due, err := r.db.DueJobs(ctx, r.now().Unix(), r.cfg.BatchSize)
	if err != nil {
		r.logger.Error("failed to read jobs", zap.Error(err))
		return 0
	}

	ran := 0
	for _, row := range due {
		if ctx.Err() != nil {
			return ran
		}
		job := fromRow(row)
		log := r.logger.With(
			zap.Int64("job_id", job.ID),
			zap.Stringer("action", job.Action),
			zap.Uint32("foreign_id", job.ForeignID))

		r.mu.RLock()
		h, ok := r.handlers[job.Action]
		r.mu.RUnlock()
		if !ok {
			log.Warn("no handler for job, dropping")
			r.metrics.Job(job.Action.String(), "unhandled")
			r.delete(ctx, log, job.ID)
			continue
		}

		ran++
		if err := h.Handle(ctx, job); err != nil {
			r.retry(ctx, log, job, err)
			continue
		}
		r.metrics.Job(job.Action.String(), "ok")
		r.delete(ctx, log, job.ID)
	}
	return ran
}

func (r *Runner) retry(ctx context.Context, log *zap.Logger, job Job, herr error) {
	tries := job.Tries + 1
	if tries >= r.cfg.MaxTries {
		log.Error("job failed, giving up", zap.Int("tries", tries), zap.Error(herr))
		r.metrics.Job(job.Action.String(), "abandoned")
		r.delete(ctx, log, job.ID)
		return
	}
	delay := backoff(tries)
	log.Warn("job failed, retrying", zap.Int("tries", tries), zap.Duration("delay", delay), zap.Error(herr))
	r.metrics.Job(job.Action.String(), "retry")
	if err := r.db.RescheduleJob(ctx, job.ID, r.now().Add(delay).Unix(), herr.Error()); err != nil {
		log.Error("failed to reschedule job", zap.Error(err))
	}
}

func (r *Runner) delete(ctx context.Context, log *zap.Logger, id int64) {
	if err := r.db.DeleteJob(ctx, id); err != nil {
		log.Error("failed to delete job", zap.Error(err))
	}
}

// backoff grows quadratically from 3s and caps at 10 minutes.
func backoff(tries int) time.Duration {
	d := time.Duration(tries*tries) * 3 * time.Second
	if d > 10*time.Minute {
		d = 10 * time.Minute
	}
	return d
}

// gocronLogger routes scheduler logs into zap.
type gocronLogger struct {
	logger *zap.Logger
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.logger.Sugar().Debugw(msg, args...) }
func (l *gocronLogger) Info(msg string, args ...any)  { l.logger.Sugar().Infow(msg, args...) }
func (l *gocronLogger) Warn(msg string, args ...any)  { l.logger.Sugar().Warnw(msg, args...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.logger.Sugar().Errorw(msg, args...) }

// Package sweeper periodically republishes scheduled notifications whose queue message was lost.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/ilindan-dev/windowed-notifier/internal/config"
	"github.com/ilindan-dev/windowed-notifier/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	defaultSchedule = "@every 1m"
	defaultGrace    = 10 * time.Minute
	defaultBatch    = 100
	runTimeout      = time.Minute
)

// Requeuer republishes overdue notifications.
type Requeuer interface {
	RequeueOverdue(ctx context.Context, grace time.Duration, limit int) (int, error)
}

// Sweeper runs the overdue sweep on a cron schedule.
type Sweeper struct {
	cronEngine *cron.Cron
	requeuer   Requeuer
	logger     zerolog.Logger
	schedule   string
	grace      time.Duration
	batch      int
}

// New creates a Sweeper from the sweeper config section.
func New(cfg *config.Config, svc *service.NotificationService, logger *zerolog.Logger) *Sweeper {
	return newSweeper(cfg.Sweeper, svc, logger)
}

func newSweeper(cfg config.SweeperConfig, requeuer Requeuer, logger *zerolog.Logger) *Sweeper {
	s := &Sweeper{
		requeuer: requeuer,
		logger:   logger.With().Str("component", "sweeper").Logger(),
		schedule: cfg.Schedule,
		grace:    cfg.Grace,
		batch:    cfg.Batch,
	}
	if s.schedule == "" {
		s.schedule = defaultSchedule
	}
	if s.grace <= 0 {
		s.grace = defaultGrace
	}
	if s.batch <= 0 {
		s.batch = defaultBatch
	}

	cronLog := cronLogger{s.logger}
	s.cronEngine = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	return s
}

// Start registers the sweep job and starts the cron engine.
func (s *Sweeper) Start() error {
	if _, err := s.cronEngine.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("sweeper: invalid schedule %q: %w", s.schedule, err)
	}
	s.cronEngine.Start()
	s.logger.Info().Str("schedule", s.schedule).Dur("grace", s.grace).Msg("sweeper started")
	return nil
}

// Stop stops the cron engine and waits for a running sweep until ctx expires.
func (s *Sweeper) Stop(ctx context.Context) error {
	select {
	case <-s.cronEngine.Stop().Done():
		s.logger.Info().Msg("sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep runs one pass, draining overdue notifications batch by batch.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	total := 0
	for {
		n, err := s.requeuer.RequeueOverdue(ctx, s.grace, s.batch)
		total += n
		if err != nil {
			s.logger.Error().Err(err).Int("requeued", total).Msg("sweep failed")
			return
		}
		if n < s.batch {
			break
		}
	}
	s.logger.Debug().Int("requeued", total).Msg("sweep finished")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"collective-rides/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// InvitationExpirer moves overdue pending invitations to expired
type InvitationExpirer interface {
	ExpireOverdueInvitations(ctx context.Context) (int, error)
}

// CacheSizer reports the number of cached capability sets
type CacheSizer interface {
	Len() int
}

// Sweeper runs the invitation expiry sweep on a cron schedule for long-lived processes.
// Lambda deployments call RunOnce from a scheduled rule instead.
type Sweeper struct {
	expirer   InvitationExpirer
	cache     CacheSizer
	cron      *cron.Cron
	collector *observability.Collector
	metrics   *observability.Metrics
	timeout   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithCollector reports sweep results to Prometheus
func WithCollector(c *observability.Collector) Option {
	return func(s *Sweeper) { s.collector = c }
}

// WithMetrics reports sweep results to CloudWatch
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithCacheGauge publishes the capability cache size after each sweep
func WithCacheGauge(cache CacheSizer) Option {
	return func(s *Sweeper) { s.cache = cache }
}

// WithTimeout bounds a single sweep
func WithTimeout(d time.Duration) Option {
	return func(s *Sweeper) { s.timeout = d }
}

// NewSweeper creates a sweeper. Nothing runs until Start.
func NewSweeper(expirer InvitationExpirer, logger *zap.Logger, opts ...Option) *Sweeper {
	cronLogger := zapCronLogger{logger: logger}
	s := &Sweeper{
		expirer: expirer,
		timeout: 2 * time.Minute,
		logger:  logger,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the sweep. schedule accepts standard cron specs and descriptors such as "@every 15m".
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("sweeper already started")
	}

	if _, err := s.cron.AddFunc(schedule, func() { _, _ = s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid invitation sweep schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("Invitation expiry sweeper started", zap.String("schedule", schedule))
	return nil
}

// Stop stops scheduling and waits for a running sweep to finish or ctx to end
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Invitation expiry sweeper stopped")
	case <-ctx.Done():
		s.logger.Warn("Invitation expiry sweeper did not stop in time", zap.Error(ctx.Err()))
	}
}

// RunOnce performs a single sweep and records its outcome
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	expired, err := s.expirer.ExpireOverdueInvitations(ctx)
	duration := time.Since(start)

	s.mu.Lock()
	s.lastRun = start
	s.lastErr = err
	s.mu.Unlock()

	s.collector.ObserveSweep(expired, err)
	if s.cache != nil {
		s.collector.SetCacheEntries(s.cache.Len())
	}
	s.metrics.RecordOperation(ctx, "ExpireOverdueInvitations", duration, err)
	if expired > 0 {
		s.metrics.RecordBusinessMetric(ctx, "InvitationsExpired", float64(expired), types.StandardUnitCount, nil)
	}

	if err != nil {
		s.logger.Error("Invitation expiry sweep failed",
			zap.Int("expired", expired),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return expired, err
	}
	s.logger.Debug("Invitation expiry sweep finished",
		zap.Int("expired", expired),
		zap.Duration("duration", duration),
	)
	return expired, nil
}

// LastRun returns when the last sweep started and its error
func (s *Sweeper) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/assetcart/pkg/logger"
)

const defaultInterval = time.Minute

// Job is one housekeeping task run on every sweep.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// ServiceParams configure the sweeper.
type ServiceParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Interval time.Duration
}

// Service runs its jobs once at start and then on a fixed cadence.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	for _, job := range params.Jobs {
		if job == nil {
			return nil, fmt.Errorf("nil sweeper job")
		}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		jobs:     append([]Job(nil), params.Jobs...),
		interval: interval,
	}, nil
}

// Run sweeps until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.runCycle(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Debug(ctx, "sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle runs every job; one failing job does not skip the rest.
func (s *Service) runCycle(ctx context.Context) {
	for _, job := range s.jobs {
		jobCtx := s.logg.WithFields(ctx, map[string]any{
			"job":   job.Name(),
			"event": "sweeper.job",
		})
		s.logg.Debug(jobCtx, "job start")
		start := time.Now()
		err := job.Run(jobCtx)
		jobCtx = s.logg.WithField(jobCtx, "duration_ms", time.Since(start).Milliseconds())
		if err != nil {
			s.logg.Error(jobCtx, "job failed", err)
			continue
		}
		s.logg.Debug(jobCtx, "job completed")
	}
}

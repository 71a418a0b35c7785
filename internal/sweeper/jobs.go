package sweeper

import (
	"context"
	"fmt"
	"time"
)

// IdleEvictor drops in-memory state untouched for longer than idle.
type IdleEvictor interface {
	EvictIdle(ctx context.Context, idle time.Duration) int
}

type idleEvictionJob struct {
	name    string
	target  IdleEvictor
	idle    time.Duration
	evicted func(n int)
}

// NewIdleEvictionJob evicts from target whatever has sat idle past idle.
// onEvict, when set, receives the count evicted on each run.
func NewIdleEvictionJob(name string, target IdleEvictor, idle time.Duration, onEvict func(n int)) (Job, error) {
	if name == "" {
		return nil, fmt.Errorf("job name required")
	}
	if target == nil {
		return nil, fmt.Errorf("%s: evictor required", name)
	}
	if idle <= 0 {
		return nil, fmt.Errorf("%s: idle ttl must be positive", name)
	}
	return &idleEvictionJob{name: name, target: target, idle: idle, evicted: onEvict}, nil
}

func (j *idleEvictionJob) Name() string { return j.name }

func (j *idleEvictionJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := j.target.EvictIdle(ctx, j.idle)
	if j.evicted != nil {
		j.evicted(n)
	}
	return nil
}

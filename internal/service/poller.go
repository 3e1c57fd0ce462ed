package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollInterval   = 30 * time.Second
	defaultPollBatchLimit = 10
)

// Poller drives the delivery engine on a fixed cadence. Each tick processes
// at most one batch; a slow batch delays the next tick rather than stacking.
type Poller struct {
	engine   *DeliveryEngine
	logger   *zap.Logger
	interval time.Duration
	limit    int
}

func NewPoller(
	engine *DeliveryEngine,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*Poller, error) {
	if engine == nil {
		return nil, fmt.Errorf("delivery engine is required")
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if limit <= 0 {
		limit = defaultPollBatchLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Poller{
		engine:   engine,
		logger:   logger,
		interval: interval,
		limit:    limit,
	}, nil
}

func (p *Poller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial scan so already-due work does not wait for the first
	// ticker edge.
	if err := p.engine.ProcessDue(ctx, p.limit); err != nil && ctx.Err() == nil {
		p.logger.Error("initial due scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.engine.ProcessDue(ctx, p.limit); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Error("due scan failed", zap.Error(err))
			}
		}
	}
}

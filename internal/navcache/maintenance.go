package navcache

import (
	"context"
	"log/slog"
	"time"
)

// MaintenanceConfig configures the cache maintenance worker.
type MaintenanceConfig struct {
	Interval        time.Duration
	MemoryThreshold float64       // optimize above this used/limit ratio
	ActiveWindow    time.Duration // only users seen this recently; default 1h
}

// StartMaintenanceWorker periodically checks cache health for active users
// and optimizes degraded caches. The returned channel is closed when the
// worker exits after ctx is done.
func StartMaintenanceWorker(ctx context.Context, reg *Registry, cfg MaintenanceConfig) <-chan struct{} {
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = time.Hour
	}

	done := make(chan struct{})
	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("cache maintenance worker started", "interval", cfg.Interval, "memory_threshold", cfg.MemoryThreshold)

		for {
			select {
			case <-ticker.C:
				reg.Maintain(ctx, cfg)
			case <-ctx.Done():
				slog.Info("cache maintenance worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

// Maintain runs one maintenance sweep and returns how many caches were
// optimized.
func (r *Registry) Maintain(ctx context.Context, cfg MaintenanceConfig) int {
	controllers := r.Active(cfg.ActiveWindow)
	if len(controllers) == 0 {
		return 0
	}

	optimized := 0
	for _, c := range controllers {
		if ctx.Err() != nil {
			break
		}

		health := c.cacheHealth(ctx, false)
		if health == nil {
			continue
		}
		ratio := health.MemoryRatio()
		if !health.Degraded() && (cfg.MemoryThreshold <= 0 || ratio <= cfg.MemoryThreshold) {
			continue
		}

		r.logger.Info("cache maintenance optimizing",
			"user_id", c.UserID(),
			"status", health.Status,
			"memory_ratio", ratio,
		)
		if c.optimize(ctx, false) != nil {
			optimized++
		}
	}

	if optimized > 0 {
		r.logger.Info("cache maintenance completed", "checked", len(controllers), "optimized", optimized)
	}
	return optimized
}

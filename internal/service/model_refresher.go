package service

import (
	"context"
	"sync"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"go.uber.org/zap"
)

const defaultRefreshInterval = 5 * time.Minute

// ModelRefresher periodically re-tests external and MCP models so failed
// ones are demoted and recovered ones promoted without operator action.
type ModelRefresher struct {
	manager *ModelManager
	logger  *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewModelRefresher(manager *ModelManager, logger *zap.Logger) *ModelRefresher {
	return &ModelRefresher{
		manager:  manager,
		logger:   logger,
		interval: defaultRefreshInterval,
		stopCh:   make(chan struct{}),
	}
}

func (r *ModelRefresher) SetInterval(d time.Duration) {
	r.interval = d
}

func (r *ModelRefresher) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("model refresher started", zap.Duration("interval", r.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), r.interval)
				r.RunOnce(ctx)
				cancel()
			case <-r.stopCh:
				r.logger.Info("model refresher stopped")
				return
			}
		}
	}()
}

func (r *ModelRefresher) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// RunOnce refreshes every remote model and logs a summary.
func (r *ModelRefresher) RunOnce(ctx context.Context) []domain.RegistrationResult {
	results := r.manager.RefreshExternalModels(ctx)

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	if len(results) > 0 {
		r.logger.Info("external models refreshed",
			zap.Int("models", len(results)),
			zap.Int("failed", failed),
		)
	}
	return results
}

package demorequest

import (
	"context"
	"time"

	"demo-backend/internal/common/logger"
	"demo-backend/internal/common/metrics"
)

// Reconciler periodically sweeps requests stuck in processing. A row only
// stays processing past StaleAfter when a crash or a failed outcome update
// interrupted the workflow, so the sweep marks those rows failed and makes
// them terminal for their owners.
type Reconciler struct {
	store    Store
	config   *Config
	logger   logger.Logger
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewReconciler(store Store, cfg *Config, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	return &Reconciler{
		store:    store,
		config:   cfg,
		logger:   log,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the sweep loop. It runs one sweep immediately so restarts
// clean up promptly, then ticks at SweepInterval until Stop is called.
func (r *Reconciler) Start() {
	go func() {
		defer close(r.doneChan)

		r.logger.Info("reconciler started", map[string]interface{}{
			"staleAfter":    r.config.StaleAfter.String(),
			"sweepInterval": r.config.SweepInterval.String(),
		})

		r.sweep()

		ticker := time.NewTicker(r.config.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.stopChan:
				r.logger.Info("reconciler stopped", nil)
				return
			}
		}
	}()
}

// Stop signals the loop and waits for the in-flight sweep to finish.
func (r *Reconciler) Stop() {
	close(r.stopChan)
	<-r.doneChan
}

func (r *Reconciler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	swept, err := r.store.MarkStaleFailed(ctx, r.config.StaleAfter)
	if err != nil {
		r.logger.Error("stale request sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if swept > 0 {
		metrics.StaleRequestsSwept.Add(float64(swept))
		r.logger.Warn("marked stale processing requests as failed", map[string]interface{}{
			"count": swept,
		})
	}
}

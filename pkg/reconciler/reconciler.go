package reconciler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/milli-core/pkg/consistency"
	"github.com/cuemby/milli-core/pkg/indexcore"
	"github.com/cuemby/milli-core/pkg/log"
	"github.com/cuemby/milli-core/pkg/metrics"
)

// Reconciler periodically sweeps orphaned pipeline spill directories and
// re-verifies an Index's data-model invariants, so a long-lived embedder
// process catches corruption between explicit CheckConsistency calls.
type Reconciler struct {
	index  *indexcore.Index
	logger zerolog.Logger
	mu     sync.Mutex
	stopCh chan struct{}
}

// NewReconciler creates a new reconciler for index.
func NewReconciler(index *indexcore.Index) *Reconciler {
	return &Reconciler{
		index:  index,
		logger: log.WithComponent("reconciler"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the reconciliation loop.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciler.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	r.logger.Info().Msg("reconciler started")

	for {
		select {
		case <-ticker.C:
			if err := r.reconcile(); err != nil {
				r.logger.Error().Err(err).Msg("reconciliation cycle failed")
			}
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

// reconcile performs one reconciliation cycle: sweep orphaned spill
// directories, then verify the index's invariants still hold.
func (r *Reconciler) reconcile() error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ConsistencyCheckDuration)
		metrics.ConsistencyCyclesTotal.Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	swept, err := consistency.Sweep(0)
	if err != nil {
		r.logger.Error().Err(err).Msg("orphan sweep failed")
	} else if len(swept.Removed) > 0 {
		metrics.OrphanDirsSweptTotal.Add(float64(len(swept.Removed)))
		r.logger.Info().Int("removed", len(swept.Removed)).Msg("swept orphaned spill directories")
	}

	if err := r.index.CheckConsistency(); err != nil {
		metrics.ConsistencyViolationsTotal.Inc()
		r.logger.Error().Err(err).Msg("consistency check found a violation")
		return err
	}
	return nil
}

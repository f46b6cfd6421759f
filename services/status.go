package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"land-crawler/models"
	"land-crawler/storage"
	"land-crawler/utils"
)

const sinkTimeout = 5 * time.Second

// StatusReporter tracks run progress and publishes every change to its sinks.
// Once the run reaches a terminal phase further updates are ignored.
type StatusReporter struct {
	mu             sync.Mutex
	status         models.RunStatus
	completedItems int
	sinks          []storage.StatusSink
	logger         *utils.Logger
	now            func() time.Time
}

func NewStatusReporter(runID string, logger *utils.Logger, sinks ...storage.StatusSink) *StatusReporter {
	return &StatusReporter{
		status: models.RunStatus{RunID: runID},
		sinks:  sinks,
		logger: logger,
		now:    time.Now,
	}
}

func (r *StatusReporter) Start(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.status = models.RunStatus{
		RunID:        r.status.RunID,
		Phase:        models.PhaseRunning,
		TargetsTotal: total,
		Message:      fmt.Sprintf("starting %d targets", total),
		StartedAt:    now,
	}
	r.completedItems = 0
	r.publish()
}

func (r *StatusReporter) BeginTarget(t models.Target, message string) {
	r.update(func(s *models.RunStatus) {
		s.CurrentTarget = &t
		s.Message = fmt.Sprintf("%s: %s", t, message)
	})
}

// Progress records the running item count of the current target.
func (r *StatusReporter) Progress(items int) {
	r.update(func(s *models.RunStatus) {
		s.ItemsCollected = r.completedItems + items
	})
}

func (r *StatusReporter) TargetDone(t models.Target, items int, failed bool) {
	r.update(func(s *models.RunStatus) {
		r.completedItems += items
		s.TargetsProcessed++
		s.ItemsCollected = r.completedItems
		s.CurrentTarget = nil
		if failed {
			s.Message = fmt.Sprintf("%s: failed", t)
		} else {
			s.Message = fmt.Sprintf("%s: %d items", t, items)
		}
	})
}

func (r *StatusReporter) Complete(message string) {
	r.update(func(s *models.RunStatus) {
		s.Phase = models.PhaseCompleted
		s.CurrentTarget = nil
		s.Message = message
	})
}

func (r *StatusReporter) Fail(err error) {
	r.update(func(s *models.RunStatus) {
		s.Phase = models.PhaseError
		s.Message = err.Error()
	})
}

// Snapshot returns a copy of the current status.
func (r *StatusReporter) Snapshot() models.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.derived()
}

func (r *StatusReporter) update(fn func(s *models.RunStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Phase == "" || r.status.Phase.Terminal() {
		return
	}
	fn(&r.status)
	r.publish()
}

// derived fills in the time-based metrics. Callers hold mu.
func (r *StatusReporter) derived() models.RunStatus {
	s := r.status
	if s.CurrentTarget != nil {
		t := *s.CurrentTarget
		s.CurrentTarget = &t
	}
	if s.StartedAt.IsZero() {
		return s
	}

	s.UpdatedAt = r.now()
	elapsed := s.UpdatedAt.Sub(s.StartedAt).Seconds()
	s.ElapsedSeconds = elapsed
	if elapsed > 0 {
		s.ThroughputItemsPerSecond = float64(s.ItemsCollected) / elapsed
	}
	if s.TargetsProcessed > 0 {
		perTarget := elapsed / float64(s.TargetsProcessed)
		total := perTarget * float64(s.TargetsTotal)
		eta := perTarget * float64(s.TargetsTotal-s.TargetsProcessed)
		if eta < 0 {
			eta = 0
		}
		s.EstimatedTotalSeconds = &total
		s.ETASeconds = &eta
	}
	return s
}

// publish writes the status to every sink; sink failures are logged and never abort the run.
func (r *StatusReporter) publish() {
	s := r.derived()
	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := sink.WriteStatus(ctx, s); err != nil {
			r.logger.Warn("[status] publish failed: %v", err)
		}
		cancel()
	}
	r.logger.Debug("[status] %s %d/%d items=%d %s",
		s.Phase, s.TargetsProcessed, s.TargetsTotal, s.ItemsCollected, s.Message)
}

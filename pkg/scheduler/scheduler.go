// Package scheduler runs the periodic upstream hazard refresh: an
// independent ticker that fetches a HazardReading batch from the configured
// source and hands it to a delivery callback, tracking run statistics the
// control surface exposes. Deliveries are indistinguishable from
// tick-driven collection on the receiving side.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riverwatch/evacroute/pkg/hazard"
	"github.com/riverwatch/evacroute/pkg/hazardsource"
)

// DefaultInterval is the default refresh period.
const DefaultInterval = 300 * time.Second

// Deliver hands a fetched batch to its consumer (the flood collector wires
// this to an INFORM send).
type Deliver func(ctx context.Context, readings []hazard.HazardReading) error

// Stats are the scheduler's run statistics.
type Stats struct {
	TotalRuns           int64     `json:"total_runs"`
	SuccessfulRuns      int64     `json:"successful_runs"`
	FailedRuns          int64     `json:"failed_runs"`
	DataPointsCollected int64     `json:"data_points_collected"`
	LastRunTime         time.Time `json:"last_run_time"`
	LastError           string    `json:"last_error,omitempty"`
}

// Scheduler triggers the upstream refresh at a fixed interval. Manual
// triggering is supported alongside the ticker.
type Scheduler struct {
	source   hazardsource.Source
	deliver  Deliver
	interval time.Duration

	mutex   sync.RWMutex
	stats   Stats
	running bool
	stopCh  chan struct{}
}

// Config contains scheduler configuration
type Config struct {
	Source   hazardsource.Source
	Deliver  Deliver
	Interval time.Duration
}

// New creates a new refresh scheduler
func New(config Config) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}

	return &Scheduler{
		source:   config.Source,
		deliver:  config.Deliver,
		interval: config.Interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic refresh loop
func (s *Scheduler) Start(ctx context.Context) {
	s.mutex.Lock()
	if s.running {
		s.mutex.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mutex.Unlock()

	go s.refreshLoop(ctx)
}

// Stop stops the periodic refresh loop
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return
	}

	close(s.stopCh)
	s.running = false
}

// refreshLoop is the main refresh loop
func (s *Scheduler) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run an initial refresh so the caches are warm before the first tick.
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce performs a single fetch-and-deliver cycle, recording its outcome.
func (s *Scheduler) runOnce(ctx context.Context) {
	readings, err := s.fetch(ctx)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.stats.TotalRuns++
	s.stats.LastRunTime = time.Now()

	if err != nil {
		s.stats.FailedRuns++
		s.stats.LastError = err.Error()
		return
	}

	s.stats.SuccessfulRuns++
	s.stats.DataPointsCollected += int64(len(readings))
	s.stats.LastError = ""
}

func (s *Scheduler) fetch(ctx context.Context) ([]hazard.HazardReading, error) {
	if s.source == nil {
		return nil, fmt.Errorf("scheduler: no upstream source configured")
	}

	batch, err := s.source.FetchReadings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	readings := make([]hazard.HazardReading, 0, len(batch))
	for _, r := range batch {
		readings = append(readings, r)
	}

	if s.deliver != nil {
		if err := s.deliver(ctx, readings); err != nil {
			return nil, fmt.Errorf("delivery failed: %w", err)
		}
	}

	return readings, nil
}

// TriggerNow performs an immediate refresh outside the ticker cadence and
// returns the resulting stats snapshot.
func (s *Scheduler) TriggerNow(ctx context.Context) Stats {
	s.runOnce(ctx)
	return s.GetStats()
}

// GetStats returns a snapshot of the run statistics
func (s *Scheduler) GetStats() Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.stats
}

// IsRunning returns true if the refresh loop is active
func (s *Scheduler) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// Interval returns the configured refresh period
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// GetSummary returns a human-readable summary of scheduler state
func (s *Scheduler) GetSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return fmt.Sprintf("Refresh Scheduler Summary:\n"+
		"  Interval: %v\n"+
		"  Running: %v\n"+
		"  Total Runs: %d (%d ok, %d failed)\n"+
		"  Data Points: %d\n",
		s.interval,
		s.running,
		s.stats.TotalRuns,
		s.stats.SuccessfulRuns,
		s.stats.FailedRuns,
		s.stats.DataPointsCollected)
}

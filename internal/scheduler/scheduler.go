package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/amdjml/WMATAPI/internal/broadcast"
	"github.com/amdjml/WMATAPI/internal/feed"
	"github.com/amdjml/WMATAPI/internal/metrics"
	"github.com/amdjml/WMATAPI/internal/realtime"
	"github.com/amdjml/WMATAPI/internal/snapshot"
)

// State is the scheduler's position in its refresh cycle
type State int32

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// Series names recorded in the scheduler's metrics
const (
	SeriesCycleMillis = "cycle_ms"
	SeriesStations    = "stations"
	SeriesVehicles    = "vehicles"
	SeriesSkipped     = "skipped"
	SeriesSubscribers = "subscribers"
)

type Fetcher interface {
	Fetch(ctx context.Context, src feed.Source) ([]byte, error)
}

type Publisher interface {
	Publish(s *snapshot.Snapshot) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, s *snapshot.Snapshot) (broadcast.Result, error)
}

// Options configures a Scheduler
type Options struct {
	TripUpdates      feed.Source
	VehiclePositions feed.Source
	Interval         time.Duration
	Limits           realtime.Limits

	// Now defaults to time.Now
	Now func() time.Time
}

// Status is a point-in-time view of the scheduler for diagnostics
type Status struct {
	State       string                     `json:"state"`
	Cycles      int64                      `json:"cycles"`
	Failures    int64                      `json:"failures"`
	LastSuccess *time.Time                 `json:"last_success"`
	LastError   string                     `json:"last_error,omitempty"`
	Stats       map[string]metrics.Summary `json:"stats"`
}

// Scheduler periodically fetches both feeds, builds a snapshot, publishes
// it and broadcasts it. A failed cycle publishes nothing, so the previous
// snapshot stays current.
type Scheduler struct {
	fetcher     Fetcher
	publisher   Publisher
	broadcaster Broadcaster
	opts        Options
	recorder    *metrics.Recorder

	state    atomic.Int32
	cycles   atomic.Int64
	failures atomic.Int64

	// cycleMu keeps cycles from overlapping when RefreshOnce is called
	// alongside Run
	cycleMu sync.Mutex

	mu          sync.Mutex
	lastSuccess time.Time
	lastErr     error
}

// New creates a scheduler
func New(fetcher Fetcher, publisher Publisher, broadcaster Broadcaster, opts Options) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		fetcher:     fetcher,
		publisher:   publisher,
		broadcaster: broadcaster,
		opts:        opts,
		recorder:    metrics.NewRecorder(),
	}
}

// Run refreshes immediately and then on every interval until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", s.opts.Interval).
		Int("max_trains", s.opts.Limits.MaxTrains).
		Float64("max_minutes", s.opts.Limits.MaxMinutes).
		Msg("Refresh loop starting")

	_ = s.RefreshOnce(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = s.RefreshOnce(ctx)
		case <-ctx.Done():
			log.Info().Msg("Refresh loop stopped")
			return nil
		}
	}
}

// RefreshOnce runs one full cycle and returns its error, if any. The error
// has already been logged.
func (s *Scheduler) RefreshOnce(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.state.Store(int32(Refreshing))
	defer s.state.Store(int32(Idle))

	start := s.opts.Now()
	s.cycles.Add(1)

	snap, report, err := s.build(ctx, start)
	if err != nil {
		s.fail(err)
		return err
	}

	if err := s.publisher.Publish(snap); err != nil {
		err = fmt.Errorf("publish snapshot: %w", err)
		s.fail(err)
		return err
	}

	// The snapshot is public now; the broadcast runs to completion even if
	// ctx is cancelled.
	res, err := s.broadcaster.Broadcast(context.WithoutCancel(ctx), snap)
	if err != nil {
		log.Warn().Err(err).Msg("Broadcast failed")
	}

	elapsed := s.opts.Now().Sub(start)
	s.recorder.Observe(SeriesCycleMillis, float64(elapsed.Milliseconds()))
	s.recorder.Observe(SeriesStations, float64(len(snap.Stations)))
	s.recorder.Observe(SeriesVehicles, float64(len(snap.Vehicles)))
	s.recorder.Observe(SeriesSkipped, float64(report.TotalSkipped()))
	s.recorder.Observe(SeriesSubscribers, float64(res.Delivered))

	s.mu.Lock()
	s.lastSuccess = snap.GeneratedAt
	s.lastErr = nil
	s.mu.Unlock()

	log.Info().
		Int("stations", len(snap.Stations)).
		Int("trains", snap.TrainCount()).
		Int("vehicles", len(snap.Vehicles)).
		Int("skipped", report.TotalSkipped()).
		Int("delivered", res.Delivered).
		Int("pruned", res.Pruned).
		Dur("elapsed", elapsed).
		Msg("Cache updated")

	return nil
}

// build fetches and decodes both feeds. Nothing is published here.
func (s *Scheduler) build(ctx context.Context, now time.Time) (*snapshot.Snapshot, realtime.Report, error) {
	tripRaw, err := s.fetcher.Fetch(ctx, s.opts.TripUpdates)
	if err != nil {
		return nil, realtime.Report{}, fmt.Errorf("fetch trip updates: %w", err)
	}

	vehicleRaw, err := s.fetcher.Fetch(ctx, s.opts.VehiclePositions)
	if err != nil {
		return nil, realtime.Report{}, fmt.Errorf("fetch vehicle positions: %w", err)
	}

	stations, tripReport, err := realtime.ProcessTripUpdates(tripRaw, now, s.opts.Limits)
	if err != nil {
		return nil, tripReport, err
	}

	vehicles, vehicleReport, err := realtime.ProcessVehiclePositions(vehicleRaw)
	if err != nil {
		return nil, tripReport, err
	}

	if tripReport.TotalSkipped() > 0 || vehicleReport.TotalSkipped() > 0 {
		log.Debug().
			Interface("trip_updates", tripReport.Skipped).
			Interface("vehicle_positions", vehicleReport.Skipped).
			Msg("Skipped feed entries")
	}

	report := realtime.Report{
		Entities: tripReport.Entities + vehicleReport.Entities,
		Records:  tripReport.Records + vehicleReport.Records,
		Skipped:  make(map[realtime.SkipReason]int),
	}
	for reason, n := range tripReport.Skipped {
		report.Skipped[reason] += n
	}
	for reason, n := range vehicleReport.Skipped {
		report.Skipped[reason] += n
	}

	return snapshot.New(stations, vehicles, now), report, nil
}

func (s *Scheduler) fail(err error) {
	s.failures.Add(1)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	log.Error().Err(err).Msg("Refresh failed, keeping previous snapshot")
}

// State returns the current state
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Interval returns the configured refresh interval
func (s *Scheduler) Interval() time.Duration {
	return s.opts.Interval
}

// Status returns counters, the last outcome and running statistics
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:    s.State().String(),
		Cycles:   s.cycles.Load(),
		Failures: s.failures.Load(),
		Stats:    s.recorder.Snapshot(),
	}
	if !s.lastSuccess.IsZero() {
		t := s.lastSuccess
		st.LastSuccess = &t
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

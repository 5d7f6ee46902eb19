// Package poll drives the periodic correlation/selection/estimation passes
// for the itinerary a rider is currently viewing. A Session owns one
// itinerary's polling lifecycle; its only operations are Start and Cancel.
package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mtlrider/stm-live/correlate"
	"github.com/mtlrider/stm-live/directions"
	"github.com/mtlrider/stm-live/geo"
	"github.com/mtlrider/stm-live/stm"
)

// scheduledFallbackLimit caps the schedule-based arrivals carried when no
// live vehicle is selected.
const scheduledFallbackLimit = 3

// AuthorityAPI is the slice of the transit authority client a pass needs.
type AuthorityAPI interface {
	FindStopsNear(ctx context.Context, coord geo.Coord) ([]stm.AuthorityStop, error)
	UpcomingBuses(ctx context.Context, stopID int, lines []string, limit int) ([]stm.UpcomingBus, error)
	VehiclePositions(ctx context.Context, lines []string) ([]stm.LiveVehicle, error)
}

// ETAEstimator is the traffic-aware point-to-point estimate a pass rides on.
type ETAEstimator interface {
	EstimateETA(ctx context.Context, from, to geo.Coord) *int
}

// Metrics is the instrumentation surface for the polling loop.
type Metrics interface {
	PollPassInc()
	PollPassSkippedInc()
	PassObserve(seconds float64)
	CorrelationMissInc()
	VehicleSelectedInc()
	SetActiveSessions(n int)
}

// StepArrival is the live-arrival answer for one transit step of the viewed
// itinerary. Everything derived from the live feed here is discarded on the
// next pass or on cancellation; staleness is explicit via SignalAgeSeconds.
type StepArrival struct {
	LegIndex         int                 `json:"legIndex"`
	StepIndex        int                 `json:"stepIndex"`
	Match            correlate.StopMatch `json:"correlation"`
	Vehicle          *stm.LiveVehicle    `json:"vehicle,omitempty"`
	ETASeconds       *int                `json:"etaSeconds,omitempty"`
	SignalAgeSeconds *int                `json:"signalAgeSeconds,omitempty"`
	Freshness        correlate.Freshness `json:"freshness"`
	Scheduled        []stm.UpcomingBus   `json:"scheduled,omitempty"`
}

// Snapshot is the output of one completed poll pass.
type Snapshot struct {
	SessionID uuid.UUID     `json:"sessionId"`
	PassAt    time.Time     `json:"passAt"`
	Steps     []StepArrival `json:"steps"`
}

// Session polls live arrivals for one itinerary. No two passes of the same
// session ever run concurrently: a tick arriving while a pass is still in
// flight is skipped, not queued.
type Session struct {
	ID uuid.UUID

	itinerary directions.Itinerary
	authority AuthorityAPI
	estimator ETAEstimator
	matcher   correlate.Matcher
	interval  time.Duration
	log       *zap.Logger
	metrics   Metrics
	now       func() time.Time

	mu       sync.Mutex
	snapshot *Snapshot
	cancel   context.CancelFunc
	started  bool
	idle     bool

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

func NewSession(it directions.Itinerary, authority AuthorityAPI, estimator ETAEstimator, interval time.Duration, log *zap.Logger, m Metrics) *Session {
	return &Session{
		ID:        uuid.New(),
		itinerary: it,
		authority: authority,
		estimator: estimator,
		matcher:   correlate.DefaultMatcher{},
		interval:  interval,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}
}

// Start runs one pass immediately, then repeats on the poll interval until
// Cancel or parent-context cancellation. Starting an already-started session
// is a no-op.
func (s *Session) Start(parent context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPass(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runPass(ctx)
			}
		}
	}()
}

// Cancel stops the polling timer and discards derived state synchronously:
// after Cancel returns no stale estimate can be observed through Snapshot.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.snapshot = nil
	s.mu.Unlock()
	s.wg.Wait()
}

// Snapshot returns the latest completed pass, or nil before the first pass
// completes or after cancellation.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Idle reports whether the session stopped itself after losing the
// authority API. An idle session keeps its ID but produces no snapshots.
func (s *Session) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

func (s *Session) runPass(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		if s.metrics != nil {
			s.metrics.PollPassSkippedInc()
		}
		s.log.Debug("poll pass skipped, previous still running", zap.String("session", s.ID.String()))
		return
	}
	defer s.inFlight.Store(false)

	start := s.now()
	steps, ok := s.pass(ctx)
	if !ok {
		return
	}

	snap := &Snapshot{SessionID: s.ID, PassAt: s.now(), Steps: steps}
	s.mu.Lock()
	// A pass finishing after Cancel must not resurrect derived state.
	if ctx.Err() == nil {
		s.snapshot = snap
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.PollPassInc()
		s.metrics.PassObserve(s.now().Sub(start).Seconds())
	}
}

// pass runs one correlation -> selection -> estimation cycle over every
// transit step. ok is false when the authority API went unreachable
// (credential failure): the session goes idle and drops its state.
func (s *Session) pass(ctx context.Context) ([]StepArrival, bool) {
	steps := []StepArrival{}
	for li, leg := range s.itinerary.Legs {
		for si, step := range leg.Steps {
			if step.Transit == nil {
				continue
			}
			sa, ok := s.stepArrival(ctx, li, si, step)
			if !ok {
				s.goIdle()
				return nil, false
			}
			steps = append(steps, sa)
		}
	}
	return steps, true
}

func (s *Session) stepArrival(ctx context.Context, legIdx, stepIdx int, step directions.Step) (StepArrival, bool) {
	sa := StepArrival{LegIndex: legIdx, StepIndex: stepIdx, Freshness: correlate.FreshnessStale}

	stops, err := s.authority.FindStopsNear(ctx, step.Transit.DepartureStop)
	if err != nil {
		s.log.Error("authority unreachable, session going idle", zap.Error(err))
		return sa, false
	}
	sa.Match = correlate.Stop(step, stops, s.matcher)
	if sa.Match.StopID == nil {
		if s.metrics != nil {
			s.metrics.CorrelationMissInc()
		}
		s.log.Debug("no authority stop within threshold",
			zap.String("line", sa.Match.Line),
			zap.String("stop", step.Transit.DepartureStopName),
		)
		return sa, true
	}
	target := stopCoord(stops, *sa.Match.StopID)

	vehicles, err := s.authority.VehiclePositions(ctx, []string{sa.Match.Line})
	if err != nil {
		s.log.Error("authority unreachable, session going idle", zap.Error(err))
		return sa, false
	}
	vehicle := correlate.SelectVehicle(vehicles, sa.Match.Line, sa.Match.LineDestination, target, s.matcher)
	if vehicle == nil {
		// Fall back to schedule-based arrivals so the UI still has
		// something to show.
		scheduled, err := s.authority.UpcomingBuses(ctx, *sa.Match.StopID, []string{sa.Match.Line}, scheduledFallbackLimit)
		if err != nil {
			return sa, false
		}
		sa.Scheduled = scheduled
		return sa, true
	}

	if s.metrics != nil {
		s.metrics.VehicleSelectedInc()
	}
	sa.Vehicle = vehicle
	age := correlate.SignalAge(vehicle, s.now())
	if age != nil {
		secs := int(age.Seconds())
		sa.SignalAgeSeconds = &secs
	}
	sa.Freshness = correlate.ClassifyFreshness(age)
	sa.ETASeconds = s.estimator.EstimateETA(ctx, vehicle.Coord, target)
	return sa, true
}

// goIdle cancels the timer and clears derived state without blocking on the
// session goroutine (it is the one calling).
func (s *Session) goIdle() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.snapshot = nil
	s.idle = true
	s.mu.Unlock()
}

func stopCoord(stops []stm.AuthorityStop, id int) geo.Coord {
	for _, st := range stops {
		if st.ID == id {
			return st.Coord
		}
	}
	return geo.Coord{}
}

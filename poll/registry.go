package poll

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mtlrider/stm-live/directions"
)

// Registry tracks the live polling sessions and enforces the one-session-
// per-viewed-itinerary lifecycle: starting a session for a new itinerary is
// the caller's cue to cancel the previous one.
type Registry struct {
	authority AuthorityAPI
	estimator ETAEstimator
	interval  time.Duration
	log       *zap.Logger
	metrics   Metrics

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry(authority AuthorityAPI, estimator ETAEstimator, interval time.Duration, log *zap.Logger, m Metrics) *Registry {
	return &Registry{
		authority: authority,
		estimator: estimator,
		interval:  interval,
		log:       log,
		metrics:   m,
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// Start creates and starts a session for the given itinerary and returns it.
func (r *Registry) Start(ctx context.Context, it directions.Itinerary) *Session {
	s := NewSession(it, r.authority, r.estimator, r.interval, r.log, r.metrics)
	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.SetActiveSessions(n)
	}
	s.Start(ctx)
	r.log.Info("polling session started", zap.String("session", s.ID.String()))
	return s
}

// Get returns the session with the given ID, if it exists.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Cancel stops and removes a session. It reports whether the session
// existed.
func (r *Registry) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Cancel()
	if r.metrics != nil {
		r.metrics.SetActiveSessions(n)
	}
	r.log.Info("polling session cancelled", zap.String("session", id.String()))
	return true
}

// LatestPassEpoch returns the unix time of the most recent completed pass
// across all sessions, or 0 when no pass has completed yet.
func (r *Registry) LatestPassEpoch() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest int64
	for _, s := range r.sessions {
		if snap := s.Snapshot(); snap != nil && snap.PassAt.Unix() > latest {
			latest = snap.PassAt.Unix()
		}
	}
	return latest
}

// CancelAll stops every session; used on shutdown.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[uuid.UUID]*Session)
	r.mu.Unlock()
	for _, s := range all {
		s.Cancel()
	}
	if r.metrics != nil {
		r.metrics.SetActiveSessions(0)
	}
}

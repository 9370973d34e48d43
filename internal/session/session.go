// Package session holds analysis results between the analyze and generate
// calls. Sessions live in memory only and are removed after one generation
// or when their TTL runs out.
package session

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"applysharp/internal/config"
	"applysharp/internal/errors"
	"applysharp/internal/observability"
	"applysharp/internal/types"
)

const (
	DefaultTTL           = time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// State is a session lifecycle stage.
type State string

const (
	StateAnalyzed   State = "analyzed"
	StateGenerating State = "generating"
	StateDeleted    State = "deleted"
)

// Reasons passed to the delete hook.
const (
	ReasonExpired  = "expired"
	ReasonFinished = "finished"
	ReasonDeleted  = "deleted"
)

// Data is everything the analysis step produced.
type Data struct {
	CVText       string
	LinkedInText string
	Job          types.Job

	Findings       types.Findings
	Tips           []types.Tip
	Gaps           []types.Gap
	Contradictions []types.Contradiction
	AutoFixes      []types.AutoFix
	AIWords        []types.AIWord
	Questions      []types.Question
}

// Session is one applicant's analysis, owned by a Store.
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
	State     State
	Data

	// Answers is set by the generation step on its own copy.
	Answers map[string]string
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics records deletions.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithOnDelete registers a hook that runs exactly once for every session
// removed from the store, outside the store lock.
func WithOnDelete(fn func(id, reason string)) Option {
	return func(s *Store) { s.onDelete = fn }
}

type deletion struct {
	id     string
	reason string
}

// Store is an in-memory, TTL-bound session registry. Every state check and
// transition happens under one mutex.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	tombstones map[string]time.Time
	ttl        time.Duration

	now      func() time.Time
	onDelete func(id, reason string)
	metrics  *observability.Metrics
	logger   *errors.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a store from the session config.
func NewStore(cfg config.SessionConfig, logger *errors.Logger, opts ...Option) *Store {
	s := &Store{
		sessions:   make(map[string]*Session),
		tombstones: make(map[string]time.Time),
		ttl:        cfg.TTL,
		now:        time.Now,
		logger:     logger,
		done:       make(chan struct{}),
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new analyzed session and sweeps expired ones.
func (s *Store) Create(data Data) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.NewInternalError("SESSION_ID", "failed to generate session id", err)
	}

	s.mu.Lock()
	now := s.now()
	deleted := s.sweepLocked(now)
	s.sessions[id.String()] = &Session{
		ID:        id.String(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		State:     StateAnalyzed,
		Data:      cloneData(data),
	}
	s.mu.Unlock()

	s.notify(deleted)
	return id.String(), nil
}

// Get returns a copy of a live session.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	sess, deleted, err := s.liveLocked(id)
	var out *Session
	if err == nil {
		out = sess.clone()
	}
	s.mu.Unlock()

	s.notify(deleted)
	return out, err
}

// Consume moves a session from analyzed to generating and returns a copy.
// It succeeds at most once per session.
func (s *Store) Consume(id string) (*Session, error) {
	s.mu.Lock()
	if _, ok := s.tombstones[id]; ok {
		s.mu.Unlock()
		return nil, errors.NewSessionConsumedError(errors.ErrCodeSessionConsumed, "Session already used. Please re-upload your CV and start again.")
	}
	sess, deleted, err := s.liveLocked(id)
	if err != nil {
		s.mu.Unlock()
		s.notify(deleted)
		return nil, err
	}
	sess.State = StateGenerating
	s.tombstones[id] = sess.ExpiresAt
	out := sess.clone()
	s.mu.Unlock()

	return out, nil
}

// Finish drops a consumed session's data. The id stays reserved until the
// session would have expired, so late Consume calls still report it as used.
func (s *Store) Finish(id string) {
	s.mu.Lock()
	var deleted []deletion
	if sess, ok := s.sessions[id]; ok {
		if _, consumed := s.tombstones[id]; !consumed {
			s.tombstones[id] = sess.ExpiresAt
		}
		deleted = append(deleted, s.removeLocked(id, ReasonFinished))
	}
	s.mu.Unlock()

	s.notify(deleted)
}

// Delete removes a session and its tombstone. Deleting twice is harmless.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	var deleted []deletion
	if _, ok := s.sessions[id]; ok {
		deleted = append(deleted, s.removeLocked(id, ReasonDeleted))
	}
	delete(s.tombstones, id)
	s.mu.Unlock()

	s.notify(deleted)
}

// Sweep removes expired sessions and tombstones and reports how many
// sessions it removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	deleted := s.sweepLocked(s.now())
	s.mu.Unlock()

	s.notify(deleted)
	return len(deleted)
}

// StartSweeper sweeps on every tick until ctx is done or Stop is called.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(); n > 0 && s.logger != nil {
					s.logger.Debug("Session sweep completed", "expired", n, "active", s.Len())
				}
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}()
}

// Stop ends the sweeper.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, sess := range s.sessions {
		if now.Before(sess.ExpiresAt) {
			n++
		}
	}
	return n
}

// GetStats returns store statistics for the stats endpoint.
func (s *Store) GetStats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]any{
		"stored_sessions": len(s.sessions),
		"tombstones":      len(s.tombstones),
		"ttl_seconds":     s.ttl.Seconds(),
	}
}

// liveLocked returns the stored session when it exists and has not expired.
// An expired session is removed on the spot.
func (s *Store) liveLocked(id string) (*Session, []deletion, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil, errors.NewNotFoundError(errors.ErrCodeSessionNotFound, "Session expired. Please re-upload your CV and start again.")
	}
	if !s.now().Before(sess.ExpiresAt) {
		d := s.removeLocked(id, ReasonExpired)
		delete(s.tombstones, id)
		return nil, []deletion{d}, errors.NewNotFoundError(errors.ErrCodeSessionNotFound, "Session expired. Please re-upload your CV and start again.")
	}
	return sess, nil, nil
}

func (s *Store) sweepLocked(now time.Time) []deletion {
	var deleted []deletion
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			deleted = append(deleted, s.removeLocked(id, ReasonExpired))
		}
	}
	for id, expiresAt := range s.tombstones {
		if !now.Before(expiresAt) {
			delete(s.tombstones, id)
		}
	}
	return deleted
}

func (s *Store) removeLocked(id, reason string) deletion {
	if sess, ok := s.sessions[id]; ok {
		sess.State = StateDeleted
		sess.Data = Data{}
		delete(s.sessions, id)
	}
	return deletion{id: id, reason: reason}
}

func (s *Store) notify(deleted []deletion) {
	for _, d := range deleted {
		s.metrics.RecordSessionDeleted(context.Background(), d.reason)
		if s.onDelete != nil {
			s.onDelete(d.id, d.reason)
		}
	}
}

func (sess *Session) clone() *Session {
	out := *sess
	out.Data = cloneData(sess.Data)
	out.Answers = maps.Clone(sess.Answers)
	return &out
}

func cloneData(d Data) Data {
	out := d
	out.Findings = types.Findings{
		ATS:         slices.Clone(d.Findings.ATS),
		Culture:     slices.Clone(d.Findings.Culture),
		Role:        slices.Clone(d.Findings.Role),
		CompanyTips: slices.Clone(d.Findings.CompanyTips),
	}
	out.Tips = make([]types.Tip, len(d.Tips))
	for i, t := range d.Tips {
		t.Containers = slices.Clone(t.Containers)
		out.Tips[i] = t
	}
	out.Gaps = slices.Clone(d.Gaps)
	out.Contradictions = slices.Clone(d.Contradictions)
	out.AutoFixes = slices.Clone(d.AutoFixes)
	out.AIWords = slices.Clone(d.AIWords)
	out.Questions = slices.Clone(d.Questions)
	return out
}

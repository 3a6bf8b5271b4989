package session

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/internal/forecast"
	"github.com/ducminhle1904/quantile-risk-engine/internal/logger"
	"github.com/ducminhle1904/quantile-risk-engine/internal/monitoring"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio/storage"
	"github.com/ducminhle1904/quantile-risk-engine/internal/store"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
)

// RunSaver persists the final summary of a stopped session
type RunSaver interface {
	SaveRun(ctx context.Context, rec store.RunRecord) error
}

// Option customizes a Store
type Option func(*Store)

// WithRunStore persists every stopped or failed session
func WithRunStore(s RunSaver) Option {
	return func(st *Store) { st.runs = s }
}

// WithCheckpointDir writes a portfolio checkpoint per session into dir
func WithCheckpointDir(dir string) Option {
	return func(st *Store) { st.checkpointDir = dir }
}

// WithLogDir gives each session its own log file under dir
func WithLogDir(dir string) Option {
	return func(st *Store) { st.logDir = dir }
}

// WithLogger sets the store's logger
func WithLogger(l zerolog.Logger) Option {
	return func(st *Store) { st.log = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

// Store owns the live sessions and routes operations to them
type Store struct {
	prices        forecast.PriceSource
	runs          RunSaver
	checkpointDir string
	logDir        string
	log           zerolog.Logger
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store quoting from prices
func NewStore(prices forecast.PriceSource, opts ...Option) *Store {
	st := &Store{
		prices:   prices,
		log:      zerolog.Nop(),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Create starts a new active session with a fresh portfolio
func (st *Store) Create(cfg config.EngineConfig, label string) (*Session, error) {
	return st.open(cfg, uuid.NewString(), label, nil)
}

// Restore reopens a session from its checkpoint. The checkpoint is copied
// aside first so the restored session can overwrite it.
func (st *Store) Restore(cfg config.EngineConfig, id, label string) (*Session, error) {
	if st.checkpointDir == "" {
		return nil, engerrors.New(engerrors.ErrInvalidConfig, component, "restore", "no checkpoint directory configured")
	}
	fs, err := storage.NewFileStorage(st.checkpointPath(id))
	if err != nil {
		return nil, err
	}
	book, err := fs.Load()
	if err != nil {
		return nil, err
	}
	backup, err := fs.BackupState()
	if err != nil {
		return nil, err
	}
	st.log.Info().Str("session", id).Str("backup", backup).Msg("restoring session from checkpoint")
	return st.open(cfg, id, label, book)
}

func (st *Store) open(cfg config.EngineConfig, id, label string, book *portfolio.State) (*Session, error) {
	cfg.Mode = config.ModeLive
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st.mu.RLock()
	_, exists := st.sessions[id]
	st.mu.RUnlock()
	if exists {
		return nil, engerrors.Newf(engerrors.ErrInvalidConfig, component, "create", "session %s already exists", id)
	}

	slog, err := st.sessionLogger(id)
	if err != nil {
		return nil, err
	}
	eng := engine.New(cfg, engine.WithLogger(slog), engine.WithLabel(label))
	if book == nil {
		book = eng.NewPortfolio()
	}

	s := newSession(id, label, eng, book, st.prices, slog, st.now)
	s.onStop = st.onStop
	if st.checkpointDir != "" {
		fs, err := storage.NewFileStorage(st.checkpointPath(id))
		if err != nil {
			_ = slog.Close()
			return nil, err
		}
		if err := fs.Lock(); err != nil {
			_ = slog.Close()
			return nil, err
		}
		s.checkpt = fs
	}
	if err := s.Start(); err != nil {
		return nil, err
	}

	st.mu.Lock()
	st.sessions[id] = s
	st.mu.Unlock()
	st.publishCounts()
	st.log.Info().Str("session", id).Str("label", label).Str("profile", cfg.RiskProfile).
		Float64("capital", book.InitialCapital).Msg("session created")
	return s, nil
}

// Get returns a session by id
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, engerrors.Newf(engerrors.ErrSessionNotFound, component, "get", "session %s not found", id)
	}
	return s, nil
}

// List returns info for every session ordered by creation time
func (st *Store) List() []Info {
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.RUnlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Stop stops one session
func (st *Store) Stop(ctx context.Context, id string) (engine.Summary, error) {
	s, err := st.Get(id)
	if err != nil {
		return engine.Summary{}, err
	}
	return s.Stop(ctx)
}

// Expire stops active sessions idle for longer than ttl and removes
// terminal sessions idle for longer than ttl. It returns the ids touched.
func (st *Store) Expire(ctx context.Context, ttl time.Duration) []string {
	cutoff := st.now().Add(-ttl)

	st.mu.RLock()
	var idle []*Session
	for _, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
		}
	}
	st.mu.RUnlock()

	var ids []string
	for _, s := range idle {
		if s.State() == StateActive {
			if _, err := s.Stop(ctx); err != nil {
				st.log.Warn().Err(err).Str("session", s.ID()).Msg("stop on expiry failed")
			}
			ids = append(ids, s.ID())
			continue
		}
		st.mu.Lock()
		delete(st.sessions, s.ID())
		st.mu.Unlock()
		monitoring.ForgetPortfolio(s.ID())
		ids = append(ids, s.ID())
	}
	if len(ids) > 0 {
		st.publishCounts()
		st.log.Info().Strs("sessions", ids).Msg("expired idle sessions")
	}
	sort.Strings(ids)
	return ids
}

// StopAll stops every active session
func (st *Store) StopAll(ctx context.Context) error {
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.RUnlock()

	var errs []error
	for _, s := range sessions {
		if s.State() != StateActive {
			continue
		}
		if _, err := s.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Counts tallies sessions by state
func (st *Store) Counts() monitoring.SessionCounts {
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.RUnlock()

	var c monitoring.SessionCounts
	for _, s := range sessions {
		switch s.State() {
		case StateActive, StateCreated:
			c.Active++
		case StateStopped:
			c.Stopped++
		case StateFailed:
			c.Failed++
		}
	}
	return c
}

func (st *Store) onStop(s *Session, summary engine.Summary) {
	if s.checkpt != nil {
		_ = s.checkpt.Unlock()
	}
	st.publishCounts()
	if st.runs == nil {
		return
	}
	rec := store.RunRecord{
		ID:        s.ID(),
		Kind:      store.KindSession,
		Label:     s.label,
		StartedAt: s.createdAt,
		Summary:   summary,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.runs.SaveRun(ctx, rec); err != nil {
		st.log.Error().Err(err).Str("session", s.ID()).Msg("failed to persist session")
	}
}

func (st *Store) publishCounts() {
	monitoring.SetActiveSessions(st.Counts().Active)
}

func (st *Store) sessionLogger(id string) (*logger.Logger, error) {
	if st.logDir == "" {
		return logger.New(st.log, id), nil
	}
	return logger.NewLogger(st.logDir, id, "", false)
}

func (st *Store) checkpointPath(id string) string {
	return filepath.Join(st.checkpointDir, id+".json")
}

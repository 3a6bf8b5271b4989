package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/internal/forecast"
	"github.com/ducminhle1904/quantile-risk-engine/internal/logger"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio/storage"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

const (
	component    = "session"
	recentErrors = 20
)

// State is the lifecycle state of a session
type State string

const (
	StateCreated State = "created"
	StateActive  State = "active"
	StateStopped State = "stopped"
	StateFailed  State = "failed"
)

// Terminal reports whether no further orders are accepted
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// Info is a point-in-time view of a session
type Info struct {
	ID            string    `json:"id"`
	Label         string    `json:"label"`
	State         State     `json:"state"`
	Cash          float64   `json:"cash"`
	Equity        float64   `json:"equity"`
	Drawdown      float64   `json:"drawdown"`
	OpenPositions int       `json:"open_positions"`
	Trades        int       `json:"trades"`
	Violations    int       `json:"violations"`
	CreatedAt     time.Time `json:"created_at"`
	LastActivity  time.Time `json:"last_activity"`
	Failure       string    `json:"failure,omitempty"`

	Errors       int            `json:"errors"`
	ErrorsByKind map[string]int `json:"errors_by_kind,omitempty"`
}

// Session is a live paper-trading session. Operations are serialized by the
// session mutex; price lookups happen before the lock is taken.
type Session struct {
	id        string
	label     string
	eng       *engine.Engine
	prices    forecast.PriceSource
	log       *logger.Logger
	checkpt   *storage.FileStorage
	onStop    func(*Session, engine.Summary)
	now       func() time.Time
	symbols   []string
	createdAt time.Time

	mu           sync.Mutex
	state        State
	book         *portfolio.State
	lastActivity time.Time
	summary      *engine.Summary
	pendingStop  *engine.Summary
	failure      error
	errs         *engerrors.ErrorStats
}

func newSession(id, label string, eng *engine.Engine, book *portfolio.State, prices forecast.PriceSource, log *logger.Logger, now func() time.Time) *Session {
	at := now()
	return &Session{
		id:           id,
		label:        label,
		eng:          eng,
		prices:       prices,
		log:          log,
		now:          now,
		symbols:      eng.Config().Symbols,
		createdAt:    at,
		state:        StateCreated,
		book:         book,
		lastActivity: at,
		errs:         engerrors.NewErrorStats(recentErrors),
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start moves a created session to active
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCreated {
		return engerrors.Newf(engerrors.ErrSessionStopped, component, "start", "session %s is %s", s.id, s.state)
	}
	s.state = StateActive
	s.touch()
	s.log.Status("session %s active with capital %.2f", s.id, s.book.InitialCapital)
	return nil
}

// UpdatePrices marks the book at current prices and applies stop-loss and
// take-profit exits
func (s *Session) UpdatePrices(ctx context.Context) ([]portfolio.Trade, error) {
	prices, err := s.fetchPrices(ctx, s.watchList())
	if err != nil {
		s.record(err)
		return nil, err
	}

	s.mu.Lock()
	defer s.unlock()
	if err := s.ensureActive("update_prices"); err != nil {
		return nil, err
	}
	at := s.now()
	s.touch()
	s.eng.Mark(s.book, prices, at)
	trades, err := s.eng.CheckExits(s.book, prices, at)
	if err != nil {
		return trades, s.fail(err)
	}
	s.book.Snapshot(at)
	s.checkpoint()
	return trades, nil
}

// SubmitForecast runs a forecast through the pipeline at the current price
func (s *Session) SubmitForecast(ctx context.Context, f types.Forecast) (engine.Result, error) {
	f.Symbol = strings.ToUpper(strings.TrimSpace(f.Symbol))
	price, err := s.priceOf(ctx, f.Symbol)
	if err != nil {
		s.record(err)
		return engine.Result{Outcome: engine.OutcomeInvalid}, err
	}

	s.mu.Lock()
	defer s.unlock()
	if err := s.ensureActive("submit_forecast"); err != nil {
		return engine.Result{}, err
	}
	at := s.now()
	s.touch()
	if price > 0 {
		s.eng.Mark(s.book, map[string]float64{f.Symbol: price}, at)
	}
	res, err := s.eng.ProcessForecast(s.book, f, price, at)
	s.errs.RecordError(err)
	if err != nil && engerrors.IsFatal(err) {
		return res, s.fail(err)
	}
	s.checkpoint()
	return res, err
}

// SubmitOrder applies a manual order at the current price
func (s *Session) SubmitOrder(ctx context.Context, order types.Order) (portfolio.Trade, error) {
	order.Symbol = strings.ToUpper(strings.TrimSpace(order.Symbol))
	price, err := s.priceOf(ctx, order.Symbol)
	if err != nil {
		s.record(err)
		return portfolio.Trade{}, err
	}

	s.mu.Lock()
	defer s.unlock()
	if err := s.ensureActive("submit_order"); err != nil {
		return portfolio.Trade{}, err
	}
	at := s.now()
	s.touch()
	if price > 0 {
		s.eng.Mark(s.book, map[string]float64{order.Symbol: price}, at)
	}
	trade, err := s.eng.SubmitOrder(s.book, order, price, at)
	s.errs.RecordError(err)
	if err != nil && engerrors.IsFatal(err) {
		return trade, s.fail(err)
	}
	s.checkpoint()
	return trade, err
}

// Stop closes every position, computes the final summary and moves the
// session to stopped. Later calls return the same summary.
func (s *Session) Stop(ctx context.Context) (engine.Summary, error) {
	s.mu.Lock()
	if s.summary != nil {
		defer s.mu.Unlock()
		return *s.summary, nil
	}
	held := s.book.Symbols()
	s.mu.Unlock()

	// quotes are best effort; CloseAll falls back to the last mark
	prices, _ := s.fetchPrices(ctx, held)

	s.mu.Lock()
	if s.summary != nil {
		defer s.mu.Unlock()
		return *s.summary, nil
	}
	at := s.now()
	_, closeErr := s.eng.CloseAll(s.book, prices, types.ReasonSessionEnd, at)
	s.book.Snapshot(at)
	summary := s.finalize(StateStopped)
	s.checkpoint()
	s.mu.Unlock()

	s.log.Status("session %s stopped: equity %.2f return %.2f%%", s.id, summary.FinalCapital, summary.TotalReturn*100)
	s.afterStop(summary)
	if closeErr != nil {
		return summary, closeErr
	}
	return summary, nil
}

// Summary returns the final summary once stopped, or a live summary
func (s *Session) Summary() engine.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary != nil {
		return *s.summary
	}
	sum := s.eng.Summarize(s.book)
	sum.RunID = s.id
	return sum
}

// Info returns a snapshot of the session
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ID:            s.id,
		Label:         s.label,
		State:         s.state,
		Cash:          s.book.Cash,
		Equity:        s.book.TotalEquity(),
		Drawdown:      s.book.Drawdown(),
		OpenPositions: len(s.book.Positions),
		Trades:        len(s.book.Trades),
		Violations:    len(s.book.Violations),
		CreatedAt:     s.createdAt,
		LastActivity:  s.lastActivity,
	}
	if s.failure != nil {
		info.Failure = s.failure.Error()
	}
	info.Errors = s.errs.TotalErrors
	if len(s.errs.ErrorsByKind) > 0 {
		info.ErrorsByKind = make(map[string]int, len(s.errs.ErrorsByKind))
		for kind, n := range s.errs.ErrorsByKind {
			info.ErrorsByKind[string(kind)] = n
		}
	}
	return info
}

// record counts an error raised outside the session lock
func (s *Session) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs.RecordError(err)
}

// Err returns the invariant breach that failed the session, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) ensureActive(op string) error {
	if s.state != StateActive {
		return engerrors.Newf(engerrors.ErrSessionStopped, component, op, "session %s is %s", s.id, s.state)
	}
	return nil
}

// fail moves the session to failed. The book is kept as it was when the
// breach was detected.
func (s *Session) fail(err error) error {
	s.failure = err
	summary := s.finalize(StateFailed)
	s.log.LogError("session "+s.id+" failed", err)
	s.pendingStop = &summary
	return err
}

// unlock releases the session lock and runs stop hooks queued by fail
func (s *Session) unlock() {
	pending := s.pendingStop
	s.pendingStop = nil
	s.mu.Unlock()
	if pending != nil {
		s.afterStop(*pending)
	}
}

func (s *Session) finalize(state State) engine.Summary {
	summary := s.eng.Summarize(s.book)
	summary.RunID = s.id
	s.summary = &summary
	s.state = state
	return summary
}

func (s *Session) afterStop(summary engine.Summary) {
	if s.onStop != nil {
		s.onStop(s, summary)
	}
	_ = s.log.Close()
}

func (s *Session) touch() {
	s.lastActivity = s.now()
}

func (s *Session) checkpoint() {
	if s.checkpt == nil {
		return
	}
	if err := s.checkpt.Save(s.book); err != nil {
		s.log.LogWarning(component, "checkpoint failed: %v", err)
	}
}

func (s *Session) watchList() []string {
	s.mu.Lock()
	held := s.book.Symbols()
	s.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, sym := range append(append([]string(nil), s.symbols...), held...) {
		sym = strings.ToUpper(sym)
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

// fetchPrices collects quotes without holding the session lock. Unknown
// symbols are left out of the map.
func (s *Session) fetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		p, ok, err := s.prices.CurrentPrice(ctx, sym)
		if err != nil {
			return prices, err
		}
		if ok {
			prices[sym] = p
		}
	}
	return prices, nil
}

// priceOf returns 0 for an unknown price so the engine reports
// PriceUnavailable for that order alone
func (s *Session) priceOf(ctx context.Context, symbol string) (float64, error) {
	p, ok, err := s.prices.CurrentPrice(ctx, symbol)
	if err != nil {
		return 0, engerrors.Wrap(err, engerrors.ErrPriceUnavailable, component, "price").WithContext("symbol", symbol)
	}
	if !ok {
		return 0, nil
	}
	return p, nil
}

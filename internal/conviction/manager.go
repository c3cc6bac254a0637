package conviction

import (
	"context"
	"fmt"
	"sort"
	"time"

	"conviction-trading-bot/internal/logger"
	"conviction-trading-bot/internal/store"
)

// Manager owns the persisted conviction records. Single process, no
// locking: the bot is the only writer.
type Manager struct {
	cfg       *store.Config
	statePath string
	records   map[string]*Record
	now       func() time.Time
}

func NewManager(cfg *store.Config) (*Manager, error) {
	m := &Manager{
		cfg:       cfg,
		statePath: cfg.Conviction.StateFile,
		records:   map[string]*Record{},
		now:       time.Now,
	}
	if _, err := store.LoadJSON(m.statePath, &m.records); err != nil {
		return nil, fmt.Errorf("load conviction state: %w", err)
	}
	return m, nil
}

// SetClock overrides the manager's clock. Used by tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func (m *Manager) save() error {
	return store.SaveJSON(m.statePath, m.records)
}

// SetParams describes a new operator-declared conviction.
type SetParams struct {
	Symbol           string
	Thesis           string
	Catalyst         string
	CatalystDeadline time.Time
	EntryPrice       float64
	MaxPainPrice     float64
	TargetPrice      float64
	Dollars          float64
}

// Set creates (or replaces) a conviction record. Replacing is the only way
// a CLOSED or EXPIRED symbol becomes active again.
func (m *Manager) Set(ctx context.Context, p SetParams) (*Record, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("conviction symbol required")
	}
	if p.MaxPainPrice <= 0 || p.MaxPainPrice >= p.EntryPrice {
		return nil, fmt.Errorf("max pain price must be positive and below entry")
	}
	if !p.CatalystDeadline.After(m.now()) {
		return nil, fmt.Errorf("catalyst deadline must be in the future")
	}

	active := 0
	for sym, r := range m.records {
		if sym != p.Symbol && !r.Phase.Terminal() {
			active++
		}
	}
	if active >= m.cfg.Conviction.MaxConcurrent {
		return nil, fmt.Errorf("max %d concurrent convictions", m.cfg.Conviction.MaxConcurrent)
	}

	rec := &Record{
		Symbol:           p.Symbol,
		Thesis:           p.Thesis,
		Catalyst:         p.Catalyst,
		CatalystDeadline: p.CatalystDeadline,
		SetDate:          m.now(),
		EntryPrice:       p.EntryPrice,
		MaxPainPrice:     p.MaxPainPrice,
		TargetPrice:      p.TargetPrice,
		BaseScore:        m.cfg.Conviction.BaseScore,
		CurrentScore:     m.cfg.Conviction.BaseScore,
		Phase:            PhaseHolding,
		OriginalDollars:  p.Dollars,
	}
	m.records[p.Symbol] = rec

	logger.Info(ctx, "Conviction set",
		"symbol", p.Symbol,
		"thesis", p.Thesis,
		"entry", p.EntryPrice,
		"max_pain", p.MaxPainPrice,
		"deadline", p.CatalystDeadline.Format("2006-01-02"),
	)
	return rec, m.save()
}

// Close marks a conviction CLOSED by operator action.
func (m *Manager) Close(ctx context.Context, symbol, reason string) error {
	rec, ok := m.records[symbol]
	if !ok {
		return fmt.Errorf("no conviction for %s", symbol)
	}
	rec.Phase = PhaseClosed
	rec.ExitReason = reason
	logger.Info(ctx, "Conviction closed", "symbol", symbol, "reason", reason)
	return m.save()
}

// Get returns the record for a symbol, nil when absent.
func (m *Manager) Get(symbol string) *Record {
	return m.records[symbol]
}

// List returns all records ordered by symbol.
func (m *Manager) List() []*Record {
	out := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Update runs one cycle of the state machine for a symbol and persists the
// result.
func (m *Manager) Update(ctx context.Context, symbol string, obs Observation) (Action, error) {
	rec, ok := m.records[symbol]
	if !ok {
		return Action{Symbol: symbol, Type: ActionHold, Reason: "no conviction"}, nil
	}

	before := rec.CurrentScore
	act := update(rec, obs, m.cfg, m.now())

	if act.Type != ActionHold || rec.CurrentScore != before {
		logger.Info(ctx, "Conviction updated",
			"symbol", symbol,
			"score_before", before,
			"score_after", rec.CurrentScore,
			"phase", string(rec.Phase),
			"action", string(act.Type),
			"reason", act.Reason,
		)
	}
	if act.Type == ActionAdd {
		rec.LastAddDate = m.now()
		rec.AddedDollars += act.Dollars
	}

	return act, m.save()
}

// ApplyEvent injects a one-shot external event (earnings, catalyst news,
// sentiment reading) into a symbol's score.
func (m *Manager) ApplyEvent(ctx context.Context, symbol string, ev EventType, sentimentScore float64) error {
	rec, ok := m.records[symbol]
	if !ok {
		return fmt.Errorf("no conviction for %s", symbol)
	}
	before := rec.CurrentScore
	applyEvent(rec, ev, sentimentScore, m.cfg.Conviction)
	logger.Info(ctx, "Conviction event applied",
		"symbol", symbol,
		"event", string(ev),
		"score_before", before,
		"score_after", rec.CurrentScore,
		"phase", string(rec.Phase),
	)
	return m.save()
}

// ShouldSkipExit reports whether a symbol is exempt from normal exit rules.
func (m *Manager) ShouldSkipExit(symbol string, price float64) bool {
	rec, ok := m.records[symbol]
	if !ok {
		return false
	}
	return rec.ShouldSkipExit(price)
}

package conviction

import (
	"math"
	"time"

	"conviction-trading-bot/internal/store"
)

type Phase string

const (
	PhaseAccumulating Phase = "ACCUMULATING"
	PhaseHolding      Phase = "HOLDING"
	PhaseWeakening    Phase = "WEAKENING"
	PhaseExiting      Phase = "EXITING"
	PhaseExpired      Phase = "EXPIRED"
	PhaseClosed       Phase = "CLOSED"
)

// terminal phases never re-enter an active phase without an operator Set.
func (p Phase) Terminal() bool { return p == PhaseExpired || p == PhaseClosed }

type ScorePoint struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

// Record is one operator-declared conviction position. The thesis overrides
// normal exit rules for the symbol until the score decays, the deadline
// passes or the max-pain floor is breached.
type Record struct {
	Symbol           string       `json:"symbol"`
	Thesis           string       `json:"thesis"`
	Catalyst         string       `json:"catalyst"`
	CatalystDeadline time.Time    `json:"catalyst_deadline"`
	SetDate          time.Time    `json:"set_date"`
	EntryPrice       float64      `json:"entry_price"`
	MaxPainPrice     float64      `json:"max_pain_price"`
	TargetPrice      float64      `json:"target_price"`
	BaseScore        float64      `json:"base_score"`
	CurrentScore     float64      `json:"current_score"`
	Phase            Phase        `json:"phase"`
	ScoreHistory     []ScorePoint `json:"score_history"`
	SentimentTrend   float64      `json:"sentiment_trend"`
	WeakReadings     int          `json:"weak_readings"`
	LastAddDate      time.Time    `json:"last_add_date,omitempty"`
	OriginalDollars  float64      `json:"original_dollars"`
	AddedDollars     float64      `json:"added_dollars"`
	ExitReason       string       `json:"exit_reason,omitempty"`
}

// Observation is the per-cycle market input for one conviction symbol.
type Observation struct {
	Price          float64
	DayChangePct   float64 // symbol's day-over-day move
	RelVolume      float64 // volume vs its recent average
	BenchChangePct float64 // benchmark (SPY) day-over-day move
	Sentiment      float64 // -1..1, zero when no reading
	HasSentiment   bool
}

// ActionType is what the engine should do about a conviction this cycle.
type ActionType string

const (
	ActionHold    ActionType = "HOLD"
	ActionAdd     ActionType = "ADD"
	ActionExit    ActionType = "EXIT"
	ActionAbandon ActionType = "ABANDON"
)

type Action struct {
	Symbol  string     `json:"symbol"`
	Type    ActionType `json:"type"`
	Reason  string     `json:"reason"`
	Urgency string     `json:"urgency"`
	Dollars float64    `json:"dollars,omitempty"`
}

// dollars added on a dip, per add
const defaultAddDollars = 25.0

func clampScore(s float64) float64 {
	return math.Max(0, math.Min(100, s))
}

// update applies one cycle of decay, price action, volume and storm
// dampening to a record and returns the resulting action. For active
// records the max-pain floor is checked before anything else, wins over
// score and phase, and terminates the conviction.
func update(rec *Record, obs Observation, cfg *store.Config, now time.Time) Action {
	cc := cfg.Conviction

	// Terminal records are inert: only an operator Set revives the symbol.
	if rec.Phase.Terminal() {
		return Action{Symbol: rec.Symbol, Type: ActionHold, Reason: string(rec.Phase)}
	}

	// Max pain is the hard floor: thesis dead, close immediately whatever
	// the score or the active phase says.
	if obs.Price > 0 && obs.Price < rec.MaxPainPrice {
		rec.Phase = PhaseClosed
		rec.ExitReason = "max pain breached"
		return Action{
			Symbol:  rec.Symbol,
			Type:    ActionAbandon,
			Reason:  "max pain breached: thesis dead",
			Urgency: "CRITICAL",
		}
	}

	// Deadline passed without the catalyst: the thesis expired.
	if now.After(rec.CatalystDeadline) {
		rec.Phase = PhaseExpired
		rec.ExitReason = "catalyst deadline expired"
		return Action{
			Symbol:  rec.Symbol,
			Type:    ActionExit,
			Reason:  "catalyst deadline expired",
			Urgency: "HIGH",
		}
	}

	delta := -timeDecay(rec, cc, now)

	boost, penalty := priceAction(rec, obs, cc)
	boost += volumeSignal(obs, cc)
	penalty += volumePenalty(obs, cc)

	// Storm dampening: when the broad market is falling with the symbol,
	// the drop is systemic, not thesis-specific, so penalties shrink.
	if factor := stormFactor(obs); factor > cc.StormThreshold {
		penalty *= 1 - cc.StormDampening*factor
	}

	delta += boost - penalty

	if obs.HasSentiment {
		a := cc.SentimentEMAAlpha
		rec.SentimentTrend = a*obs.Sentiment + (1-a)*rec.SentimentTrend
	}

	rec.CurrentScore = clampScore(rec.CurrentScore + delta)
	rec.ScoreHistory = append(rec.ScoreHistory, ScorePoint{
		Date:  now.Format("2006-01-02"),
		Score: rec.CurrentScore,
	})

	if rec.CurrentScore < cc.AutoCloseScore {
		rec.Phase = PhaseClosed
		rec.ExitReason = "score decayed below auto-close floor"
		return Action{
			Symbol:  rec.Symbol,
			Type:    ActionExit,
			Reason:  "conviction score decayed to auto-close floor",
			Urgency: "HIGH",
		}
	}

	advancePhase(rec)

	if rec.Phase == PhaseExiting {
		return Action{
			Symbol:  rec.Symbol,
			Type:    ActionExit,
			Reason:  "conviction weakened over consecutive readings",
			Urgency: "NORMAL",
		}
	}

	// Dip accumulation: only while conviction is strong.
	if add := dipAdd(rec, obs, cfg, now); add != nil {
		return *add
	}

	return Action{Symbol: rec.Symbol, Type: ActionHold, Reason: string(rec.Phase)}
}

// timeDecay returns the (positive) score decay for one day-equivalent cycle.
// Decay accelerates after the half-life and again inside the final week
// before the catalyst deadline.
func timeDecay(rec *Record, cc store.ConvictionConfig, now time.Time) float64 {
	decay := cc.BaseDecayPerDay

	daysHeld := now.Sub(rec.SetDate).Hours() / 24
	halfLife := float64(cc.HalfLifeDays)
	if daysHeld > halfLife && halfLife > 0 {
		overshoot := (daysHeld - halfLife) / halfLife
		decay *= cc.AcceleratedDecayMul * (1 + overshoot)
	}

	daysLeft := rec.CatalystDeadline.Sub(now).Hours() / 24
	if daysLeft >= 0 && daysLeft < 7 {
		urgency := 1 - daysLeft/7
		decay *= 1 + (cc.DeadlineDecayMult-1)*urgency
	}

	return decay
}

// priceAction rewards movement toward the target and penalises movement
// away, scaling the penalty with drawdown severity.
func priceAction(rec *Record, obs Observation, cc store.ConvictionConfig) (boost, penalty float64) {
	if obs.Price <= 0 || rec.EntryPrice <= 0 {
		return 0, 0
	}
	pnl := obs.Price/rec.EntryPrice - 1

	if pnl > 0 {
		return cc.PriceConfirmBoost, 0
	}

	p := cc.PriceDenyPenalty
	switch {
	case pnl < -0.25:
		p *= 2.0
	case pnl < -0.15:
		p *= 1.5
	}
	return 0, p
}

func volumeSignal(obs Observation, cc store.ConvictionConfig) float64 {
	if obs.RelVolume > 1.5 && obs.DayChangePct > 0 {
		return cc.AccumulationBoost
	}
	return 0
}

func volumePenalty(obs Observation, cc store.ConvictionConfig) float64 {
	if obs.RelVolume > 1.5 && obs.DayChangePct < 0 {
		return cc.DistributionPenalty
	}
	return 0
}

// stormFactor estimates how much of the symbol's down move is systemic:
// 0 when the benchmark is flat or rising, approaching 1 as the benchmark
// falls hard alongside the symbol.
func stormFactor(obs Observation) float64 {
	if obs.BenchChangePct >= 0 || obs.DayChangePct >= 0 {
		return 0
	}
	return math.Min(1, math.Abs(obs.BenchChangePct)/0.02)
}

// advancePhase maps the score bands to phases, with a two-reading hysteresis
// before demoting to EXITING so a single bad cycle cannot dump a thesis.
func advancePhase(rec *Record) {
	s := rec.CurrentScore
	switch {
	case s >= 80:
		rec.Phase = PhaseAccumulating
		rec.WeakReadings = 0
	case s >= 60:
		rec.Phase = PhaseHolding
		rec.WeakReadings = 0
	case s >= 40:
		rec.Phase = PhaseWeakening
		rec.WeakReadings = 0
	default:
		rec.WeakReadings++
		if rec.WeakReadings >= 2 {
			rec.Phase = PhaseExiting
			rec.ExitReason = "two consecutive weak readings"
		} else {
			rec.Phase = PhaseWeakening
		}
	}
}

// dipAdd proposes a small add when a strong conviction dips, rate-limited
// and capped at half the original stake.
func dipAdd(rec *Record, obs Observation, cfg *store.Config, now time.Time) *Action {
	cc := cfg.Conviction
	if rec.Phase != PhaseAccumulating && rec.Phase != PhaseHolding {
		return nil
	}
	if obs.Price <= 0 || rec.EntryPrice <= 0 {
		return nil
	}
	pnl := obs.Price/rec.EntryPrice - 1
	if pnl > -cc.DipAddPct {
		return nil
	}
	if !rec.LastAddDate.IsZero() && now.Sub(rec.LastAddDate).Hours() < float64(cc.MinDaysBetweenAdds)*24 {
		return nil
	}
	maxAdds := rec.OriginalDollars * 0.5
	if rec.AddedDollars >= maxAdds {
		return nil
	}
	dollars := math.Min(defaultAddDollars, maxAdds-rec.AddedDollars)
	return &Action{
		Symbol:  rec.Symbol,
		Type:    ActionAdd,
		Reason:  "dip accumulation",
		Urgency: "NORMAL",
		Dollars: dollars,
	}
}

// EventType is an externally observed one-shot event affecting a thesis.
type EventType string

const (
	EventEarningsBeat        EventType = "EARNINGS_BEAT"
	EventEarningsMiss        EventType = "EARNINGS_MISS"
	EventCatalystConfirmed   EventType = "CATALYST_CONFIRMED"
	EventCatalystProgressing EventType = "CATALYST_PROGRESSING"
	EventCatalystUncertain   EventType = "CATALYST_UNCERTAIN"
	EventCatalystDenied      EventType = "CATALYST_DENIED"
	EventCatalystDelayed     EventType = "CATALYST_DELAYED"
	EventSentiment           EventType = "SENTIMENT"
)

// applyEvent injects a one-shot score delta for an external event.
// sentimentScore is only consulted for EventSentiment (-1..1).
func applyEvent(rec *Record, ev EventType, sentimentScore float64, cc store.ConvictionConfig) {
	if rec.Phase.Terminal() {
		return
	}

	var delta float64
	switch ev {
	case EventEarningsBeat:
		delta = 15
	case EventEarningsMiss:
		delta = -20
	case EventCatalystConfirmed:
		delta = 30
	case EventCatalystProgressing:
		delta = 12
	case EventCatalystUncertain:
		delta = -5
	case EventCatalystDenied:
		delta = -35
		rec.Phase = PhaseExiting
		rec.ExitReason = "catalyst denied"
	case EventCatalystDelayed:
		delta = -10
	case EventSentiment:
		delta = sentimentScore * cc.SentimentWeight
		delta = math.Max(-25, math.Min(25, delta))
	}

	rec.CurrentScore = clampScore(rec.CurrentScore + delta)
	if !rec.Phase.Terminal() && rec.Phase != PhaseExiting {
		advancePhase(rec)
	}
}

// ShouldSkipExit reports whether the symbol is exempt from normal portfolio
// exit rules: the conviction still holds and price is above max pain.
func (r *Record) ShouldSkipExit(price float64) bool {
	if r.Phase.Terminal() || r.Phase == PhaseExiting {
		return false
	}
	return r.CurrentScore >= 60 && price > r.MaxPainPrice
}

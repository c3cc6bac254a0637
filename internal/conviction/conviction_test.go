package conviction

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conviction-trading-bot/internal/store"
)

func testConfig(t *testing.T) *store.Config {
	t.Helper()
	cfg := &store.Config{}
	cfg.Conviction = store.ConvictionConfig{
		BaseScore:           75,
		MaxHoldDays:         90,
		HalfLifeDays:        30,
		BaseDecayPerDay:     0.5,
		AcceleratedDecayMul: 2.5,
		DeadlineDecayMult:   5.0,
		SentimentWeight:     12,
		SentimentEMAAlpha:   0.3,
		AccumulationBoost:   5,
		DistributionPenalty: 8,
		PriceConfirmBoost:   3,
		PriceDenyPenalty:    4,
		StormThreshold:      0.6,
		StormDampening:      0.3,
		AutoCloseScore:      10,
		MaxConcurrent:       3,
		DipAddPct:           0.05,
		MinDaysBetweenAdds:  2,
		StateFile:           filepath.Join(t.TempDir(), "convictions.json"),
	}
	return cfg
}

var testNow = time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

func testRecord() *Record {
	return &Record{
		Symbol:           "SOFI",
		Thesis:           "bank charter rerating",
		CatalystDeadline: testNow.AddDate(0, 2, 0),
		SetDate:          testNow.AddDate(0, 0, -5),
		EntryPrice:       10,
		MaxPainPrice:     7,
		TargetPrice:      15,
		BaseScore:        75,
		CurrentScore:     75,
		Phase:            PhaseHolding,
	}
}

func TestMaxPainAbandonsInAnyActivePhase(t *testing.T) {
	cfg := testConfig(t)
	for _, phase := range []Phase{PhaseAccumulating, PhaseHolding, PhaseWeakening, PhaseExiting} {
		rec := testRecord()
		rec.Phase = phase

		act := update(rec, Observation{Price: 6.5}, cfg, testNow)

		assert.Equal(t, ActionAbandon, act.Type, "phase %s", phase)
		assert.Equal(t, "CRITICAL", act.Urgency, "phase %s", phase)
		assert.Equal(t, PhaseClosed, rec.Phase, "abandon must terminate the record, phase %s", phase)
	}

	// Terminal records stay terminal even below max pain.
	for _, phase := range []Phase{PhaseExpired, PhaseClosed} {
		rec := testRecord()
		rec.Phase = phase

		act := update(rec, Observation{Price: 6.5}, cfg, testNow)

		assert.Equal(t, ActionHold, act.Type, "phase %s", phase)
		assert.Equal(t, phase, rec.Phase, "terminal phase must not change, phase %s", phase)
	}
}

func TestMaxPainAbandonFreesConcurrencySlot(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	m.SetClock(func() time.Time { return testNow })
	ctx := context.Background()

	for _, sym := range []string{"SOFI", "PLTR", "AMD"} {
		_, err := m.Set(ctx, SetParams{Symbol: sym, EntryPrice: 10, MaxPainPrice: 7, CatalystDeadline: testNow.AddDate(0, 1, 0)})
		require.NoError(t, err)
	}

	act, err := m.Update(ctx, "AMD", Observation{Price: 6.5})
	require.NoError(t, err)
	require.Equal(t, ActionAbandon, act.Type)

	// The abandoned record is terminal: later cycles leave it alone instead
	// of re-issuing the abandon.
	act, err = m.Update(ctx, "AMD", Observation{Price: 6.0})
	require.NoError(t, err)
	assert.Equal(t, ActionHold, act.Type)
	assert.Equal(t, PhaseClosed, m.Get("AMD").Phase)

	_, err = m.Set(ctx, SetParams{Symbol: "F", EntryPrice: 10, MaxPainPrice: 7, CatalystDeadline: testNow.AddDate(0, 1, 0)})
	assert.NoError(t, err, "a terminated conviction must free its slot")
}

func TestTerminalPhaseNeverReactivates(t *testing.T) {
	cfg := testConfig(t)
	rec := testRecord()
	rec.Phase = PhaseClosed

	act := update(rec, Observation{Price: 12, DayChangePct: 0.05}, cfg, testNow)

	assert.Equal(t, ActionHold, act.Type)
	assert.Equal(t, PhaseClosed, rec.Phase)
}

func TestDeadlineExpiry(t *testing.T) {
	cfg := testConfig(t)
	rec := testRecord()
	rec.CatalystDeadline = testNow.AddDate(0, 0, -1)

	act := update(rec, Observation{Price: 11}, cfg, testNow)

	assert.Equal(t, ActionExit, act.Type)
	assert.Equal(t, PhaseExpired, rec.Phase)
}

func TestScoreStaysInRange(t *testing.T) {
	cfg := testConfig(t)

	rec := testRecord()
	rec.CurrentScore = 98
	applyEvent(rec, EventCatalystConfirmed, 0, cfg.Conviction)
	assert.LessOrEqual(t, rec.CurrentScore, 100.0)

	rec = testRecord()
	rec.CurrentScore = 12
	applyEvent(rec, EventCatalystDenied, 0, cfg.Conviction)
	assert.GreaterOrEqual(t, rec.CurrentScore, 0.0)
	assert.Equal(t, PhaseExiting, rec.Phase)
}

func TestWeakReadingHysteresis(t *testing.T) {
	cfg := testConfig(t)
	rec := testRecord()
	rec.CurrentScore = 30

	// Price above entry keeps the per-cycle delta small, so the score sits
	// under 40 both cycles.
	obs := Observation{Price: 10.1}

	act := update(rec, obs, cfg, testNow)
	assert.Equal(t, ActionHold, act.Type, "one weak reading must not exit")
	assert.Equal(t, PhaseWeakening, rec.Phase)
	assert.Equal(t, 1, rec.WeakReadings)

	act = update(rec, obs, cfg, testNow)
	assert.Equal(t, ActionExit, act.Type, "second weak reading demotes to exiting")
	assert.Equal(t, PhaseExiting, rec.Phase)
}

func TestAutoCloseBelowFloor(t *testing.T) {
	cfg := testConfig(t)
	rec := testRecord()
	rec.CurrentScore = 11

	// Price below entry adds the deny penalty on top of decay.
	act := update(rec, Observation{Price: 9.5}, cfg, testNow)

	assert.Equal(t, ActionExit, act.Type)
	assert.Equal(t, PhaseClosed, rec.Phase)
}

func TestDipAddProposal(t *testing.T) {
	cfg := testConfig(t)
	rec := testRecord()
	rec.OriginalDollars = 100

	act := update(rec, Observation{Price: 9.3}, cfg, testNow) // 7% below entry

	require.Equal(t, ActionAdd, act.Type)
	assert.Equal(t, 25.0, act.Dollars)
}

func TestDipAddRateLimited(t *testing.T) {
	cfg := testConfig(t)
	rec := testRecord()
	rec.OriginalDollars = 100
	rec.LastAddDate = testNow.AddDate(0, 0, -1) // added yesterday

	act := update(rec, Observation{Price: 9.3}, cfg, testNow)
	assert.Equal(t, ActionHold, act.Type, "adds must respect the spacing rule")
}

func TestDipAddCappedAtHalfOriginal(t *testing.T) {
	cfg := testConfig(t)
	rec := testRecord()
	rec.OriginalDollars = 100
	rec.AddedDollars = 40

	act := update(rec, Observation{Price: 9.3}, cfg, testNow)
	require.Equal(t, ActionAdd, act.Type)
	assert.Equal(t, 10.0, act.Dollars, "remaining headroom under the 50% cap")

	rec.AddedDollars = 50
	rec.LastAddDate = time.Time{}
	act = update(rec, Observation{Price: 9.3}, cfg, testNow)
	assert.Equal(t, ActionHold, act.Type)
}

func TestStormDampeningSoftensPenalties(t *testing.T) {
	cfg := testConfig(t)

	calm := testRecord()
	update(calm, Observation{Price: 9.5, DayChangePct: -0.03, RelVolume: 2.0}, cfg, testNow)

	storm := testRecord()
	update(storm, Observation{Price: 9.5, DayChangePct: -0.03, RelVolume: 2.0, BenchChangePct: -0.02}, cfg, testNow)

	assert.Greater(t, storm.CurrentScore, calm.CurrentScore,
		"a market-wide selloff must hurt the thesis less than an idiosyncratic one")
}

func TestShouldSkipExit(t *testing.T) {
	rec := testRecord()
	rec.CurrentScore = 70
	assert.True(t, rec.ShouldSkipExit(9))

	assert.False(t, rec.ShouldSkipExit(6.5), "below max pain never skips")

	rec.CurrentScore = 55
	assert.False(t, rec.ShouldSkipExit(9), "weak conviction never skips")

	rec.CurrentScore = 70
	rec.Phase = PhaseExiting
	assert.False(t, rec.ShouldSkipExit(9))
}

func TestManagerSetValidation(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	m.SetClock(func() time.Time { return testNow })
	ctx := context.Background()

	_, err = m.Set(ctx, SetParams{Symbol: "SOFI", EntryPrice: 10, MaxPainPrice: 12, CatalystDeadline: testNow.AddDate(0, 1, 0)})
	assert.Error(t, err, "max pain above entry must be rejected")

	_, err = m.Set(ctx, SetParams{Symbol: "SOFI", EntryPrice: 10, MaxPainPrice: 7, CatalystDeadline: testNow.AddDate(0, 0, -1)})
	assert.Error(t, err, "past deadline must be rejected")

	rec, err := m.Set(ctx, SetParams{Symbol: "SOFI", EntryPrice: 10, MaxPainPrice: 7, CatalystDeadline: testNow.AddDate(0, 1, 0)})
	require.NoError(t, err)
	assert.Equal(t, PhaseHolding, rec.Phase)
	assert.Equal(t, 75.0, rec.CurrentScore)
}

func TestManagerMaxConcurrent(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	m.SetClock(func() time.Time { return testNow })
	ctx := context.Background()

	for _, sym := range []string{"SOFI", "PLTR", "AMD"} {
		_, err := m.Set(ctx, SetParams{Symbol: sym, EntryPrice: 10, MaxPainPrice: 7, CatalystDeadline: testNow.AddDate(0, 1, 0)})
		require.NoError(t, err)
	}

	_, err = m.Set(ctx, SetParams{Symbol: "F", EntryPrice: 10, MaxPainPrice: 7, CatalystDeadline: testNow.AddDate(0, 1, 0)})
	assert.Error(t, err, "fourth concurrent conviction must be rejected")

	// Closing one frees a slot.
	require.NoError(t, m.Close(ctx, "AMD", "thesis played out"))
	_, err = m.Set(ctx, SetParams{Symbol: "F", EntryPrice: 10, MaxPainPrice: 7, CatalystDeadline: testNow.AddDate(0, 1, 0)})
	assert.NoError(t, err)
}

func TestManagerStatePersists(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	m1, err := NewManager(cfg)
	require.NoError(t, err)
	m1.SetClock(func() time.Time { return testNow })
	_, err = m1.Set(ctx, SetParams{Symbol: "SOFI", Thesis: "rerating", EntryPrice: 10, MaxPainPrice: 7, CatalystDeadline: testNow.AddDate(0, 1, 0)})
	require.NoError(t, err)

	m2, err := NewManager(cfg)
	require.NoError(t, err)
	rec := m2.Get("SOFI")
	require.NotNil(t, rec)
	assert.Equal(t, "rerating", rec.Thesis)
	assert.Equal(t, PhaseHolding, rec.Phase)
}

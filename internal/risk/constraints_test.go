package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/config"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

var now = time.Date(2024, 2, 5, 15, 0, 0, 0, time.UTC)

func riskCfg() config.RiskConfig {
	cfg := config.MustPreset(config.ProfileModerate)
	cfg.MaxPositionSize = 0.2
	cfg.MaxLeverage = 1.5
	cfg.MaxDailyLoss = 0.05
	cfg.MaxDrawdown = 0.15
	cfg.MaxTradesPerDay = 3
	cfg.CooldownAfterStopDays = 2
	return cfg
}

func entry(symbol string, qty, price float64) types.Order {
	return types.Order{Symbol: symbol, Side: types.OrderBuy, Quantity: qty, RequestedPrice: price, Type: types.OrderMarket}
}

func freshState(t *testing.T) *portfolio.State {
	t.Helper()
	st := portfolio.NewState(100000)
	st.RollDay(now)
	return st
}

// TestValidate_AcceptsSmallEntry passes an order inside every limit
func TestValidate_AcceptsSmallEntry(t *testing.T) {
	eng := NewConstraintEngine(riskCfg(), true)
	st := freshState(t)
	assert.NoError(t, eng.Validate(entry("AAPL", 100, 100), st, now))
	assert.Empty(t, st.Violations)
}

// TestValidate_DailyLoss rejects entries after a 6% intraday loss against a 5% limit
func TestValidate_DailyLoss(t *testing.T) {
	eng := NewConstraintEngine(riskCfg(), false)
	st := freshState(t)
	ex := portfolio.NewExecutor(config.CostModel{})
	_, err := ex.Execute(entry("AAPL", 150, 100), 100, st, now.Add(-time.Hour))
	require.NoError(t, err)
	st.RollDay(now)
	st.DayStartEquity = 100000

	st.MarkToMarket(map[string]float64{"AAPL": 60})
	assert.InDelta(t, -0.06, st.DailyReturn(), 1e-9)
	before := *st.Positions["AAPL"]

	err = eng.Validate(entry("MSFT", 10, 100), st, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, engerrors.ErrConstraintViolated)
	assert.Equal(t, engerrors.KindConstraint, engerrors.KindOf(err))

	var cerr *ConstraintError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.Has(types.RuleMaxDailyLoss))
	assert.Equal(t, before, *st.Positions["AAPL"])
	require.NotEmpty(t, st.Violations)
	assert.Equal(t, types.RuleMaxDailyLoss, st.Violations[len(st.Violations)-1].Rule)
}

// TestValidate_CollectsAllInFixedOrder checks violations are not short-circuited
func TestValidate_CollectsAllInFixedOrder(t *testing.T) {
	eng := NewConstraintEngine(riskCfg(), true)
	st := freshState(t)
	st.DailyTradeCount = 3
	st.LastTradeDate = now
	st.DayStartEquity = 120000
	st.PeakEquity = 130000
	st.LastStopLossExit = now.Add(-24 * time.Hour)

	err := eng.Validate(entry("AAPL", 2000, 100), st, now)
	var cerr *ConstraintError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, types.RuleOrder, cerr.Rules())
	assert.True(t, cerr.DrawdownBreached())
	assert.Len(t, st.Violations, len(types.RuleOrder))
}

// TestValidate_IndividualRules covers each rule in isolation
func TestValidate_IndividualRules(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*portfolio.State)
		order types.Order
		rule  types.Rule
	}{
		{"position size", func(*portfolio.State) {}, entry("AAPL", 300, 100), types.RuleMaxPositionSize},
		{"trades per day", func(s *portfolio.State) { s.DailyTradeCount = 3; s.LastTradeDate = now }, entry("AAPL", 1, 100), types.RuleMaxTradesPerDay},
		{"cooldown", func(s *portfolio.State) { s.LastStopLossExit = now.Add(-36 * time.Hour) }, entry("AAPL", 1, 100), types.RuleCooldownAfterStop},
		{"drawdown", func(s *portfolio.State) { s.PeakEquity = 125000 }, entry("AAPL", 1, 100), types.RuleMaxDrawdown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := freshState(t)
			tt.setup(st)
			err := NewConstraintEngine(riskCfg(), true).Validate(tt.order, st, now)
			var cerr *ConstraintError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, []types.Rule{tt.rule}, cerr.Rules())
		})
	}
}

// TestValidate_Leverage counts existing exposure plus the proposal
func TestValidate_Leverage(t *testing.T) {
	cfg := riskCfg()
	cfg.MaxPositionSize = 1
	cfg.MaxTradesPerDay = 0
	eng := NewConstraintEngine(cfg, false)
	st := freshState(t)
	ex := portfolio.NewExecutor(config.CostModel{})
	_, err := ex.Execute(entry("AAPL", 900, 100), 100, st, now)
	require.NoError(t, err)

	assert.NoError(t, eng.Validate(entry("MSFT", 500, 100), st, now))

	err = eng.Validate(entry("MSFT", 700, 100), st, now)
	var cerr *ConstraintError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []types.Rule{types.RuleMaxLeverage}, cerr.Rules())
}

// TestValidate_CooldownExpires allows entries once the cooldown has elapsed
func TestValidate_CooldownExpires(t *testing.T) {
	st := freshState(t)
	st.LastStopLossExit = now.Add(-49 * time.Hour)
	assert.NoError(t, NewConstraintEngine(riskCfg(), true).Validate(entry("AAPL", 1, 100), st, now))
}

// TestValidate_DrawdownIgnoredInLiveMode skips rule six outside batch mode
func TestValidate_DrawdownIgnoredInLiveMode(t *testing.T) {
	st := freshState(t)
	st.PeakEquity = 200000
	assert.NoError(t, NewConstraintEngine(riskCfg(), false).Validate(entry("AAPL", 1, 100), st, now))
	assert.False(t, NewConstraintEngine(riskCfg(), false).ShouldLiquidate(st))
}

// TestValidate_ClosingOrdersBypass never blocks an order that reduces exposure
func TestValidate_ClosingOrdersBypass(t *testing.T) {
	eng := NewConstraintEngine(riskCfg(), true)
	st := freshState(t)
	ex := portfolio.NewExecutor(config.CostModel{})
	_, err := ex.Execute(entry("AAPL", 100, 100), 100, st, now)
	require.NoError(t, err)
	st.DailyTradeCount = 99
	st.PeakEquity = 1e9

	closing := types.Order{Symbol: "AAPL", Side: types.OrderSell, Quantity: 100, RequestedPrice: 100}
	assert.False(t, IncreasesExposure(closing, st))
	assert.NoError(t, eng.Validate(closing, st, now))
	assert.True(t, eng.ShouldLiquidate(st))
}

// TestValidate_StaleDayIgnoresDailyLoss treats a new calendar day as flat
func TestValidate_StaleDayIgnoresDailyLoss(t *testing.T) {
	st := freshState(t)
	st.DayStartEquity = 200000
	tomorrow := now.Add(24 * time.Hour)
	assert.NoError(t, NewConstraintEngine(riskCfg(), false).Validate(entry("AAPL", 1, 100), st, tomorrow))
}

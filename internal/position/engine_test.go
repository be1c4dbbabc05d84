package position

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybooks/tally/internal/ledger"
	lt "github.com/tallybooks/tally/internal/ledger/ledgertest"
	"github.com/tallybooks/tally/internal/model"
)

func portfolio() *lt.Builder {
	return lt.Standard().
		Account("inv", "assets", "Investments", model.FlagMarketable|model.FlagPlaceholder).
		Account("fund", "inv", "Fund", 0).
		Account("cash", "assets", "Cash", 0).
		Account("divs", "income", "Dividends", model.FlagNeedsCommodityLink|model.FlagPlaceholder).
		Account("fundDiv", "divs", "Fund", 0).
		Account("gains", "income", "Gains", 0).
		Commodity("c1", "FND", "Fund", 0).
		Link("fund", "c1").
		Link("fundDiv", "c1")
}

func TestAverageCost(t *testing.T) {
	b := portfolio().
		Tx("buy", lt.D(2020, 1, 1), lt.S("fund", "1000", "100"), lt.S("cash", "-1000", "0")).
		Tx("sell", lt.D(2020, 6, 1), lt.S("fund", "-480", "-40"), lt.S("cash", "480", "0")).
		Tx("div", lt.D(2020, 7, 1), lt.S("fundDiv", "-30", "0"), lt.S("cash", "30", "0")).
		Price("c1", lt.D(2020, 12, 31), "12")

	pos, ok, err := NewEngine(b.Book).Compute("c1", lt.D(2020, 12, 31))
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, 60, pos.Quantity, 1e-9)
	assert.InDelta(t, 600, pos.Basis, 1e-9)
	assert.Equal(t, lt.D(2020, 1, 1), pos.ZeroCrossing)
	assert.InDelta(t, 365, pos.DaysHeld, 1e-9)
	require.True(t, pos.HasQuote)
	assert.InDelta(t, 720, pos.CurrentValue.Value, 1e-9)
	assert.InDelta(t, 120, pos.CapitalGain.Value, 1e-9)
	assert.InDelta(t, 30, pos.Dividends, 1e-9)
	assert.InDelta(t, 150, pos.TotalGain.Value, 1e-9)
	assert.InDelta(t, 20, pos.AnnualizedReturn.Value, 1e-9)
	assert.InDelta(t, 25, pos.TotalAnnualizedReturn.Value, 1e-9)
}

func TestZeroCrossing(t *testing.T) {
	b := portfolio().
		Tx("t1", lt.D(2019, 1, 1), lt.S("fund", "1000", "100"), lt.S("cash", "-1000", "0")).
		Tx("d1", lt.D(2019, 3, 1), lt.S("fundDiv", "-5", "0"), lt.S("cash", "5", "0")).
		Tx("t2", lt.D(2019, 6, 1), lt.S("fund", "-1100", "-100"), lt.S("cash", "1100", "0")).
		Tx("t3", lt.D(2020, 1, 1), lt.S("fund", "600", "50"), lt.S("cash", "-600", "0")).
		Tx("d2", lt.D(2020, 2, 1), lt.S("fundDiv", "-7", "0"), lt.S("cash", "7", "0")).
		Price("c1", lt.D(2020, 6, 1), "13")

	pos, ok, err := NewEngine(b.Book).Compute("c1", lt.D(2020, 12, 31))
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, 50, pos.Quantity, 1e-9)
	assert.Equal(t, lt.D(2019, 6, 1), pos.ZeroCrossing)
	assert.InDelta(t, 600, pos.Basis, 1e-9)
	assert.InDelta(t, 7, pos.Dividends, 1e-9)
	assert.InDelta(t, 650, pos.CurrentValue.Value, 1e-9)
	assert.Equal(t, lt.D(2020, 6, 1), pos.Quote.At)
}

func TestStockSplitAdjustsPosition(t *testing.T) {
	b := portfolio().
		Tx("buy", lt.D(2020, 1, 15), lt.S("fund", "5000", "50"), lt.S("cash", "-5000", "0")).
		StockSplit("c1", lt.D(2020, 6, 1), 2).
		Price("c1", lt.D(2020, 12, 31), "60")
	e := NewEngine(b.Book)

	pos, ok, err := e.Compute("c1", lt.D(2020, 12, 31))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 100, pos.Quantity, 1e-9)
	assert.InDelta(t, 5000, pos.Basis, 1e-9)
	assert.InDelta(t, 6000, pos.CurrentValue.Value, 1e-9)

	pos, ok, err = e.Compute("c1", lt.D(2020, 3, 1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 50, pos.Quantity, 1e-9)
	assert.False(t, pos.HasQuote)
}

func TestTransferSplitsIgnored(t *testing.T) {
	b := portfolio().
		Account("fund2", "inv", "Fund at other broker", 0).
		Link("fund2", "c1").
		Tx("buy", lt.D(2020, 1, 1), lt.S("fund", "1000", "100"), lt.S("cash", "-1000", "0")).
		Tx("move", lt.D(2020, 2, 1),
			lt.Transfer(lt.S("fund", "-1000", "-100")),
			lt.Transfer(lt.S("fund2", "1000", "100")))

	pos, ok, err := NewEngine(b.Book).Compute("c1", lt.D(2020, 12, 31))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 100, pos.Quantity, 1e-9)
	assert.InDelta(t, 1000, pos.Basis, 1e-9)
}

func TestNoQuote(t *testing.T) {
	b := portfolio().
		Tx("buy", lt.D(2020, 1, 1), lt.S("fund", "1000", "100"), lt.S("cash", "-1000", "0")).
		Price("c1", lt.D(2021, 1, 1), "12")

	pos, ok, err := NewEngine(b.Book).Compute("c1", lt.D(2020, 12, 31))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 100, pos.Quantity, 1e-9)
	assert.False(t, pos.HasQuote)
	assert.False(t, pos.CurrentValue.Valid)
	assert.False(t, pos.CapitalGain.Valid)
	assert.False(t, pos.TotalGain.Valid)
	assert.False(t, pos.AnnualizedReturn.Valid)
	assert.False(t, pos.TotalAnnualizedReturn.Valid)
}

func TestZeroBasisHasNoReturn(t *testing.T) {
	b := portfolio().
		Tx("gift", lt.D(2020, 1, 1), lt.S("fund", "0", "10"), lt.S("gains", "0", "0")).
		Price("c1", lt.D(2020, 12, 31), "5")

	pos, ok, err := NewEngine(b.Book).Compute("c1", lt.D(2020, 12, 31))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0, pos.Basis, 1e-12)
	assert.True(t, pos.CurrentValue.Valid)
	assert.InDelta(t, 50, pos.CapitalGain.Value, 1e-9)
	assert.False(t, pos.AnnualizedReturn.Valid)
	assert.False(t, pos.TotalAnnualizedReturn.Valid)
}

func TestClosedPosition(t *testing.T) {
	b := portfolio().
		Tx("buy", lt.D(2020, 1, 1), lt.S("fund", "1000", "100"), lt.S("cash", "-1000", "0")).
		Tx("sell", lt.D(2020, 6, 1), lt.S("fund", "-1200", "-100"), lt.S("cash", "1200", "0"))
	e := NewEngine(b.Book)

	_, ok, err := e.Compute("c1", lt.D(2020, 12, 31))
	require.NoError(t, err)
	assert.False(t, ok)

	positions, err := e.OpenPositions(lt.D(2020, 12, 31))
	require.NoError(t, err)
	assert.Empty(t, positions)

	positions, err = e.OpenPositions(lt.D(2020, 3, 1))
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "FND", positions[0].Symbol)
}

func TestSmallResidualPosition(t *testing.T) {
	// What is left is under the crossing tolerance but still an open position.
	b := portfolio().
		Tx("buy", lt.D(2020, 1, 1), lt.S("fund", "1000", "100"), lt.S("cash", "-1000", "0")).
		Tx("sell", lt.D(2020, 6, 1), lt.S("fund", "-1100", "-99.95"), lt.S("cash", "1100", "0"))

	pos, ok, err := NewEngine(b.Book).Compute("c1", lt.D(2020, 12, 31))
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, 0.05, pos.Quantity, 1e-9)
	assert.Equal(t, lt.D(2020, 1, 1), pos.ZeroCrossing)
	assert.InDelta(t, 0.5, pos.Basis, 1e-9)
}

func TestClosingLegOnFlatBalance(t *testing.T) {
	// The window opens with a sale against the final direction; with nothing
	// held yet it is booked at its value instead of dividing by zero.
	b := portfolio().
		Tx("short", lt.D(2020, 1, 1), lt.S("fund", "-100", "-10"), lt.S("cash", "100", "0")).
		Tx("buy", lt.D(2020, 2, 1), lt.S("fund", "600", "60"), lt.S("cash", "-600", "0")).
		Price("c1", lt.D(2020, 12, 31), "12")

	pos, ok, err := NewEngine(b.Book).Compute("c1", lt.D(2020, 12, 31))
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, 50, pos.Quantity, 1e-9)
	assert.Equal(t, lt.D(2020, 1, 1), pos.ZeroCrossing)
	assert.InDelta(t, 500, pos.Basis, 1e-9)
	require.True(t, pos.CapitalGain.Valid)
	assert.InDelta(t, 100, pos.CapitalGain.Value, 1e-9)
	assert.True(t, pos.AnnualizedReturn.Valid)
}

func TestUnknownCommodity(t *testing.T) {
	_, _, err := NewEngine(portfolio().Book).Compute("nope", lt.D(2020, 1, 1))
	assert.True(t, ledger.IsViolation(err))
}

func TestLatestQuote(t *testing.T) {
	prices := []model.Price{
		{Timestamp: lt.D(2020, 1, 1), Value: decimal.RequireFromString("10")},
		{Timestamp: lt.D(2020, 2, 1), Value: decimal.RequireFromString("11")},
		{Timestamp: lt.D(2020, 2, 1), Value: decimal.RequireFromString("13")},
		{Timestamp: lt.D(2020, 3, 1), Value: decimal.RequireFromString("99")},
	}

	q, ok := LatestQuote(prices, lt.D(2020, 2, 15))
	require.True(t, ok)
	assert.Equal(t, "12", q.Price.String())
	assert.Equal(t, lt.D(2020, 2, 1), q.At)

	_, ok = LatestQuote(prices, lt.D(2019, 12, 31))
	assert.False(t, ok)
}

func TestAnnualizedReturn(t *testing.T) {
	assert.False(t, AnnualizedReturn(0, 100, 365).Valid)
	assert.False(t, AnnualizedReturn(100, 110, 0).Valid)
	assert.False(t, AnnualizedReturn(100, -10, 200).Valid)

	r := AnnualizedReturn(100, 121, 730)
	require.True(t, r.Valid)
	assert.InDelta(t, 10, r.Value, 1e-9)
}

package verify

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybooks/tally/internal/ledger"
	lt "github.com/tallybooks/tally/internal/ledger/ledgertest"
	"github.com/tallybooks/tally/internal/model"
)

// skeleton adds the accounts Standard leaves out so the root check is quiet.
func skeleton() *lt.Builder {
	return lt.Standard().
		Account("unspecified", lt.RootID, "Unspecified", model.FlagNoChildren|model.FlagPermanent|model.FlagHidden)
}

func seqIDs() Option {
	n := 0
	return WithIDs(func() string {
		n++
		return fmt.Sprintf("new%d", n)
	})
}

func run(t *testing.T, b *lt.Builder) Report {
	t.Helper()
	r, err := New(b.Book, nil, seqIDs()).Run()
	require.NoError(t, err)
	return r
}

func TestCleanBook(t *testing.T) {
	b := skeleton().
		Account("checking", "assets", "Checking", 0).
		Account("food", "expenses", "Food", 0).
		Tx("t1", lt.D(2020, 1, 1), lt.S("checking", "-10", "0"), lt.S("food", "10", "0"))

	r := run(t, b)
	assert.True(t, r.Clean(), "%v", r.Warnings)
	assert.Empty(t, b.Book.Changes())
}

func TestRootSkeletonRepair(t *testing.T) {
	b := lt.New().
		Account("assets", lt.RootID, "Assets", model.FlagAsset).
		Account("income", lt.RootID, "Income", model.FlagIncome|model.FlagPlaceholder|model.FlagPermanent)

	r := run(t, b)
	found := r.Of(KindRootSkeleton)
	// Assets flags fixed; Liabilities, Expenses, Equity, Unspecified created.
	require.Len(t, found, 5)
	for _, w := range found {
		assert.True(t, w.Repaired)
	}

	assets, err := b.Book.Account("assets")
	require.NoError(t, err)
	assert.Equal(t, model.FlagAsset|model.FlagPlaceholder|model.FlagPermanent, assets.Flags)

	names := map[string]model.AccountFlags{}
	for _, a := range b.Book.Children(lt.RootID) {
		names[a.Name] = a.Flags
	}
	assert.Equal(t, model.FlagNoChildren|model.FlagPermanent|model.FlagHidden, names["Equity"])
	assert.Equal(t, model.FlagLiability|model.FlagPlaceholder|model.FlagPermanent, names["Liabilities"])
	assert.Contains(t, names, "Unspecified")
}

func TestMissingRootIsFatal(t *testing.T) {
	book := ledger.NewBook("nowhere")
	_, err := New(book, nil).Run()
	require.Error(t, err)
	assert.True(t, ledger.IsViolation(err))
}

func TestMarketableLinkRepair(t *testing.T) {
	b := skeleton().
		Account("inv", "assets", "Investments", model.FlagMarketable|model.FlagPlaceholder).
		Account("byname", "inv", "Index Fund", 0).
		Account("fresh", "inv", "Bond Fund", 0).
		Account("dangling", "inv", "Gold", 0).
		Account("renamed", "inv", "Tech Fund", 0).
		Commodity("idx", "IDX", "Index Fund", 0).
		Commodity("tech", "TCH", "Technology Fund", 0).
		Link("dangling", "gone").
		Link("renamed", "tech")

	r := run(t, b)

	byname, _ := b.Book.Account("byname")
	assert.Equal(t, "idx", byname.CommodityID)
	require.Len(t, r.Of(KindCommodityLinked), 1)

	fresh, _ := b.Book.Account("fresh")
	require.NotEmpty(t, fresh.CommodityID)
	cm, err := b.Book.Commodity(fresh.CommodityID)
	require.NoError(t, err)
	assert.Equal(t, "Bond Fund", cm.Name)
	assert.Empty(t, cm.Symbol)

	dangling, _ := b.Book.Account("dangling")
	assert.NotEqual(t, "gone", dangling.CommodityID)
	_, err = b.Book.Commodity(dangling.CommodityID)
	assert.NoError(t, err)
	assert.Len(t, r.Of(KindCommodityCreated), 2)

	mismatch := r.Of(KindNameMismatch)
	require.Len(t, mismatch, 1)
	assert.Equal(t, "renamed", mismatch[0].Subject)
	assert.False(t, mismatch[0].Repaired)
	assert.Equal(t, []string{":Assets:Investments:Tech Fund"}, mismatch[0].Paths)
}

func TestMoneyMarketEqualized(t *testing.T) {
	b := skeleton().
		Account("inv", "assets", "Investments", model.FlagMarketable|model.FlagPlaceholder).
		Account("mm", "inv", "Sweep", 0).
		Account("cash", "assets", "Cash", 0).
		Commodity("c1", "SWP", "Sweep", model.CommodityMoneyMarket).
		Link("mm", "c1").
		Tx("t1", lt.D(2020, 1, 1), lt.S("mm", "250.00", "249"), lt.S("cash", "-250.00", "0")).
		Tx("t2", lt.D(2020, 2, 1), lt.S("mm", "10", "10"), lt.S("cash", "-10", "0"))

	r := run(t, b)
	fixed := r.Of(KindMoneyMarket)
	require.Len(t, fixed, 1)
	assert.Equal(t, "t1/0", fixed[0].Subject)

	s, err := b.Book.Split("t1/0")
	require.NoError(t, err)
	assert.True(t, s.Quantity.Equal(decimal.RequireFromString("250")))
}

func TestQuantitiesZeroedAndLinksCleared(t *testing.T) {
	b := skeleton().
		Account("cash", "assets", "Cash", 0).
		Account("food", "expenses", "Food", 0).
		Commodity("c1", "X", "Cash", 0).
		Link("cash", "c1").
		Link("food", "c1").
		Tx("t1", lt.D(2020, 1, 1), lt.S("cash", "-10", "3"), lt.S("food", "10", "2"))

	r := run(t, b)
	assert.Len(t, r.Of(KindCommodityCleared), 2)
	assert.Len(t, r.Of(KindQuantityZeroed), 2)

	for _, id := range []string{"t1/0", "t1/1"} {
		s, err := b.Book.Split(id)
		require.NoError(t, err)
		assert.True(t, s.Quantity.IsZero(), id)
	}
	cash, _ := b.Book.Account("cash")
	assert.Empty(t, cash.CommodityID)
}

func TestOwnMarketableFlagDescribesChildren(t *testing.T) {
	b := skeleton().
		Account("brk", "assets", "Brokerage", model.FlagMarketable).
		Account("fund", "brk", "Fund", 0).
		Account("checking", "assets", "Checking", 0).
		Commodity("c1", "FND", "Fund", 0).
		Tx("t1", lt.D(2020, 1, 1), lt.S("brk", "-50", "5"), lt.S("checking", "50", "0"))

	r := run(t, b)

	brk, err := b.Book.Account("brk")
	require.NoError(t, err)
	assert.Empty(t, brk.CommodityID)
	s, err := b.Book.Split("t1/0")
	require.NoError(t, err)
	assert.True(t, s.Quantity.IsZero())
	assert.Len(t, r.Of(KindQuantityZeroed), 1)
	assert.Empty(t, r.Of(KindCommodityCreated))

	// The fund below inherits marketable and is linked by name.
	fund, err := b.Book.Account("fund")
	require.NoError(t, err)
	assert.Equal(t, "c1", fund.CommodityID)
	assert.Len(t, r.Of(KindCommodityLinked), 1)
}

func TestNeedsCommodityLink(t *testing.T) {
	b := skeleton().
		Account("divs", "income", "Dividends", model.FlagNeedsCommodityLink|model.FlagPlaceholder).
		Account("fund", "divs", "Fund", 0).
		Account("weird", "expenses", "Weird", model.FlagNeedsCommodityLink|model.FlagPlaceholder).
		Account("child", "weird", "Child", 0).
		Commodity("c1", "FND", "Fund", 0)

	r := run(t, b)
	fund, _ := b.Book.Account("fund")
	assert.Equal(t, "c1", fund.CommodityID)

	anomalies := r.Of(KindAnomaly)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "child", anomalies[0].Subject)
}

func TestMarketableOutsideAssets(t *testing.T) {
	b := skeleton().
		Account("odd", "liabilities", "Odd", model.FlagMarketable|model.FlagPlaceholder).
		Account("loan", "odd", "Loan", 0)

	r := run(t, b)
	anomalies := r.Of(KindAnomaly)
	require.Len(t, anomalies, 1)
	assert.Equal(t, []string{":Liabilities:Odd:Loan"}, anomalies[0].Paths)
}

func TestPlaceholderAndNoChildren(t *testing.T) {
	b := skeleton().
		Account("checking", "assets", "Checking", 0).
		Account("sub", "equity", "Opening", 0).
		Tx("t1", lt.D(2020, 1, 1), lt.S("assets", "5", "0"), lt.S("checking", "-5", "0"))

	r := run(t, b)
	ph := r.Of(KindPlaceholderSplits)
	require.Len(t, ph, 1)
	assert.Equal(t, "assets", ph[0].Subject)
	assert.False(t, ph[0].Repaired)

	nc := r.Of(KindNoChildren)
	require.Len(t, nc, 1)
	assert.Equal(t, "equity", nc[0].Subject)
}

func TestOrphansAndEmptyTransactions(t *testing.T) {
	b := skeleton().
		Account("checking", "assets", "Checking", 0).
		Account("food", "expenses", "Food", 0).
		Tx("t1", lt.D(2020, 1, 1), lt.S("checking", "-5", "0"), lt.S("food", "5", "0")).
		Tx("empty", lt.D(2020, 1, 2)).
		Split(model.Split{ID: "stray", TransactionID: "gone", AccountID: "food", Value: decimal.NewFromInt(3)}).
		Tx("t2", lt.D(2020, 1, 3), lt.S("checking", "-5", "0"), lt.S("ghost", "5", "0"))

	r := run(t, b)

	orphanSplits := r.Of(KindOrphanSplit)
	require.Len(t, orphanSplits, 1)
	assert.Equal(t, "stray", orphanSplits[0].Subject)
	_, err := b.Book.Split("stray")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	empty := r.Of(KindEmptyTransaction)
	require.Len(t, empty, 1)
	_, err = b.Book.Transaction("empty")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	missing := r.Of(KindMissingAccount)
	require.Len(t, missing, 1)
	assert.Equal(t, "t2", missing[0].Subject)
	assert.Contains(t, missing[0].Detail, "ghost")
}

func TestUnbalancedReported(t *testing.T) {
	b := skeleton().
		Account("checking", "assets", "Checking", 0).
		Account("food", "expenses", "Food", 0).
		Account("fuel", "expenses", "Fuel", 0).
		Tx("ok", lt.D(2020, 1, 1), lt.S("checking", "-10.005", "0"), lt.S("food", "10", "0")).
		Tx("bad", lt.D(2020, 1, 2), lt.S("checking", "-10", "0"), lt.S("food", "5", "0"), lt.S("fuel", "4", "0"))

	r := run(t, b)
	unbalanced := r.Of(KindUnbalanced)
	require.Len(t, unbalanced, 1)
	w := unbalanced[0]
	assert.Equal(t, "bad", w.Subject)
	assert.False(t, w.Repaired)
	assert.Equal(t, []string{":Assets:Checking", ":Expenses:Food", ":Expenses:Fuel"}, w.Paths)
	assert.Contains(t, w.Detail, "-1")
}

func TestDuplicateSymbols(t *testing.T) {
	b := skeleton().
		Commodity("a", "VTI", "Total Market", 0).
		Commodity("b", "VTI", "Total Market Copy", 0).
		Commodity("c", "", "Auto One", 0).
		Commodity("d", "", "Auto Two", 0)

	r := run(t, b)
	dups := r.Of(KindDuplicateSymbol)
	require.Len(t, dups, 1)
	assert.Equal(t, "VTI", dups[0].Subject)
	assert.Contains(t, dups[0].Detail, "a, b")
}

func TestOrphanAccountsReparented(t *testing.T) {
	b := skeleton().
		Account("lost", "", "Checking", 0).
		Account("stranded", "nowhere", "Savings", 0).
		Account("under", "lost", "Sub", 0)

	r := run(t, b)
	orphans := r.Of(KindOrphanAccount)
	require.Len(t, orphans, 2)

	lost, _ := b.Book.Account("lost")
	assert.Equal(t, lt.RootID, lost.ParentID)
	assert.Equal(t, "Checking.lost", lost.Name)

	stranded, _ := b.Book.Account("stranded")
	assert.Equal(t, lt.RootID, stranded.ParentID)
	assert.Equal(t, "Savings.stranded", stranded.Name)
	assert.Equal(t, []string{":Savings.stranded"}, orphans[1].Paths)

	under, _ := b.Book.Account("under")
	assert.Equal(t, "lost", under.ParentID)
	assert.Empty(t, r.Of(KindUnreachable))
}

func TestParentCycleReported(t *testing.T) {
	b := skeleton().
		Account("x", "y", "X", 0).
		Account("y", "x", "Y", 0)

	r := run(t, b)
	assert.Len(t, r.Of(KindUnreachable), 2)
}

func TestBalancedAfterRepair(t *testing.T) {
	b := skeleton().
		Account("inv", "assets", "Investments", model.FlagMarketable|model.FlagPlaceholder).
		Account("fund", "inv", "Fund", 0).
		Account("cash", "assets", "Cash", 0).
		Tx("t1", lt.D(2020, 1, 1), lt.S("fund", "100", "10"), lt.S("cash", "-100", "7")).
		Tx("empty", lt.D(2020, 1, 2)).
		Split(model.Split{ID: "stray", TransactionID: "gone", AccountID: "cash", Value: decimal.NewFromInt(3)})

	run(t, b)
	for _, tx := range b.Book.Transactions() {
		sum := decimal.Zero
		for _, s := range b.Book.TransactionSplits(tx.ID) {
			sum = sum.Add(s.Value)
		}
		assert.True(t, sum.Abs().LessThanOrEqual(epsilon), tx.ID)
	}

	// A second pass has nothing left to do.
	b.Book.ResetChanges()
	again := run(t, b)
	assert.True(t, again.Clean(), "%v", again.Warnings)
	assert.Empty(t, b.Book.Changes())
}

func TestChangesRecorded(t *testing.T) {
	b := skeleton().
		Account("cash", "assets", "Cash", 0).
		Account("food", "expenses", "Food", 0).
		Tx("t1", lt.D(2020, 1, 1), lt.S("cash", "-10", "3"), lt.S("food", "10", "0"))

	run(t, b)
	changes := b.Book.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, ledger.OpSetSplitQuantity, changes[0].Op)
	assert.Equal(t, "t1/0", changes[0].ID)
}

func TestReportHelpers(t *testing.T) {
	r := Report{Warnings: []Warning{
		{Kind: KindOrphanSplit, Repaired: true, Subject: "s1", Detail: "deleted"},
		{Kind: KindUnbalanced, Subject: "t1", Detail: "off", Paths: []string{":A", ":B"}},
	}}
	assert.Equal(t, 1, r.Repaired())
	assert.Len(t, r.Outstanding(), 1)
	assert.False(t, r.Clean())
	assert.Equal(t, "[needs attention] unbalanced-transaction t1: off (:A, :B)", r.Warnings[1].String())
	assert.Equal(t, "[repaired] orphan-split s1: deleted", r.Warnings[0].String())
	assert.Len(t, Kinds(), 17)
}

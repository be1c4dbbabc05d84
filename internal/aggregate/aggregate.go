// Package aggregate rolls account values up the account tree for balance
// sheets and income statements.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallybooks/tally/internal/ledger"
	"github.com/tallybooks/tally/internal/model"
	"github.com/tallybooks/tally/internal/position"
	"github.com/tallybooks/tally/internal/splitfactor"
)

// inheritable are the flags a node passes down to its children.
const inheritable = model.FlagMarketable | model.FlagAsset | model.FlagLiability |
	model.FlagIncome | model.FlagExpense | model.FlagTaxRelated | model.FlagNeedsCommodityLink

// Book is the read access the aggregator needs.
type Book interface {
	RootID() string
	Account(id string) (model.Account, error)
	Children(id string) []model.Account
	Postings(accountID string) []model.Posting
	StockSplits(commodityID string) []model.StockSplit
	Prices(commodityID string) []model.Price
}

// Window is the reporting period. Balances are taken as of End; income and
// expense flows are summed over [Begin, End]. Both bounds are civil dates.
type Window struct {
	Begin time.Time
	End   time.Time
}

// Node is one account in an aggregated tree.
type Node struct {
	ID       string
	Name     string
	Flags    model.AccountFlags // own flags plus those inherited from the parent
	Own      decimal.Decimal
	Value    decimal.Decimal // Own plus every descendant
	Depth    int
	Children []int // indexes into Tree.Nodes, in report order
}

// Tree is an arena of nodes; Nodes[0] is the root.
type Tree struct {
	Nodes []Node
}

// Aggregator builds value trees from a book.
type Aggregator struct {
	book    Book
	factors *splitfactor.Resolver
}

// New returns an Aggregator reading from book.
func New(book Book) *Aggregator {
	return &Aggregator{book: book, factors: splitfactor.New(book)}
}

// Aggregate builds the tree under the root and computes every node's value
// for the window. The result depends only on the book's contents and the
// window.
func (a *Aggregator) Aggregate(w Window) (*Tree, error) {
	root, err := a.book.Account(a.book.RootID())
	if err != nil {
		return nil, ledger.Violation("aggregate", err, "looking up root")
	}
	t := &Tree{}
	t.Nodes = append(t.Nodes, Node{ID: root.ID, Name: root.Name, Flags: root.Flags})
	if err := a.build(t, 0, model.StartOfDay(w.Begin), model.EndOfDay(w.End)); err != nil {
		return nil, err
	}
	t.rollup(0)
	return t, nil
}

// build appends the children of node idx, valuing each one according to
// the parent's flags, then recurses.
func (a *Aggregator) build(t *Tree, idx int, begin, end time.Time) error {
	if t.Nodes[idx].Depth > 256 {
		return ledger.Violation("aggregate", nil, "account tree under %s is too deep", t.Nodes[idx].ID)
	}
	parentFlags := t.Nodes[idx].Flags
	for _, child := range a.book.Children(t.Nodes[idx].ID) {
		own, err := a.ownValue(child, parentFlags, begin, end)
		if err != nil {
			return err
		}
		t.Nodes = append(t.Nodes, Node{
			ID:    child.ID,
			Name:  child.Name,
			Flags: child.Flags | parentFlags&inheritable,
			Own:   own,
			Depth: t.Nodes[idx].Depth + 1,
		})
		ci := len(t.Nodes) - 1
		t.Nodes[idx].Children = append(t.Nodes[idx].Children, ci)
		if err := a.build(t, ci, begin, end); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) ownValue(acct model.Account, parentFlags model.AccountFlags, begin, end time.Time) (decimal.Decimal, error) {
	if acct.IsPlaceholder() {
		return decimal.Zero, nil
	}
	switch {
	case parentFlags.Has(model.FlagAsset) && parentFlags.Has(model.FlagMarketable):
		return a.marketValue(acct, end)
	case parentFlags.Has(model.FlagAsset), parentFlags.Has(model.FlagLiability):
		return a.sum(acct.ID, time.Time{}, end), nil
	case parentFlags.Any(model.FlagIncome | model.FlagExpense):
		return a.sum(acct.ID, begin, end), nil
	default:
		return decimal.Zero, nil
	}
}

// marketValue is the split-adjusted quantity held at end times the latest
// quote. Without a quote the account is carried at cost.
func (a *Aggregator) marketValue(acct model.Account, end time.Time) (decimal.Decimal, error) {
	var qty float64
	cost := decimal.Zero
	for _, p := range a.book.Postings(acct.ID) {
		if p.PostDate.After(end) {
			continue
		}
		cost = cost.Add(p.Value)
		if acct.CommodityID == "" {
			qty += p.Quantity.InexactFloat64()
			continue
		}
		q, err := a.factors.AdjustQuantity(acct.CommodityID, p.Quantity, p.PostDate, end)
		if err != nil {
			return decimal.Zero, err
		}
		qty += q
	}
	if qty < model.Epsilon {
		return decimal.Zero, nil
	}
	quote, ok := position.LatestQuote(a.book.Prices(acct.CommodityID), end)
	if !ok {
		return cost, nil
	}
	return decimal.NewFromFloat(qty).Mul(quote.Price).Round(2), nil
}

func (a *Aggregator) sum(accountID string, begin, end time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, p := range a.book.Postings(accountID) {
		if p.PostDate.After(end) || (!begin.IsZero() && p.PostDate.Before(begin)) {
			continue
		}
		total = total.Add(p.Value)
	}
	return total
}

// rollup sums children into each node and orders them: largest first under
// asset and expense nodes, smallest first elsewhere. Ties go by name, then id.
func (t *Tree) rollup(idx int) decimal.Decimal {
	n := &t.Nodes[idx]
	total := n.Own
	for _, ci := range n.Children {
		total = total.Add(t.rollup(ci))
	}
	n = &t.Nodes[idx]
	n.Value = total

	descending := n.Flags.Any(model.FlagAsset | model.FlagExpense)
	kids := n.Children
	sort.SliceStable(kids, func(i, j int) bool {
		a, b := t.Nodes[kids[i]], t.Nodes[kids[j]]
		if c := a.Value.Cmp(b.Value); c != 0 {
			if descending {
				return c > 0
			}
			return c < 0
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return total
}

// Root returns the root node.
func (t *Tree) Root() *Node { return &t.Nodes[0] }

// Section returns the top-level node carrying flag, such as the Assets
// section for model.FlagAsset.
func (t *Tree) Section(flag model.AccountFlags) (*Node, error) {
	for _, ci := range t.Root().Children {
		if t.Nodes[ci].Flags.Has(flag) {
			return &t.Nodes[ci], nil
		}
	}
	return nil, ledger.Violation("section", nil, "no top-level account with flag %s", flag)
}

// NetWorth is the assets section plus the liabilities section.
func (t *Tree) NetWorth() (decimal.Decimal, error) {
	assets, err := t.Section(model.FlagAsset)
	if err != nil {
		return decimal.Zero, err
	}
	liabilities, err := t.Section(model.FlagLiability)
	if err != nil {
		return decimal.Zero, err
	}
	return assets.Value.Add(liabilities.Value), nil
}

// Walk visits n and its descendants depth-first in report order, down to
// maxDepth levels below n (0 means unlimited). Nodes whose value rounds to
// zero are skipped with their subtrees.
func (t *Tree) Walk(n *Node, maxDepth int, visit func(n *Node, level int)) {
	t.walk(n, 0, maxDepth, visit)
}

func (t *Tree) walk(n *Node, level, maxDepth int, visit func(*Node, int)) {
	if math.Abs(n.Value.InexactFloat64()) <= model.Epsilon && level > 0 {
		return
	}
	visit(n, level)
	if maxDepth > 0 && level >= maxDepth {
		return
	}
	for _, ci := range n.Children {
		t.walk(&t.Nodes[ci], level+1, maxDepth, visit)
	}
}

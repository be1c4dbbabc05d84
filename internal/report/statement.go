// Package report assembles and renders the balance sheet, income statement
// and investment positions for a reporting window.
package report

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tallybooks/tally/internal/aggregate"
	"github.com/tallybooks/tally/internal/ledger"
	"github.com/tallybooks/tally/internal/log"
	"github.com/tallybooks/tally/internal/model"
	"github.com/tallybooks/tally/internal/position"
)

// Statement is everything the renderers need for one window.
type Statement struct {
	Window    aggregate.Window
	Tree      *aggregate.Tree
	NetWorth  decimal.Decimal
	NetIncome decimal.Decimal
	Positions []position.Position
}

type positionsResult struct {
	positions []position.Position
	err       error
}

// Build computes a Statement from book. Positions are computed on a separate
// goroutine while the account tree is aggregated on the caller's; both only
// read, and the book is held shared until both are finished.
func Build(ctx context.Context, book *ledger.Book, w aggregate.Window) (*Statement, error) {
	lg := log.FromContext(ctx).WithName("report")

	release := book.Shared()
	defer release()

	done := make(chan positionsResult, 1)
	go func() {
		ps, err := position.NewEngine(book).OpenPositions(w.End)
		done <- positionsResult{positions: ps, err: err}
	}()

	tree, treeErr := aggregate.New(book).Aggregate(w)
	res := <-done

	if treeErr != nil {
		return nil, fmt.Errorf("aggregating accounts: %w", treeErr)
	}
	if res.err != nil {
		return nil, fmt.Errorf("computing positions: %w", res.err)
	}

	st := &Statement{Window: w, Tree: tree, Positions: res.positions}
	var err error
	if st.NetWorth, err = tree.NetWorth(); err != nil {
		return nil, err
	}
	if st.NetIncome, err = netIncome(tree); err != nil {
		return nil, err
	}
	lg.Debug("statement built",
		"accounts", len(tree.Nodes),
		"positions", len(st.Positions),
		"net_worth", st.NetWorth.StringFixed(2))
	return st, nil
}

// netIncome is income less expenses. Income is recorded as credits, so both
// sections are negated together.
func netIncome(t *aggregate.Tree) (decimal.Decimal, error) {
	income, err := t.Section(model.FlagIncome)
	if err != nil {
		return decimal.Zero, err
	}
	expenses, err := t.Section(model.FlagExpense)
	if err != nil {
		return decimal.Zero, err
	}
	return income.Value.Add(expenses.Value).Neg(), nil
}

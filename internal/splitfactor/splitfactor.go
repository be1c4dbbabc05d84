// Package splitfactor restates historical share quantities in post-split units.
package splitfactor

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallybooks/tally/internal/ledger"
	"github.com/tallybooks/tally/internal/model"
)

// Events is the read access the resolver needs to compute factors.
type Events interface {
	StockSplits(commodityID string) []model.StockSplit
}

// Book adds the lookups needed to resolve a split by id.
type Book interface {
	Events
	Split(id string) (model.Split, error)
	Account(id string) (model.Account, error)
	Transaction(id string) (model.Transaction, error)
}

// Resolver computes cumulative split factors.
type Resolver struct {
	events Events
}

// New returns a Resolver over the given events.
func New(events Events) *Resolver {
	return &Resolver{events: events}
}

// CumulativeFactor is the product of the factors of every split event of the
// commodity dated strictly after postDate and, unless asOf is zero, on or
// before asOf. Dates compare at day granularity. The product is computed as
// exp(sum(log f)).
func (r *Resolver) CumulativeFactor(commodityID string, postDate, asOf time.Time) (float64, error) {
	after := model.StartOfDay(postDate)
	var sum float64
	for _, ev := range r.events.StockSplits(commodityID) {
		day := model.StartOfDay(ev.Date)
		if !day.After(after) {
			continue
		}
		if !asOf.IsZero() && day.After(asOf) {
			continue
		}
		if ev.Factor <= 0 || math.IsNaN(ev.Factor) || math.IsInf(ev.Factor, 0) {
			return 0, ledger.Violation("cumulativeFactor", nil, "stock split %s has factor %v", ev.ID, ev.Factor)
		}
		sum += math.Log(ev.Factor)
	}
	return math.Exp(sum), nil
}

// AdjustQuantity restates qty, recorded on postDate, in units as of asOf.
func (r *Resolver) AdjustQuantity(commodityID string, qty decimal.Decimal, postDate, asOf time.Time) (float64, error) {
	f, err := r.CumulativeFactor(commodityID, postDate, asOf)
	if err != nil {
		return 0, err
	}
	return qty.InexactFloat64() * f, nil
}

// SplitResolver resolves quantities of splits by id.
type SplitResolver struct {
	*Resolver
	book Book
}

// NewSplitResolver returns a resolver that can look splits up in book.
func NewSplitResolver(book Book) *SplitResolver {
	return &SplitResolver{Resolver: New(book), book: book}
}

// SplitAdjustedQuantity restates a split's quantity using the split events of
// its account's commodity that follow the transaction's post date. Splits on
// accounts without a commodity are returned unchanged.
func (r *SplitResolver) SplitAdjustedQuantity(splitID string, asOf time.Time) (float64, error) {
	s, err := r.book.Split(splitID)
	if err != nil {
		return 0, ledger.Violation("splitAdjustedQuantity", err, "looking up split")
	}
	a, err := r.book.Account(s.AccountID)
	if err != nil {
		return 0, ledger.Violation("splitAdjustedQuantity", err, "split %s", splitID)
	}
	tx, err := r.book.Transaction(s.TransactionID)
	if err != nil {
		return 0, ledger.Violation("splitAdjustedQuantity", err, "split %s", splitID)
	}
	if a.CommodityID == "" {
		return s.Quantity.InexactFloat64(), nil
	}
	return r.AdjustQuantity(a.CommodityID, s.Quantity, tx.PostDate, asOf)
}

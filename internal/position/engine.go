// Package position computes open investment positions: quantity held,
// average-cost basis since the last time the position was flat, market
// value, gains and annualized returns.
package position

import (
	"fmt"
	"math"
	"time"

	"github.com/tallybooks/tally/internal/classify"
	"github.com/tallybooks/tally/internal/ledger"
	"github.com/tallybooks/tally/internal/model"
	"github.com/tallybooks/tally/internal/splitfactor"
)

// crossingTolerance is how close to zero a running position must come to
// count as flat.
const crossingTolerance = 0.1

// Book is the read access the engine needs.
type Book interface {
	classify.Accounts
	Commodity(id string) (model.Commodity, error)
	Commodities() []model.Commodity
	CommoditySplits(commodityID string, through time.Time) []model.Posting
	StockSplits(commodityID string) []model.StockSplit
	Prices(commodityID string) []model.Price
}

// Position is the state of one commodity holding as of an end date.
type Position struct {
	CommodityID string
	Symbol      string
	Name        string
	Code        string

	Quantity     float64
	Basis        float64
	ZeroCrossing time.Time
	DaysHeld     float64

	Quote    Quote
	HasQuote bool

	CurrentValue          Figure
	CapitalGain           Figure
	Dividends             float64
	TotalGain             Figure
	AnnualizedReturn      Figure
	TotalAnnualizedReturn Figure
}

// Engine computes positions. It is not safe for concurrent use; give each
// goroutine its own.
type Engine struct {
	book       Book
	classifier *classify.Classifier
	factors    *splitfactor.Resolver
}

// NewEngine returns an Engine reading from book.
func NewEngine(book Book) *Engine {
	return &Engine{
		book:       book,
		classifier: classify.New(book),
		factors:    splitfactor.New(book),
	}
}

type leg struct {
	model.Posting
	qty float64 // split-adjusted as of the end date
}

// Compute returns the position in a commodity as of end (inclusive to the
// end of that day). ok is false when nothing is held.
func (e *Engine) Compute(commodityID string, end time.Time) (pos Position, ok bool, err error) {
	c, err := e.book.Commodity(commodityID)
	if err != nil {
		return Position{}, false, ledger.Violation("position", err, "looking up commodity")
	}
	through := model.EndOfDay(end)

	var holdings []leg
	var income []model.Posting
	for _, p := range e.book.CommoditySplits(commodityID, through) {
		class, err := e.classifier.Classify(p.AccountID)
		if err != nil {
			return Position{}, false, err
		}
		switch class.Kind {
		case classify.KindAsset:
			if p.Flags.Has(model.SplitTransfer) || p.Quantity.IsZero() {
				continue
			}
			q, err := e.factors.AdjustQuantity(commodityID, p.Quantity, p.PostDate, through)
			if err != nil {
				return Position{}, false, err
			}
			holdings = append(holdings, leg{Posting: p, qty: q})
		case classify.KindIncome:
			income = append(income, p)
		}
	}

	var quantity float64
	for _, h := range holdings {
		quantity += h.qty
	}
	if math.Abs(quantity) < model.Epsilon {
		return Position{}, false, nil
	}

	start, since, err := zeroCrossing(holdings, quantity)
	if err != nil {
		return Position{}, false, ledger.Violation("position", err, "commodity %s (%s)", c.ID, c.Name)
	}
	window := holdings[start:]

	pos = Position{
		CommodityID:  c.ID,
		Symbol:       c.Symbol,
		Name:         c.Name,
		Code:         c.Code,
		Quantity:     quantity,
		Basis:        averageCost(window, quantity),
		ZeroCrossing: since,
		DaysHeld:     model.DaysBetween(since, end),
	}

	for _, p := range income {
		if p.PostDate.Before(since) || (start > 0 && !p.PostDate.After(since)) {
			continue
		}
		pos.Dividends -= p.Value.InexactFloat64()
	}

	pos.Quote, pos.HasQuote = LatestQuote(e.book.Prices(commodityID), through)
	if !pos.HasQuote {
		return pos, true, nil
	}
	value := quantity * pos.Quote.Price.InexactFloat64()
	pos.CurrentValue = present(value)
	pos.CapitalGain = present(value - pos.Basis)
	pos.TotalGain = present(value - pos.Basis + pos.Dividends)
	pos.AnnualizedReturn = AnnualizedReturn(pos.Basis, value, pos.DaysHeld)
	pos.TotalAnnualizedReturn = AnnualizedReturn(pos.Basis, value+pos.Dividends, pos.DaysHeld)
	return pos, true, nil
}

// zeroCrossing finds the most recent point at which the position was flat.
// Walking backward from the current quantity, subtracting each leg leaves
// the position held before it. The first time that is flat, the leg just
// older than it closed the position and is the crossing; the basis window
// is everything newer. The newest leg always belongs to the window, so a
// small open position is never mistaken for a flat one. When the walk
// exhausts history flat, the position was opened from nothing and the
// window is the full history.
func zeroCrossing(holdings []leg, quantity float64) (start int, since time.Time, err error) {
	remainder := quantity
	for i := len(holdings) - 1; i >= 0; i-- {
		remainder -= holdings[i].qty
		if i > 0 && math.Abs(remainder) < crossingTolerance {
			return i, holdings[i-1].PostDate, nil
		}
	}
	if math.Abs(remainder) < crossingTolerance {
		return 0, holdings[0].PostDate, nil
	}
	return 0, time.Time{}, fmt.Errorf("position of %.4f never returns to zero", quantity)
}

// averageCost accumulates basis over legs in date order. Legs in the
// direction of the final position add their value; legs against it remove
// basis in proportion to the quantity closed.
func averageCost(legs []leg, quantity float64) float64 {
	var basis, balance float64
	for _, l := range legs {
		opening := math.Signbit(l.qty) == math.Signbit(quantity)
		if opening || balance == 0 {
			basis += l.Value.InexactFloat64()
		} else {
			basis += l.qty * basis / balance
		}
		balance += l.qty
	}
	return basis
}

// OpenPositions computes every commodity's position as of end, ordered by
// commodity name. Commodities with nothing held are omitted.
func (e *Engine) OpenPositions(end time.Time) ([]Position, error) {
	var out []Position
	for _, c := range e.book.Commodities() {
		pos, ok, err := e.Compute(c.ID, end)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, pos)
		}
	}
	return out, nil
}

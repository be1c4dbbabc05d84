package position

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallybooks/tally/internal/model"
)

// Quote is the price used to value a position.
type Quote struct {
	Price decimal.Decimal
	At    time.Time
}

// LatestQuote picks the most recent price at or before through. Several
// prices on that same timestamp are averaged. prices must be ordered by
// timestamp.
func LatestQuote(prices []model.Price, through time.Time) (Quote, bool) {
	var (
		at    time.Time
		sum   decimal.Decimal
		count int64
	)
	for _, p := range prices {
		if p.Timestamp.After(through) {
			break
		}
		if !p.Timestamp.Equal(at) {
			at, sum, count = p.Timestamp, decimal.Zero, 0
		}
		sum = sum.Add(p.Value)
		count++
	}
	if count == 0 {
		return Quote{}, false
	}
	return Quote{Price: sum.Div(decimal.NewFromInt(count)), At: at}, true
}

// Figure is a derived number that may be absent, e.g. a return on a zero basis.
type Figure struct {
	Value float64
	Valid bool
}

func present(v float64) Figure {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Figure{}
	}
	return Figure{Value: v, Valid: true}
}

// AnnualizedReturn is ((end/begin)^(365/days) - 1) * 100. It is absent when
// begin is zero, days is not positive, or the result is not finite.
func AnnualizedReturn(begin, end, days float64) Figure {
	if begin == 0 || days <= 0 {
		return Figure{}
	}
	return present((math.Pow(end/begin, 365/days) - 1) * 100)
}

// Package ledgertest builds small in-memory books for tests.
package ledgertest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallybooks/tally/internal/ledger"
	"github.com/tallybooks/tally/internal/model"
)

// RootID is the id of the root account of every built book.
const RootID = "root"

// Builder accumulates accounts, commodities and transactions into a Book.
type Builder struct {
	Book *ledger.Book
	seq  int
}

// New returns a builder holding just a root account.
func New() *Builder {
	b := &Builder{Book: ledger.NewBook(RootID)}
	b.Book.PutAccount(model.Account{ID: RootID, Name: "Root"})
	return b
}

// Standard adds the usual top-level sections under the root:
// assets, liabilities, income, expenses, equity.
func Standard() *Builder {
	return New().
		Account("assets", RootID, "Assets", model.FlagAsset|model.FlagPlaceholder|model.FlagPermanent).
		Account("liabilities", RootID, "Liabilities", model.FlagLiability|model.FlagPlaceholder|model.FlagPermanent).
		Account("income", RootID, "Income", model.FlagIncome|model.FlagPlaceholder|model.FlagPermanent).
		Account("expenses", RootID, "Expenses", model.FlagExpense|model.FlagPlaceholder|model.FlagPermanent).
		Account("equity", RootID, "Equity", model.FlagNoChildren|model.FlagPermanent|model.FlagHidden)
}

// Account adds an account.
func (b *Builder) Account(id, parentID, name string, flags model.AccountFlags) *Builder {
	b.Book.PutAccount(model.Account{ID: id, ParentID: parentID, Name: name, Flags: flags})
	return b
}

// Link points an existing account at a commodity.
func (b *Builder) Link(accountID, commodityID string) *Builder {
	a, err := b.Book.Account(accountID)
	if err != nil {
		panic(err)
	}
	a.CommodityID = commodityID
	b.Book.PutAccount(a)
	return b
}

// Commodity adds a commodity.
func (b *Builder) Commodity(id, symbol, name string, flags model.CommodityFlags) *Builder {
	b.Book.PutCommodity(model.Commodity{ID: id, Symbol: symbol, Name: name, Flags: flags})
	return b
}

// Tx adds a transaction with the given splits. Splits without an id get one
// derived from the transaction id.
func (b *Builder) Tx(id string, date time.Time, splits ...model.Split) *Builder {
	b.Book.PutTransaction(model.Transaction{ID: id, PostDate: date, EnterDate: date})
	for i, s := range splits {
		if s.ID == "" {
			s.ID = fmt.Sprintf("%s/%d", id, i)
		}
		s.TransactionID = id
		b.Book.PutSplit(s)
	}
	return b
}

// Split adds a split without touching transactions, for dangling-reference cases.
func (b *Builder) Split(s model.Split) *Builder {
	b.Book.PutSplit(s)
	return b
}

// StockSplit adds a split event.
func (b *Builder) StockSplit(commodityID string, date time.Time, factor float64) *Builder {
	b.seq++
	b.Book.PutStockSplit(model.StockSplit{ID: fmt.Sprintf("ss%d", b.seq), CommodityID: commodityID, Date: date, Factor: factor})
	return b
}

// Price adds a quote.
func (b *Builder) Price(commodityID string, ts time.Time, value string) *Builder {
	b.seq++
	b.Book.PutPrice(model.Price{ID: fmt.Sprintf("p%d", b.seq), CommodityID: commodityID, Timestamp: ts, Value: decimal.RequireFromString(value)})
	return b
}

// S makes a split on accountID with a value and quantity.
func S(accountID, value, quantity string) model.Split {
	return model.Split{
		AccountID: accountID,
		Value:     decimal.RequireFromString(value),
		Quantity:  decimal.RequireFromString(quantity),
	}
}

// Transfer marks a split as transfer-exempt.
func Transfer(s model.Split) model.Split {
	s.Flags |= model.SplitTransfer
	return s
}

// D is shorthand for model.Date.
func D(year int, month time.Month, day int) time.Time {
	return model.Date(year, month, day)
}

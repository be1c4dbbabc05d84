package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/tallybooks/tally/internal/model"
)

// Op names a recorded write.
type Op string

const (
	OpInsertAccount     Op = "insert-account"
	OpInsertCommodity   Op = "insert-commodity"
	OpLinkCommodity     Op = "link-commodity"
	OpSetAccountFlags   Op = "set-account-flags"
	OpReparentAccount   Op = "reparent-account"
	OpSetSplitQuantity  Op = "set-split-quantity"
	OpDeleteSplit       Op = "delete-split"
	OpDeleteTransaction Op = "delete-transaction"
)

// Change is one write made to a Book, in the order it was made. Account ops
// carry the account's state after the write.
type Change struct {
	Op        Op
	ID        string
	Account   model.Account
	Commodity model.Commodity
	Quantity  decimal.Decimal
}

func (b *Book) record(c Change) {
	b.changes = append(b.changes, c)
}

// Changes returns the writes made since the book was loaded or last reset.
func (b *Book) Changes() []Change {
	out := make([]Change, len(b.changes))
	copy(out, b.changes)
	return out
}

// ResetChanges forgets recorded writes, typically once they are persisted.
func (b *Book) ResetChanges() {
	b.changes = nil
}

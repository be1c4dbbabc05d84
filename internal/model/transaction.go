package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitFlags marks per-split conditions.
type SplitFlags uint32

const (
	SplitReconciled SplitFlags = 1 << iota
	// SplitTransfer exempts the split from position and basis computation,
	// e.g. shares moved between two brokerage accounts.
	SplitTransfer
)

func (f SplitFlags) Has(flag SplitFlags) bool { return flag != 0 && f&flag == flag }

// Transaction is a dated, balanced group of splits.
type Transaction struct {
	ID          string
	Num         string
	PostDate    time.Time
	EnterDate   time.Time
	Description string
}

// Split is one leg of a transaction against a single account.
type Split struct {
	ID            string
	TransactionID string
	AccountID     string
	Memo          string
	Value         decimal.Decimal // money amount
	Quantity      decimal.Decimal // commodity units, pre-split-adjustment
	Flags         SplitFlags
}

// Posting is a split together with the post date of its transaction.
type Posting struct {
	Split
	PostDate time.Time
}

package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallybooks/tally/internal/model"
)

type bookRow struct {
	ID            string `gorm:"primaryKey;type:varchar(32)"`
	Name          string `gorm:"not null"`
	RootAccountID string `gorm:"not null;type:varchar(32)"`
}

func (bookRow) TableName() string { return "books" }

type accountRow struct {
	ID          string  `gorm:"primaryKey;type:varchar(32)"`
	Name        string  `gorm:"not null"`
	ParentID    *string `gorm:"type:varchar(32);index"`
	Flags       uint32  `gorm:"not null;default:0"`
	CommodityID *string `gorm:"type:varchar(32)"`
	Code        string
	Description string
}

func (accountRow) TableName() string { return "accounts" }

type commodityRow struct {
	ID     string `gorm:"primaryKey;type:varchar(32)"`
	Symbol string
	Name   string `gorm:"not null"`
	Code   string
	Flags  uint32 `gorm:"not null;default:0"`
}

func (commodityRow) TableName() string { return "commodities" }

type transactionRow struct {
	ID          string    `gorm:"primaryKey;type:varchar(32)"`
	Num         string
	PostDate    time.Time `gorm:"not null;index"`
	EnterDate   time.Time
	Description string
}

func (transactionRow) TableName() string { return "transactions" }

type splitRow struct {
	ID            string          `gorm:"primaryKey;type:varchar(32)"`
	TransactionID string          `gorm:"not null;type:varchar(32);index"`
	AccountID     string          `gorm:"not null;type:varchar(32);index"`
	Memo          string
	Value         decimal.Decimal `gorm:"type:varchar(78);not null"`
	Quantity      decimal.Decimal `gorm:"type:varchar(78);not null"`
	Flags         uint32          `gorm:"not null;default:0"`
}

func (splitRow) TableName() string { return "splits" }

type stockSplitRow struct {
	ID          string    `gorm:"primaryKey;type:varchar(32)"`
	CommodityID string    `gorm:"not null;type:varchar(32);index"`
	Date        time.Time `gorm:"not null"`
	Factor      float64   `gorm:"not null"`
}

func (stockSplitRow) TableName() string { return "stock_splits" }

type priceRow struct {
	ID          string          `gorm:"primaryKey;type:varchar(32)"`
	CommodityID string          `gorm:"not null;type:varchar(32);index"`
	QuotedAt    time.Time       `gorm:"not null"`
	Value       decimal.Decimal `gorm:"type:varchar(78);not null"`
}

func (priceRow) TableName() string { return "prices" }

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fromAccount(a model.Account) accountRow {
	return accountRow{
		ID:          a.ID,
		Name:        a.Name,
		ParentID:    nullable(a.ParentID),
		Flags:       uint32(a.Flags),
		CommodityID: nullable(a.CommodityID),
		Code:        a.Code,
		Description: a.Description,
	}
}

func (r accountRow) toModel() model.Account {
	return model.Account{
		ID:          r.ID,
		Name:        r.Name,
		ParentID:    deref(r.ParentID),
		Flags:       model.AccountFlags(r.Flags),
		CommodityID: deref(r.CommodityID),
		Code:        r.Code,
		Description: r.Description,
	}
}

func fromCommodity(c model.Commodity) commodityRow {
	return commodityRow{ID: c.ID, Symbol: c.Symbol, Name: c.Name, Code: c.Code, Flags: uint32(c.Flags)}
}

func (r commodityRow) toModel() model.Commodity {
	return model.Commodity{ID: r.ID, Symbol: r.Symbol, Name: r.Name, Code: r.Code, Flags: model.CommodityFlags(r.Flags)}
}

func fromTransaction(tx model.Transaction) transactionRow {
	return transactionRow{ID: tx.ID, Num: tx.Num, PostDate: tx.PostDate.UTC(), EnterDate: tx.EnterDate.UTC(), Description: tx.Description}
}

func (r transactionRow) toModel() model.Transaction {
	return model.Transaction{ID: r.ID, Num: r.Num, PostDate: r.PostDate.UTC(), EnterDate: r.EnterDate.UTC(), Description: r.Description}
}

func fromSplit(s model.Split) splitRow {
	return splitRow{
		ID:            s.ID,
		TransactionID: s.TransactionID,
		AccountID:     s.AccountID,
		Memo:          s.Memo,
		Value:         s.Value,
		Quantity:      s.Quantity,
		Flags:         uint32(s.Flags),
	}
}

func (r splitRow) toModel() model.Split {
	return model.Split{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		AccountID:     r.AccountID,
		Memo:          r.Memo,
		Value:         r.Value,
		Quantity:      r.Quantity,
		Flags:         model.SplitFlags(r.Flags),
	}
}

func fromStockSplit(ev model.StockSplit) stockSplitRow {
	return stockSplitRow{ID: ev.ID, CommodityID: ev.CommodityID, Date: ev.Date.UTC(), Factor: ev.Factor}
}

func (r stockSplitRow) toModel() model.StockSplit {
	return model.StockSplit{ID: r.ID, CommodityID: r.CommodityID, Date: r.Date.UTC(), Factor: r.Factor}
}

func fromPrice(p model.Price) priceRow {
	return priceRow{ID: p.ID, CommodityID: p.CommodityID, QuotedAt: p.Timestamp.UTC(), Value: p.Value}
}

func (r priceRow) toModel() model.Price {
	return model.Price{ID: r.ID, CommodityID: r.CommodityID, Timestamp: r.QuotedAt.UTC(), Value: r.Value}
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommodityFlags marks commodity conventions.
type CommodityFlags uint32

const (
	// CommodityMoneyMarket funds hold a constant unit price of 1, so every
	// split's quantity equals its value.
	CommodityMoneyMarket CommodityFlags = 1 << iota
)

func (f CommodityFlags) Has(flag CommodityFlags) bool { return flag != 0 && f&flag == flag }

// Commodity is a tradable security (stock, fund, money-market fund).
type Commodity struct {
	ID     string
	Symbol string
	Name   string
	Code   string // CUSIP
	Flags  CommodityFlags
}

// StockSplit multiplies a commodity's unit count by Factor on Date.
type StockSplit struct {
	ID          string
	CommodityID string
	Date        time.Time
	Factor      float64
}

// Price is a quoted per-unit value of a commodity at a point in time.
type Price struct {
	ID          string
	CommodityID string
	Timestamp   time.Time
	Value       decimal.Decimal
}

package model

import (
	"fmt"
	"strings"
)

// AccountFlags is the set of behavioral flags carried by an account.
// Flags are inherited: an account behaves as if it carried every flag set on
// any of its ancestors.
type AccountFlags uint32

const (
	FlagAsset AccountFlags = 1 << iota
	FlagLiability
	FlagIncome
	FlagExpense
	FlagMarketable
	FlagTaxDeferred
	FlagNeedsCommodityLink
	FlagPlaceholder
	FlagHidden
	FlagPermanent
	FlagNoChildren
	FlagTaxRelated
)

var flagNames = []struct {
	flag AccountFlags
	name string
}{
	{FlagAsset, "asset"},
	{FlagLiability, "liability"},
	{FlagIncome, "income"},
	{FlagExpense, "expense"},
	{FlagMarketable, "marketable"},
	{FlagTaxDeferred, "tax-deferred"},
	{FlagNeedsCommodityLink, "needs-commodity-link"},
	{FlagPlaceholder, "placeholder"},
	{FlagHidden, "hidden"},
	{FlagPermanent, "permanent"},
	{FlagNoChildren, "no-children"},
	{FlagTaxRelated, "tax-related"},
}

// Has reports whether every bit of flag is set.
func (f AccountFlags) Has(flag AccountFlags) bool {
	return flag != 0 && f&flag == flag
}

// Any reports whether at least one bit of mask is set.
func (f AccountFlags) Any(mask AccountFlags) bool {
	return f&mask != 0
}

func (f AccountFlags) With(flag AccountFlags) AccountFlags    { return f | flag }
func (f AccountFlags) Without(flag AccountFlags) AccountFlags { return f &^ flag }

// String renders the set as pipe-separated names, e.g. "asset|placeholder".
func (f AccountFlags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseAccountFlags parses the format produced by String. Empty input is the
// empty set.
func ParseAccountFlags(s string) (AccountFlags, error) {
	var f AccountFlags
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		found := false
		for _, fn := range flagNames {
			if fn.name == part {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown account flag %q", part)
		}
	}
	return f, nil
}

// Account is a node in the account tree.
type Account struct {
	ID          string
	Name        string
	ParentID    string // "" for the root and for orphans
	Flags       AccountFlags
	CommodityID string // "" when unlinked
	Code        string
	Description string
}

// IsPlaceholder reports whether the account is a grouping-only node.
func (a Account) IsPlaceholder() bool { return a.Flags.Has(FlagPlaceholder) }

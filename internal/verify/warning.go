package verify

import (
	"fmt"
	"strings"
)

// Kind names a class of finding.
type Kind string

const (
	KindRootSkeleton      Kind = "root-skeleton"
	KindCommodityLinked   Kind = "commodity-linked"
	KindCommodityCreated  Kind = "commodity-created"
	KindCommodityCleared  Kind = "commodity-cleared"
	KindNameMismatch      Kind = "name-mismatch"
	KindQuantityZeroed    Kind = "quantity-zeroed"
	KindMoneyMarket       Kind = "money-market-equalized"
	KindAnomaly           Kind = "inheritance-anomaly"
	KindPlaceholderSplits Kind = "placeholder-has-splits"
	KindNoChildren        Kind = "no-children-has-children"
	KindOrphanSplit       Kind = "orphan-split"
	KindMissingAccount    Kind = "missing-account"
	KindEmptyTransaction  Kind = "empty-transaction"
	KindUnbalanced        Kind = "unbalanced-transaction"
	KindDuplicateSymbol   Kind = "duplicate-symbol"
	KindOrphanAccount     Kind = "orphan-account"
	KindUnreachable       Kind = "unreachable-account"
)

// Kinds lists every finding kind in the order the checker produces them.
func Kinds() []Kind {
	return []Kind{
		KindRootSkeleton,
		KindCommodityLinked,
		KindCommodityCreated,
		KindCommodityCleared,
		KindNameMismatch,
		KindQuantityZeroed,
		KindMoneyMarket,
		KindAnomaly,
		KindPlaceholderSplits,
		KindNoChildren,
		KindOrphanSplit,
		KindMissingAccount,
		KindEmptyTransaction,
		KindUnbalanced,
		KindDuplicateSymbol,
		KindOrphanAccount,
		KindUnreachable,
	}
}

// Warning is one data-integrity finding. Repaired is set when the checker
// already fixed it; the rest need a person.
type Warning struct {
	Kind     Kind
	Repaired bool
	Subject  string   // id of the account, split, transaction or commodity, or a symbol
	Detail   string
	Paths    []string // account paths involved
}

func (w Warning) String() string {
	var b strings.Builder
	state := "needs attention"
	if w.Repaired {
		state = "repaired"
	}
	fmt.Fprintf(&b, "[%s] %s %s: %s", state, w.Kind, w.Subject, w.Detail)
	if len(w.Paths) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(w.Paths, ", "))
	}
	return b.String()
}

// Report is the outcome of a verify pass.
type Report struct {
	Warnings []Warning
}

// Repaired counts findings that were fixed.
func (r Report) Repaired() int {
	n := 0
	for _, w := range r.Warnings {
		if w.Repaired {
			n++
		}
	}
	return n
}

// Outstanding returns the findings that still need manual correction.
func (r Report) Outstanding() []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if !w.Repaired {
			out = append(out, w)
		}
	}
	return out
}

// Of returns the findings of one kind.
func (r Report) Of(kind Kind) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// Clean reports whether the pass found nothing at all.
func (r Report) Clean() bool { return len(r.Warnings) == 0 }

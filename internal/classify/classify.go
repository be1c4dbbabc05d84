// Package classify derives account roles from inherited flags and renders
// account paths.
package classify

import (
	"strings"

	"github.com/tallybooks/tally/internal/ledger"
	"github.com/tallybooks/tally/internal/model"
)

// maxDepth bounds ancestor walks so a corrupted parent chain cannot loop.
const maxDepth = 256

// Accounts is the read access the classifier needs.
type Accounts interface {
	Account(id string) (model.Account, error)
	RootID() string
}

// Kind is the accounting role of an account.
type Kind int

const (
	KindNone Kind = iota
	KindAsset
	KindLiability
	KindIncome
	KindExpense
)

func (k Kind) String() string {
	switch k {
	case KindAsset:
		return "asset"
	case KindLiability:
		return "liability"
	case KindIncome:
		return "income"
	case KindExpense:
		return "expense"
	default:
		return "none"
	}
}

// Class is the classification of a single account.
type Class struct {
	Kind               Kind
	Marketable         bool
	TaxDeferred        bool
	NeedsCommodityLink bool
	TaxRelated         bool
	Placeholder        bool
}

// Classifier answers flag-inheritance questions over an account tree. It
// caches full paths, so an instance belongs to one goroutine.
type Classifier struct {
	accounts Accounts
	paths    map[string]string
}

// New returns a Classifier reading from accounts.
func New(accounts Accounts) *Classifier {
	return &Classifier{accounts: accounts, paths: make(map[string]string)}
}

// InheritedFlag reports whether any ancestor of the account carries flag.
// The walk starts at the parent; the account's own flags are not consulted.
func (c *Classifier) InheritedFlag(accountID string, flag model.AccountFlags) (bool, error) {
	found := false
	err := c.walkAncestors("inheritedFlag", accountID, func(a model.Account) bool {
		found = a.Flags.Any(flag)
		return !found
	})
	return found, err
}

// Inherited returns the union of every ancestor's flags.
func (c *Classifier) Inherited(accountID string) (model.AccountFlags, error) {
	var flags model.AccountFlags
	err := c.walkAncestors("inherited", accountID, func(a model.Account) bool {
		flags |= a.Flags
		return true
	})
	return flags, err
}

// Effective returns the account's own flags plus everything it inherits.
func (c *Classifier) Effective(accountID string) (model.AccountFlags, error) {
	a, err := c.account("effective", accountID)
	if err != nil {
		return 0, err
	}
	inherited, err := c.Inherited(accountID)
	if err != nil {
		return 0, err
	}
	return a.Flags | inherited, nil
}

// Classify derives the account's role. Roles come from ancestors: an
// account is an asset when it sits below an asset-flagged account. Tax
// relevance also counts the account's own flag.
func (c *Classifier) Classify(accountID string) (Class, error) {
	a, err := c.account("classify", accountID)
	if err != nil {
		return Class{}, err
	}
	inherited, err := c.Inherited(accountID)
	if err != nil {
		return Class{}, err
	}
	return Class{
		Kind:               KindOf(inherited),
		Marketable:         inherited.Has(model.FlagMarketable),
		TaxDeferred:        inherited.Has(model.FlagTaxDeferred),
		NeedsCommodityLink: inherited.Has(model.FlagNeedsCommodityLink),
		TaxRelated:         (a.Flags | inherited).Has(model.FlagTaxRelated),
		Placeholder:        a.IsPlaceholder(),
	}, nil
}

// KindOf picks the role carried by a flag set. Asset wins over liability,
// then income, then expense.
func KindOf(flags model.AccountFlags) Kind {
	switch {
	case flags.Has(model.FlagAsset):
		return KindAsset
	case flags.Has(model.FlagLiability):
		return KindLiability
	case flags.Has(model.FlagIncome):
		return KindIncome
	case flags.Has(model.FlagExpense):
		return KindExpense
	default:
		return KindNone
	}
}

// FullPath renders the colon-joined names from just below the root down to
// the account, e.g. ":Assets:Investments:Fund". The root itself is ":".
func (c *Classifier) FullPath(accountID string) (string, error) {
	if p, ok := c.paths[accountID]; ok {
		return p, nil
	}
	a, err := c.account("fullPath", accountID)
	if err != nil {
		return "", err
	}
	names := []string{}
	if accountID != c.accounts.RootID() {
		names = append(names, a.Name)
	}
	err = c.walkAncestors("fullPath", accountID, func(anc model.Account) bool {
		if anc.ID != c.accounts.RootID() {
			names = append(names, anc.Name)
		}
		return true
	})
	if err != nil {
		return "", err
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	p := ":" + strings.Join(names, ":")
	c.paths[accountID] = p
	return p, nil
}

// Forget drops cached paths, needed after accounts are renamed or moved.
func (c *Classifier) Forget() {
	c.paths = make(map[string]string)
}

func (c *Classifier) account(op, id string) (model.Account, error) {
	a, err := c.accounts.Account(id)
	if err != nil {
		return model.Account{}, ledger.Violation(op, err, "looking up account")
	}
	return a, nil
}

// walkAncestors visits the parent, grandparent and so on up to the root,
// stopping early when visit returns false. An account with no parent has
// no ancestors.
func (c *Classifier) walkAncestors(op, accountID string, visit func(model.Account) bool) error {
	a, err := c.account(op, accountID)
	if err != nil {
		return err
	}
	for depth := 0; a.ParentID != ""; depth++ {
		if depth >= maxDepth {
			return ledger.Violation(op, nil, "parent chain of %s does not reach the root", accountID)
		}
		a, err = c.account(op, a.ParentID)
		if err != nil {
			return err
		}
		if !visit(a) {
			return nil
		}
	}
	return nil
}

// Package verify checks a book against the ledger's structural rules and
// repairs what can be repaired mechanically.
package verify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tallybooks/tally/internal/accounts"
	"github.com/tallybooks/tally/internal/classify"
	"github.com/tallybooks/tally/internal/id"
	"github.com/tallybooks/tally/internal/ledger"
	"github.com/tallybooks/tally/internal/log"
	"github.com/tallybooks/tally/internal/model"
)

const op = "verify"

var epsilon = decimal.NewFromFloat(model.Epsilon)

// Checker runs one verify pass over a book. Repairs are written through the
// book's recorded writes, so the caller persists them with the changes.
type Checker struct {
	book  *ledger.Book
	lg    log.Logger
	newID func() string

	classifier *classify.Classifier
	visited    map[string]bool
	report     Report
}

// Option configures a Checker.
type Option func(*Checker)

// WithIDs replaces the id source used for accounts and commodities the
// checker creates.
func WithIDs(newID func() string) Option {
	return func(c *Checker) { c.newID = newID }
}

// New returns a Checker for book. A nil logger discards output.
func New(book *ledger.Book, lg log.Logger, opts ...Option) *Checker {
	if lg == nil {
		lg = log.NewNoopLogger()
	}
	c := &Checker{book: book, lg: lg.WithName("verify"), newID: id.New}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run performs the full pass. It holds the book exclusively until done, so
// no reader observes a half-repaired ledger. Only a missing root or a store
// write failure returns an error; everything else lands in the report.
func (c *Checker) Run() (Report, error) {
	release := c.book.Exclusive()
	defer release()

	c.classifier = classify.New(c.book)
	c.visited = make(map[string]bool)
	c.report = Report{}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"root skeleton", c.checkSkeleton},
		{"account tree", c.checkTree},
		{"orphan splits", c.deleteOrphanSplits},
		{"missing accounts", c.checkSplitAccounts},
		{"empty transactions", c.deleteEmptyTransactions},
		{"balance", c.checkBalance},
		{"symbols", c.checkSymbols},
		{"orphan accounts", c.reparentOrphans},
		{"reachability", c.checkReachable},
	}
	for _, s := range steps {
		before := len(c.report.Warnings)
		if err := s.fn(); err != nil {
			return c.report, fmt.Errorf("%s: %w", s.name, err)
		}
		c.lg.Debug("step done", "step", s.name, "findings", len(c.report.Warnings)-before)
	}

	c.lg.Info("verify finished",
		"findings", len(c.report.Warnings),
		"repaired", c.report.Repaired(),
		"outstanding", len(c.report.Outstanding()))
	return c.report, nil
}

func (c *Checker) warn(w Warning) {
	c.report.Warnings = append(c.report.Warnings, w)
	lg := c.lg.WithKV("kind", string(w.Kind)).WithKV("subject", w.Subject)
	if w.Repaired {
		lg.Info("repaired", "detail", w.Detail)
	} else {
		lg.Warn(w.Detail, "paths", strings.Join(w.Paths, ", "))
	}
}

// path renders an account path, falling back to the bare name or id when
// the parent chain is broken.
func (c *Checker) path(accountID string) string {
	if p, err := c.classifier.FullPath(accountID); err == nil {
		return p
	}
	if a, err := c.book.Account(accountID); err == nil {
		return a.Name
	}
	return accountID
}

func (c *Checker) checkSkeleton() error {
	root, err := c.book.Root()
	if err != nil {
		return ledger.Violation(op, err, "root account %s", c.book.RootID())
	}
	existing := make(map[string]model.Account)
	for _, child := range c.book.Children(root.ID) {
		if _, ok := existing[child.Name]; !ok {
			existing[child.Name] = child
		}
	}
	for _, s := range accounts.Skeleton() {
		a, ok := existing[s.Name]
		switch {
		case !ok:
			a = model.Account{ID: c.newID(), Name: s.Name, ParentID: root.ID, Flags: s.Flags}
			if err := c.book.InsertAccount(a); err != nil {
				return err
			}
			c.warn(Warning{Kind: KindRootSkeleton, Repaired: true, Subject: a.ID,
				Detail: fmt.Sprintf("created missing top-level account %s", s.Name), Paths: []string{":" + s.Name}})
		case a.Flags != s.Flags:
			if err := c.book.SetAccountFlags(a.ID, s.Flags); err != nil {
				return err
			}
			c.warn(Warning{Kind: KindRootSkeleton, Repaired: true, Subject: a.ID,
				Detail: fmt.Sprintf("flags %s reset to %s", a.Flags, s.Flags), Paths: []string{":" + s.Name}})
		}
	}
	return nil
}

func (c *Checker) checkTree() error {
	return c.walk(c.book.RootID(), 0)
}

// walk visits accountID and its subtree depth-first. inherited holds the
// union of the ancestors' own flags.
func (c *Checker) walk(accountID string, inherited model.AccountFlags) error {
	if c.visited[accountID] {
		return nil
	}
	c.visited[accountID] = true

	a, err := c.book.Account(accountID)
	if err != nil {
		return ledger.Violation(op, err, "walking account %s", accountID)
	}
	if accountID != c.book.RootID() {
		if err := c.checkAccount(a, inherited); err != nil {
			return err
		}
	}

	children := c.book.Children(accountID)
	if a.Flags.Has(model.FlagNoChildren) && len(children) > 0 {
		c.warn(Warning{Kind: KindNoChildren, Subject: a.ID,
			Detail: fmt.Sprintf("account may not have children but has %d", len(children)), Paths: []string{c.path(a.ID)}})
	}
	for _, child := range children {
		if err := c.walk(child.ID, inherited|a.Flags); err != nil {
			return err
		}
	}
	return nil
}

// checkAccount decides from the flags a inherits, as classification does:
// an account's own Marketable or Asset bit describes its children.
func (c *Checker) checkAccount(a model.Account, inherited model.AccountFlags) error {
	switch {
	case a.IsPlaceholder():
		if n := len(c.book.AccountSplits(a.ID)); n > 0 {
			c.warn(Warning{Kind: KindPlaceholderSplits, Subject: a.ID,
				Detail: fmt.Sprintf("placeholder holds %d splits; move them to a child account", n), Paths: []string{c.path(a.ID)}})
		}
		return nil

	case inherited.Has(model.FlagAsset):
		if !inherited.Has(model.FlagMarketable) {
			if err := c.clearLink(a); err != nil {
				return err
			}
			return c.zeroQuantities(a)
		}
		cm, err := c.repairLink(a)
		if err != nil {
			return err
		}
		if cm.Flags.Has(model.CommodityMoneyMarket) {
			return c.equalizeMoneyMarket(a)
		}
		return nil

	case inherited.Has(model.FlagNeedsCommodityLink):
		if classify.KindOf(inherited) == classify.KindIncome {
			_, err := c.repairLink(a)
			return err
		}
		c.warn(Warning{Kind: KindAnomaly, Subject: a.ID,
			Detail: "inherits needs-commodity-link but is not an income account", Paths: []string{c.path(a.ID)}})
		return nil

	default:
		if inherited.Has(model.FlagMarketable) {
			c.warn(Warning{Kind: KindAnomaly, Subject: a.ID,
				Detail: "inherits marketable but is not an asset account", Paths: []string{c.path(a.ID)}})
		}
		if err := c.clearLink(a); err != nil {
			return err
		}
		return c.zeroQuantities(a)
	}
}

// repairLink makes sure a points at an existing commodity and returns it.
// A missing link is resolved by name, then by creating a commodity; a link
// to a commodity that no longer exists gets a fresh one.
func (c *Checker) repairLink(a model.Account) (model.Commodity, error) {
	if a.CommodityID != "" {
		cm, err := c.book.Commodity(a.CommodityID)
		if err == nil {
			if cm.Name != a.Name {
				c.warn(Warning{Kind: KindNameMismatch, Subject: a.ID,
					Detail: fmt.Sprintf("linked commodity is named %q", cm.Name), Paths: []string{c.path(a.ID)}})
			}
			return cm, nil
		}
		return c.createLinked(a, fmt.Sprintf("linked commodity %s does not exist; created a new one", a.CommodityID))
	}

	if cm, ok := c.book.CommodityByName(a.Name); ok {
		if err := c.book.LinkCommodity(a.ID, cm.ID); err != nil {
			return model.Commodity{}, err
		}
		c.warn(Warning{Kind: KindCommodityLinked, Repaired: true, Subject: a.ID,
			Detail: fmt.Sprintf("linked to commodity %s by name", cm.ID), Paths: []string{c.path(a.ID)}})
		return cm, nil
	}
	return c.createLinked(a, "no commodity named after the account; created one")
}

func (c *Checker) createLinked(a model.Account, detail string) (model.Commodity, error) {
	cm := model.Commodity{ID: c.newID(), Name: a.Name}
	if err := c.book.InsertCommodity(cm); err != nil {
		return model.Commodity{}, err
	}
	if err := c.book.LinkCommodity(a.ID, cm.ID); err != nil {
		return model.Commodity{}, err
	}
	c.warn(Warning{Kind: KindCommodityCreated, Repaired: true, Subject: a.ID, Detail: detail, Paths: []string{c.path(a.ID)}})
	return cm, nil
}

func (c *Checker) clearLink(a model.Account) error {
	if a.CommodityID == "" {
		return nil
	}
	if err := c.book.LinkCommodity(a.ID, ""); err != nil {
		return err
	}
	c.warn(Warning{Kind: KindCommodityCleared, Repaired: true, Subject: a.ID,
		Detail: fmt.Sprintf("cleared link to commodity %s", a.CommodityID), Paths: []string{c.path(a.ID)}})
	return nil
}

func (c *Checker) zeroQuantities(a model.Account) error {
	for _, s := range c.book.AccountSplits(a.ID) {
		if s.Quantity.IsZero() {
			continue
		}
		if err := c.book.SetSplitQuantity(s.ID, decimal.Zero); err != nil {
			return err
		}
		c.warn(Warning{Kind: KindQuantityZeroed, Repaired: true, Subject: s.ID,
			Detail: fmt.Sprintf("quantity %s zeroed", s.Quantity), Paths: []string{c.path(a.ID)}})
	}
	return nil
}

func (c *Checker) equalizeMoneyMarket(a model.Account) error {
	for _, s := range c.book.AccountSplits(a.ID) {
		if s.Quantity.Equal(s.Value) {
			continue
		}
		if err := c.book.SetSplitQuantity(s.ID, s.Value); err != nil {
			return err
		}
		c.warn(Warning{Kind: KindMoneyMarket, Repaired: true, Subject: s.ID,
			Detail: fmt.Sprintf("quantity %s set to value %s", s.Quantity, s.Value), Paths: []string{c.path(a.ID)}})
	}
	return nil
}

func (c *Checker) deleteOrphanSplits() error {
	for _, s := range c.book.Splits() {
		if _, err := c.book.Transaction(s.TransactionID); err == nil {
			continue
		}
		if err := c.book.DeleteSplit(s.ID); err != nil {
			return err
		}
		c.warn(Warning{Kind: KindOrphanSplit, Repaired: true, Subject: s.ID,
			Detail: fmt.Sprintf("deleted split of missing transaction %s", s.TransactionID), Paths: []string{c.path(s.AccountID)}})
	}
	return nil
}

func (c *Checker) checkSplitAccounts() error {
	for _, tx := range c.book.Transactions() {
		var missing []string
		for _, s := range c.book.TransactionSplits(tx.ID) {
			if _, err := c.book.Account(s.AccountID); err != nil {
				missing = append(missing, s.AccountID)
			}
		}
		if len(missing) > 0 {
			c.warn(Warning{Kind: KindMissingAccount, Subject: tx.ID,
				Detail: fmt.Sprintf("splits reference missing accounts %s", strings.Join(missing, ", "))})
		}
	}
	return nil
}

func (c *Checker) deleteEmptyTransactions() error {
	for _, tx := range c.book.Transactions() {
		if len(c.book.TransactionSplits(tx.ID)) > 0 {
			continue
		}
		if err := c.book.DeleteTransaction(tx.ID); err != nil {
			return err
		}
		c.warn(Warning{Kind: KindEmptyTransaction, Repaired: true, Subject: tx.ID,
			Detail: fmt.Sprintf("deleted transaction %q dated %s with no splits", tx.Description, tx.PostDate.Format(model.DateLayout))})
	}
	return nil
}

func (c *Checker) checkBalance() error {
	for _, tx := range c.book.Transactions() {
		splits := c.book.TransactionSplits(tx.ID)
		sum := decimal.Zero
		for _, s := range splits {
			sum = sum.Add(s.Value)
		}
		if sum.Abs().LessThanOrEqual(epsilon) {
			continue
		}
		seen := make(map[string]bool)
		var paths []string
		for _, s := range splits {
			if seen[s.AccountID] {
				continue
			}
			seen[s.AccountID] = true
			paths = append(paths, c.path(s.AccountID))
		}
		c.warn(Warning{Kind: KindUnbalanced, Subject: tx.ID,
			Detail: fmt.Sprintf("transaction dated %s is off by %s", tx.PostDate.Format(model.DateLayout), sum), Paths: paths})
	}
	return nil
}

func (c *Checker) checkSymbols() error {
	bySymbol := make(map[string][]string)
	for _, cm := range c.book.Commodities() {
		if cm.Symbol == "" {
			continue
		}
		bySymbol[cm.Symbol] = append(bySymbol[cm.Symbol], cm.ID)
	}
	symbols := make([]string, 0, len(bySymbol))
	for sym, ids := range bySymbol {
		if len(ids) > 1 {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		ids := bySymbol[sym]
		sort.Strings(ids)
		c.warn(Warning{Kind: KindDuplicateSymbol, Subject: sym,
			Detail: fmt.Sprintf("symbol shared by commodities %s", strings.Join(ids, ", "))})
	}
	return nil
}

func (c *Checker) reparentOrphans() error {
	rootID := c.book.RootID()
	for _, a := range c.book.Accounts() {
		if a.ID == rootID {
			continue
		}
		if a.ParentID != "" {
			if _, err := c.book.Account(a.ParentID); err == nil {
				continue
			}
		}
		name := id.Disambiguate(a.Name, a.ID)
		if err := c.book.ReparentAccount(a.ID, rootID, name); err != nil {
			return err
		}
		c.classifier.Forget()
		c.warn(Warning{Kind: KindOrphanAccount, Repaired: true, Subject: a.ID,
			Detail: fmt.Sprintf("moved under the root as %q", name), Paths: []string{c.path(a.ID)}})
	}
	return nil
}

// checkReachable reports accounts the root still cannot reach once orphans
// are reparented, which only happens when parents form a cycle.
func (c *Checker) checkReachable() error {
	reached := make(map[string]bool)
	queue := []string{c.book.RootID()}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if reached[next] {
			continue
		}
		reached[next] = true
		for _, child := range c.book.Children(next) {
			queue = append(queue, child.ID)
		}
	}
	for _, a := range c.book.Accounts() {
		if reached[a.ID] {
			continue
		}
		c.warn(Warning{Kind: KindUnreachable, Subject: a.ID,
			Detail: fmt.Sprintf("account %q is part of a parent cycle", a.Name)})
	}
	return nil
}

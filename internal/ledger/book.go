package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallybooks/tally/internal/model"
)

// Book is an in-memory snapshot of a ledger with the lookups the engines need.
//
// Book methods do not lock. A caller that may run alongside others takes
// Shared (any number of readers) or Exclusive (the single writer) for the
// whole of its pass and releases it when done.
type Book struct {
	mu sync.RWMutex

	rootID       string
	accounts     map[string]model.Account
	commodities  map[string]model.Commodity
	transactions map[string]model.Transaction
	splits       map[string]model.Split
	stockSplits  map[string][]model.StockSplit
	prices       map[string][]model.Price

	children     map[string]set
	accountSplit map[string]set
	txSplit      map[string]set

	changes []Change
}

type set map[string]struct{}

func (s set) keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewBook creates an empty book whose tree is rooted at rootID. The root
// account itself is added with PutAccount like any other.
func NewBook(rootID string) *Book {
	return &Book{
		rootID:       rootID,
		accounts:     make(map[string]model.Account),
		commodities:  make(map[string]model.Commodity),
		transactions: make(map[string]model.Transaction),
		splits:       make(map[string]model.Split),
		stockSplits:  make(map[string][]model.StockSplit),
		prices:       make(map[string][]model.Price),
		children:     make(map[string]set),
		accountSplit: make(map[string]set),
		txSplit:      make(map[string]set),
	}
}

// Exclusive acquires the book for a single writer and returns the release func.
func (b *Book) Exclusive() (release func()) {
	b.mu.Lock()
	return b.mu.Unlock
}

// Shared acquires the book for reading and returns the release func.
func (b *Book) Shared() (release func()) {
	b.mu.RLock()
	return b.mu.RUnlock
}

// --- loading ---

// PutAccount adds or replaces an account without recording a change.
func (b *Book) PutAccount(a model.Account) {
	if old, ok := b.accounts[a.ID]; ok {
		b.unindex(b.children, old.ParentID, old.ID)
	}
	b.accounts[a.ID] = a
	if a.ParentID != "" {
		b.index(b.children, a.ParentID, a.ID)
	}
}

// PutCommodity adds or replaces a commodity without recording a change.
func (b *Book) PutCommodity(c model.Commodity) {
	b.commodities[c.ID] = c
}

// PutTransaction adds or replaces a transaction header.
func (b *Book) PutTransaction(tx model.Transaction) {
	b.transactions[tx.ID] = tx
}

// PutSplit adds or replaces a split. The split's transaction and account
// need not exist; such dangling splits are what the checker looks for.
func (b *Book) PutSplit(s model.Split) {
	if old, ok := b.splits[s.ID]; ok {
		b.unindex(b.accountSplit, old.AccountID, old.ID)
		b.unindex(b.txSplit, old.TransactionID, old.ID)
	}
	b.splits[s.ID] = s
	b.index(b.accountSplit, s.AccountID, s.ID)
	b.index(b.txSplit, s.TransactionID, s.ID)
}

// PutStockSplit adds a stock split event, keeping events ordered by date.
func (b *Book) PutStockSplit(ev model.StockSplit) {
	list := append(b.stockSplits[ev.CommodityID], ev)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
	b.stockSplits[ev.CommodityID] = list
}

// PutPrice adds a quote, keeping quotes ordered by timestamp.
func (b *Book) PutPrice(p model.Price) {
	list := append(b.prices[p.CommodityID], p)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
	b.prices[p.CommodityID] = list
}

func (b *Book) index(idx map[string]set, key, id string) {
	s, ok := idx[key]
	if !ok {
		s = make(set)
		idx[key] = s
	}
	s[id] = struct{}{}
}

func (b *Book) unindex(idx map[string]set, key, id string) {
	if s, ok := idx[key]; ok {
		delete(s, id)
		if len(s) == 0 {
			delete(idx, key)
		}
	}
}

// --- reads ---

// RootID returns the id of the tree root.
func (b *Book) RootID() string { return b.rootID }

// Root returns the root account.
func (b *Book) Root() (model.Account, error) { return b.Account(b.rootID) }

// Account looks up an account by id.
func (b *Book) Account(id string) (model.Account, error) {
	a, ok := b.accounts[id]
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, nil
}

// Accounts returns every account ordered by id.
func (b *Book) Accounts() []model.Account {
	out := make([]model.Account, 0, len(b.accounts))
	for _, a := range b.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Children returns the direct children of an account ordered by name, then id.
func (b *Book) Children(id string) []model.Account {
	ids := b.children[id].keys()
	out := make([]model.Account, 0, len(ids))
	for _, cid := range ids {
		out = append(out, b.accounts[cid])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Commodity looks up a commodity by id.
func (b *Book) Commodity(id string) (model.Commodity, error) {
	c, ok := b.commodities[id]
	if !ok {
		return model.Commodity{}, fmt.Errorf("commodity %s: %w", id, ErrNotFound)
	}
	return c, nil
}

// Commodities returns every commodity ordered by name, then id.
func (b *Book) Commodities() []model.Commodity {
	out := make([]model.Commodity, 0, len(b.commodities))
	for _, c := range b.commodities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CommodityByName finds the commodity whose full name equals name. When
// several match, the lowest id wins.
func (b *Book) CommodityByName(name string) (model.Commodity, bool) {
	for _, c := range b.Commodities() {
		if c.Name == name {
			return c, true
		}
	}
	return model.Commodity{}, false
}

// Transaction looks up a transaction by id.
func (b *Book) Transaction(id string) (model.Transaction, error) {
	tx, ok := b.transactions[id]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return tx, nil
}

// Transactions returns every transaction ordered by post date, then id.
func (b *Book) Transactions() []model.Transaction {
	out := make([]model.Transaction, 0, len(b.transactions))
	for _, tx := range b.transactions {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PostDate.Equal(out[j].PostDate) {
			return out[i].PostDate.Before(out[j].PostDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Split looks up a split by id.
func (b *Book) Split(id string) (model.Split, error) {
	s, ok := b.splits[id]
	if !ok {
		return model.Split{}, fmt.Errorf("split %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// Splits returns every split ordered by id.
func (b *Book) Splits() []model.Split {
	out := make([]model.Split, 0, len(b.splits))
	for _, s := range b.splits {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AccountSplits returns the splits posted to an account ordered by id.
func (b *Book) AccountSplits(accountID string) []model.Split {
	return b.collect(b.accountSplit[accountID])
}

// TransactionSplits returns the splits of a transaction ordered by id.
func (b *Book) TransactionSplits(txID string) []model.Split {
	return b.collect(b.txSplit[txID])
}

func (b *Book) collect(ids set) []model.Split {
	keys := ids.keys()
	out := make([]model.Split, 0, len(keys))
	for _, id := range keys {
		out = append(out, b.splits[id])
	}
	return out
}

// Postings returns the splits of an account joined with their transaction's
// post date, ordered by (post date, split id). Splits whose transaction is
// missing are skipped.
func (b *Book) Postings(accountID string) []model.Posting {
	var out []model.Posting
	for _, s := range b.AccountSplits(accountID) {
		tx, ok := b.transactions[s.TransactionID]
		if !ok {
			continue
		}
		out = append(out, model.Posting{Split: s, PostDate: tx.PostDate})
	}
	sortPostings(out)
	return out
}

// CommoditySplits returns postings on every account linked to the commodity
// with a post date at or before through, ordered by (post date, split id).
// A zero through means no upper bound.
func (b *Book) CommoditySplits(commodityID string, through time.Time) []model.Posting {
	var out []model.Posting
	for _, a := range b.accounts {
		if a.CommodityID != commodityID || commodityID == "" {
			continue
		}
		for _, p := range b.Postings(a.ID) {
			if !through.IsZero() && p.PostDate.After(through) {
				continue
			}
			out = append(out, p)
		}
	}
	sortPostings(out)
	return out
}

func sortPostings(ps []model.Posting) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].PostDate.Equal(ps[j].PostDate) {
			return ps[i].PostDate.Before(ps[j].PostDate)
		}
		return ps[i].ID < ps[j].ID
	})
}

// StockSplits returns the split events of a commodity ordered by date.
func (b *Book) StockSplits(commodityID string) []model.StockSplit {
	return b.stockSplits[commodityID]
}

// Prices returns the quotes of a commodity ordered by timestamp.
func (b *Book) Prices(commodityID string) []model.Price {
	return b.prices[commodityID]
}

// --- writes ---

// InsertAccount adds a new account.
func (b *Book) InsertAccount(a model.Account) error {
	if _, ok := b.accounts[a.ID]; ok {
		return fmt.Errorf("inserting account %s: already exists", a.ID)
	}
	b.PutAccount(a)
	b.record(Change{Op: OpInsertAccount, ID: a.ID, Account: a})
	return nil
}

// InsertCommodity adds a new commodity.
func (b *Book) InsertCommodity(c model.Commodity) error {
	if _, ok := b.commodities[c.ID]; ok {
		return fmt.Errorf("inserting commodity %s: already exists", c.ID)
	}
	b.PutCommodity(c)
	b.record(Change{Op: OpInsertCommodity, ID: c.ID, Commodity: c})
	return nil
}

// LinkCommodity sets an account's commodity link. An empty commodityID clears it.
func (b *Book) LinkCommodity(accountID, commodityID string) error {
	return b.updateAccount(OpLinkCommodity, accountID, func(a *model.Account) {
		a.CommodityID = commodityID
	})
}

// SetAccountFlags replaces an account's own flags.
func (b *Book) SetAccountFlags(accountID string, flags model.AccountFlags) error {
	return b.updateAccount(OpSetAccountFlags, accountID, func(a *model.Account) {
		a.Flags = flags
	})
}

// ReparentAccount moves an account under parentID and renames it.
func (b *Book) ReparentAccount(accountID, parentID, name string) error {
	if _, ok := b.accounts[parentID]; !ok {
		return fmt.Errorf("reparenting %s: parent %s: %w", accountID, parentID, ErrNotFound)
	}
	return b.updateAccount(OpReparentAccount, accountID, func(a *model.Account) {
		a.ParentID = parentID
		a.Name = name
	})
}

func (b *Book) updateAccount(op Op, id string, mutate func(*model.Account)) error {
	a, err := b.Account(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	mutate(&a)
	b.PutAccount(a)
	b.record(Change{Op: op, ID: id, Account: a})
	return nil
}

// SetSplitQuantity overwrites a split's quantity.
func (b *Book) SetSplitQuantity(splitID string, qty decimal.Decimal) error {
	s, err := b.Split(splitID)
	if err != nil {
		return fmt.Errorf("%s: %w", OpSetSplitQuantity, err)
	}
	s.Quantity = qty
	b.splits[splitID] = s
	b.record(Change{Op: OpSetSplitQuantity, ID: splitID, Quantity: qty})
	return nil
}

// DeleteSplit removes a split.
func (b *Book) DeleteSplit(splitID string) error {
	s, err := b.Split(splitID)
	if err != nil {
		return fmt.Errorf("%s: %w", OpDeleteSplit, err)
	}
	delete(b.splits, splitID)
	b.unindex(b.accountSplit, s.AccountID, s.ID)
	b.unindex(b.txSplit, s.TransactionID, s.ID)
	b.record(Change{Op: OpDeleteSplit, ID: splitID})
	return nil
}

// DeleteTransaction removes a transaction header. Its splits, if any, are
// left in place.
func (b *Book) DeleteTransaction(txID string) error {
	if _, err := b.Transaction(txID); err != nil {
		return fmt.Errorf("%s: %w", OpDeleteTransaction, err)
	}
	delete(b.transactions, txID)
	b.record(Change{Op: OpDeleteTransaction, ID: txID})
	return nil
}

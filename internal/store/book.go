package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tallybooks/tally/internal/ledger"
)

// ErrNoBook is returned by Load when the database has not been initialized.
var ErrNoBook = errors.New("database holds no book; run init first")

// Load reads the whole book into memory.
func Load(ctx context.Context, db *gorm.DB) (*ledger.Book, string, error) {
	db = db.WithContext(ctx)

	var meta bookRow
	if err := db.First(&meta).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNoBook
		}
		return nil, "", fmt.Errorf("reading book: %w", err)
	}
	book := ledger.NewBook(meta.RootAccountID)

	var accounts []accountRow
	if err := db.Find(&accounts).Error; err != nil {
		return nil, "", fmt.Errorf("reading accounts: %w", err)
	}
	for _, r := range accounts {
		book.PutAccount(r.toModel())
	}

	var commodities []commodityRow
	if err := db.Find(&commodities).Error; err != nil {
		return nil, "", fmt.Errorf("reading commodities: %w", err)
	}
	for _, r := range commodities {
		book.PutCommodity(r.toModel())
	}

	var txs []transactionRow
	if err := db.Find(&txs).Error; err != nil {
		return nil, "", fmt.Errorf("reading transactions: %w", err)
	}
	for _, r := range txs {
		book.PutTransaction(r.toModel())
	}

	var splits []splitRow
	if err := db.Find(&splits).Error; err != nil {
		return nil, "", fmt.Errorf("reading splits: %w", err)
	}
	for _, r := range splits {
		book.PutSplit(r.toModel())
	}

	var events []stockSplitRow
	if err := db.Order("date").Find(&events).Error; err != nil {
		return nil, "", fmt.Errorf("reading stock splits: %w", err)
	}
	for _, r := range events {
		book.PutStockSplit(r.toModel())
	}

	var prices []priceRow
	if err := db.Order("quoted_at").Find(&prices).Error; err != nil {
		return nil, "", fmt.Errorf("reading prices: %w", err)
	}
	for _, r := range prices {
		book.PutPrice(r.toModel())
	}

	return book, meta.Name, nil
}

// Save writes every entity of the book, inserting or overwriting rows by id.
// It is used to seed a new database.
func Save(ctx context.Context, db *gorm.DB, name string, book *ledger.Book) error {
	upsert := clause.OnConflict{UpdateAll: true}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(upsert).Create(&bookRow{ID: "default", Name: name, RootAccountID: book.RootID()}).Error; err != nil {
			return fmt.Errorf("writing book: %w", err)
		}
		for _, a := range book.Accounts() {
			row := fromAccount(a)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("writing account %s: %w", a.ID, err)
			}
		}
		for _, c := range book.Commodities() {
			row := fromCommodity(c)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("writing commodity %s: %w", c.ID, err)
			}
			for _, ev := range book.StockSplits(c.ID) {
				evRow := fromStockSplit(ev)
				if err := tx.Clauses(upsert).Create(&evRow).Error; err != nil {
					return fmt.Errorf("writing stock split %s: %w", ev.ID, err)
				}
			}
			for _, p := range book.Prices(c.ID) {
				pRow := fromPrice(p)
				if err := tx.Clauses(upsert).Create(&pRow).Error; err != nil {
					return fmt.Errorf("writing price %s: %w", p.ID, err)
				}
			}
		}
		for _, t := range book.Transactions() {
			row := fromTransaction(t)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("writing transaction %s: %w", t.ID, err)
			}
		}
		for _, s := range book.Splits() {
			row := fromSplit(s)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("writing split %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

// Apply persists the book's recorded changes in one database transaction.
func Apply(ctx context.Context, db *gorm.DB, changes []ledger.Change) error {
	if len(changes) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, c := range changes {
			if err := applyOne(tx, c); err != nil {
				return fmt.Errorf("change %d (%s %s): %w", i, c.Op, c.ID, err)
			}
		}
		return nil
	})
}

func applyOne(tx *gorm.DB, c ledger.Change) error {
	switch c.Op {
	case ledger.OpInsertAccount:
		row := fromAccount(c.Account)
		return tx.Create(&row).Error
	case ledger.OpLinkCommodity, ledger.OpSetAccountFlags, ledger.OpReparentAccount:
		row := fromAccount(c.Account)
		return tx.Save(&row).Error
	case ledger.OpInsertCommodity:
		row := fromCommodity(c.Commodity)
		return tx.Create(&row).Error
	case ledger.OpSetSplitQuantity:
		return tx.Model(&splitRow{}).Where("id = ?", c.ID).Update("quantity", c.Quantity).Error
	case ledger.OpDeleteSplit:
		return tx.Delete(&splitRow{}, "id = ?", c.ID).Error
	case ledger.OpDeleteTransaction:
		return tx.Delete(&transactionRow{}, "id = ?", c.ID).Error
	default:
		return fmt.Errorf("unknown op %q", c.Op)
	}
}

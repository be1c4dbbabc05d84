package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tallybooks/tally/internal/config"
	"github.com/tallybooks/tally/internal/ledger"
	"github.com/tallybooks/tally/internal/log"
	"github.com/tallybooks/tally/internal/model"
	"github.com/tallybooks/tally/internal/store"
)

const configFlag = "config"

// session is what every command after init works with: the project's
// configuration, a logger, the open database and the loaded book.
type session struct {
	cfg  *config.Config
	lg   log.Logger
	db   *gorm.DB
	book *ledger.Book
	name string
}

func openSession(cmd *cobra.Command) (*session, error) {
	path, err := cmd.Root().PersistentFlags().GetString(configFlag)
	if err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(absPath)
	if err != nil {
		return nil, err
	}
	cfg.Resolve(filepath.Dir(absPath))

	lg, err := log.NewZapLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	lg = lg.WithName(cmd.Name())

	db, err := store.Connect(cfg.Database, lg)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, lg: lg, db: db}

	book, name, err := store.Load(cmd.Context(), db)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.book = book
	s.name = name
	lg.Debug("book loaded", "book", name, "driver", cfg.Database.Driver)
	return s, nil
}

// Close releases the database and flushes the logger.
func (s *session) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if z, ok := s.lg.(interface{ Sync() error }); ok {
		_ = z.Sync()
	}
}

// dateFlag parses an optional YYYY-MM-DD flag value, falling back to def.
func dateFlag(value string, def time.Time) (time.Time, error) {
	if value == "" {
		return def, nil
	}
	d, err := model.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", value, err)
	}
	return d, nil
}

func today() time.Time {
	now := time.Now()
	return model.Date(now.Year(), now.Month(), now.Day())
}

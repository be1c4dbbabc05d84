// Package store persists books in a relational database through gorm.
package store

import (
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // database/sql driver for goose and sqlx
	"github.com/pressly/goose/v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tallybooks/tally/internal/log"
)

//go:embed migrations/postgres/*.sql
var embedMigrations embed.FS

// DatabaseConfig selects and addresses the database.
//
// The sqlite driver needs only Name (a file path); an empty Name uses a
// private in-memory database. postgres and mysql use the network fields.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"TALLY_DATABASE_DRIVER" env-default:"sqlite" validate:"oneof=sqlite postgres mysql"`
	Name     string `yaml:"name" env:"TALLY_DATABASE_NAME" env-default:"tally.db"`
	Schema   string `yaml:"schema,omitempty" env:"TALLY_DATABASE_SCHEMA"`
	Host     string `yaml:"host,omitempty" env:"TALLY_DATABASE_HOST" env-default:"localhost"`
	Port     string `yaml:"port,omitempty" env:"TALLY_DATABASE_PORT"`
	Username string `yaml:"username,omitempty" env:"TALLY_DATABASE_USERNAME"`
	Password string `yaml:"-" env:"TALLY_DATABASE_PASSWORD"`
}

// Connect opens the database and brings its schema up to date.
func Connect(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	if lg == nil {
		lg = log.NewNoopLogger()
	}
	switch cnf.Driver {
	case "sqlite", "":
		return connectSqlite(cnf, lg)
	case "postgres":
		return connectPostgres(cnf, lg)
	case "mysql":
		return connectMysql(cnf, lg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cnf.Driver)
	}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
}

func connectSqlite(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	var dsn string
	if cnf.Name != "" {
		dsn = fmt.Sprintf("file:%s?cache=shared", cnf.Name)
	} else {
		dsn = "file::memory:?cache=shared"
	}
	lg.Debug("connecting to sqlite", "dsn", dsn)

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrating sqlite: %w", err)
	}
	return db, nil
}

func connectMysql(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	port := cnf.Port
	if port == "" {
		port = "3306"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
		cnf.Username, cnf.Password, cnf.Host, port, cnf.Name)
	lg.Debug("connecting to mysql", "host", cnf.Host, "db", cnf.Name)

	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening mysql: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrating mysql: %w", err)
	}
	return db, nil
}

func connectPostgres(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	if err := ensurePostgresSchema(cnf, lg); err != nil {
		return nil, fmt.Errorf("ensuring postgres schema: %w", err)
	}
	if err := migratePostgres(cnf, lg); err != nil {
		return nil, fmt.Errorf("applying postgres migrations: %w", err)
	}

	db, err := gorm.Open(postgres.Open(postgresDSN(cnf)), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	return db, nil
}

func postgresDSN(cnf DatabaseConfig) string {
	port := cnf.Port
	if port == "" {
		port = "5432"
	}
	dsn := fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cnf.Username, cnf.Password, cnf.Host, port, cnf.Name)
	if cnf.Schema != "" {
		dsn = fmt.Sprintf("%s search_path=%s", dsn, cnf.Schema)
	}
	return dsn
}

func ensurePostgresSchema(cnf DatabaseConfig, lg log.Logger) error {
	if cnf.Schema == "" {
		return nil
	}
	plain := cnf
	plain.Schema = ""
	db, err := sqlx.Connect("postgres", postgresDSN(plain))
	if err != nil {
		return err
	}
	defer db.Close()

	var exists bool
	if err := db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)", cnf.Schema); err != nil {
		return fmt.Errorf("checking schema: %w", err)
	}
	if exists {
		return nil
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", cnf.Schema)); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	lg.Info("created schema", "schema", cnf.Schema)
	return nil
}

func migratePostgres(cnf DatabaseConfig, lg log.Logger) error {
	db, err := goose.OpenDBWithDriver("postgres", postgresDSN(cnf))
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations/postgres"); err != nil {
		return err
	}
	lg.Debug("applied migrations")
	return nil
}

// AutoMigrate creates or updates the tables for drivers without versioned migrations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&bookRow{}, &accountRow{}, &commodityRow{}, &transactionRow{}, &splitRow{}, &stockSplitRow{}, &priceRow{})
}

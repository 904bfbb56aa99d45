package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/config"
)

// Pool fallbacks for configs that leave the sizing unset
const (
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 5
	defaultConnLifetime = 5 * time.Minute
)

// DB wraps the shared sqlx connection pool
type DB struct {
	*sqlx.DB
}

// NewConnection opens the pool, sizes it from config, and verifies it with
// a ping
func NewConnection(cfg config.DatabaseConfig, log *logrus.Logger) (*DB, error) {
	db, err := sqlx.Connect("postgres", keywordDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	lifetime := defaultConnLifetime
	if cfg.ConnLifetimeMinutes > 0 {
		lifetime = time.Duration(cfg.ConnLifetimeMinutes) * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	log.WithFields(logrus.Fields{
		"host":           cfg.Host,
		"database":       cfg.Database,
		"max_open_conns": maxOpen,
	}).Info("connected to postgres")

	return &DB{db}, nil
}

// Health reports whether the pool can still reach the database
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// keywordDSN is the keyword/value form lib/pq takes
func keywordDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
}

// migrateURL is the URL form golang-migrate takes. Credentials go through
// url.UserPassword so passwords with reserved characters survive.
func migrateURL(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     cfg.Database,
		RawQuery: "sslmode=" + cfg.SSLMode,
	}
	return u.String()
}

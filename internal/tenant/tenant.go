// Package tenant opens short-lived pools against tenant databases and writes rows into them.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/shared/postgresql"
)

// Config bounds tenant pools.
type Config struct {
	MaxOpenConns     int
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// Opener builds one pool per call. Pools are never shared across jobs or tenants.
type Opener struct {
	cfg    Config
	logger *slog.Logger
}

// NewOpener creates an Opener with defaults for unset limits.
func NewOpener(cfg Config, logger *slog.Logger) *Opener {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 5
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 30 * time.Second
	}
	return &Opener{cfg: cfg, logger: logger}
}

func (o *Opener) pgConfig(p domain.ConnectionParams) *postgresql.Config {
	sslMode := "disable"
	if p.SSL {
		sslMode = "require"
	}
	return &postgresql.Config{
		Host:            p.Host,
		Port:            p.Port,
		User:            p.Username,
		Password:        p.Password,
		Database:        p.DatabaseName,
		SSLMode:         sslMode,
		ConnectTimeout:  o.cfg.ConnectTimeout,
		MaxOpenConns:    o.cfg.MaxOpenConns,
		MaxIdleConns:    o.cfg.MaxOpenConns,
		ConnMaxLifetime: time.Minute,
	}
}

// Probe checks that the tenant database accepts the credentials, within the connect timeout.
func (o *Opener) Probe(ctx context.Context, p domain.ConnectionParams) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ConnectTimeout)
	defer cancel()

	if err := postgresql.Probe(ctx, o.pgConfig(p)); err != nil {
		o.logger.Warn("Tenant database probe failed",
			slog.String("host", p.Host),
			slog.String("database", p.DatabaseName),
			slog.String("reason", Describe(err)),
		)
		return fmt.Errorf("%w: %s", domain.ErrConnectionTestFailed, Describe(err))
	}
	return nil
}

// WithPool opens a pool, hands it to fn and always closes it before returning.
// The whole call is bounded by the operation timeout.
func (o *Opener) WithPool(ctx context.Context, p domain.ConnectionParams, fn func(ctx context.Context, db *sqlx.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.OperationTimeout)
	defer cancel()

	db, err := postgresql.Open(ctx, o.pgConfig(p))
	if err != nil {
		return fmt.Errorf("failed to open tenant database %s/%s: %s", p.Host, p.DatabaseName, Describe(err))
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			o.logger.Warn("Failed to close tenant pool", slog.Any("error", cerr))
		}
	}()

	return fn(ctx, db)
}

// IsRowRejected reports whether the database refused one row's values, through a data
// exception or a not-null violation, leaving the connection usable for the next row.
func IsRowRejected(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code.Class() == "22" || pqErr.Code == "23502"
}

// Describe turns a driver error into a message safe to show a user.
// It never includes the DSN.
func Describe(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "invalid_password", "invalid_authorization_specification":
			return "authentication failed"
		case "invalid_catalog_name":
			return "database does not exist"
		}
		return pqErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "could not reach database: " + opErr.Err.Error()
	}
	return "could not reach database"
}

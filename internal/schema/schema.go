// Package schema owns the table shapes written into tenant databases.
//
// Table names are interpolated into DDL and DML because Postgres does not bind
// identifiers. Names are restricted to a plain identifier charset, and anything
// that passes is trusted: the tenant owns the database being written.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}(\.[A-Za-z_][A-Za-z0-9_]{0,62})?$`)

// ValidateIdentifier accepts table or schema.table made of letters, digits and underscores.
func ValidateIdentifier(name string) error {
	if !identPattern.MatchString(name) {
		return domain.NewValidationError("target_table",
			"must be a plain SQL identifier (letters, digits, underscore, optional schema prefix)")
	}
	return nil
}

const nftBidsDDL = `CREATE TABLE IF NOT EXISTS %s (
    id SERIAL PRIMARY KEY,
    marketplace VARCHAR(100) NOT NULL,
    auction_house VARCHAR(100),
    token_address VARCHAR(44) NOT NULL,
    token_mint VARCHAR(44) NOT NULL,
    buyer VARCHAR(44) NOT NULL,
    price BIGINT NOT NULL,
    token_size INTEGER,
    expiry TIMESTAMP,
    bid_id VARCHAR(100) NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (marketplace, bid_id)
)`

const nftPricesDDL = `CREATE TABLE IF NOT EXISTS %s (
    id SERIAL PRIMARY KEY,
    marketplace VARCHAR(100) NOT NULL,
    token_address VARCHAR(44) NOT NULL,
    token_mint VARCHAR(44) NOT NULL,
    collection_address VARCHAR(44),
    price_lamports BIGINT NOT NULL,
    price_usd DECIMAL(15,2),
    seller VARCHAR(44) NOT NULL,
    listing_id VARCHAR(100) NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (marketplace, listing_id)
)`

const tokenBorrowingDDL = `CREATE TABLE IF NOT EXISTS %s (
    id SERIAL PRIMARY KEY,
    protocol VARCHAR(100) NOT NULL,
    reserve_address VARCHAR(44) NOT NULL,
    token_mint VARCHAR(44) NOT NULL,
    token_symbol VARCHAR(20) NOT NULL,
    available_amount BIGINT NOT NULL,
    borrow_apy DECIMAL(5,2),
    ltv_ratio DECIMAL(5,2),
    liquidation_threshold DECIMAL(5,2),
    liquidation_penalty DECIMAL(5,2),
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (protocol, reserve_address)
)`

const tokenPricesDDL = `CREATE TABLE IF NOT EXISTS %s (
    id SERIAL PRIMARY KEY,
    token_mint VARCHAR(44) NOT NULL,
    token_symbol VARCHAR(20) NOT NULL,
    dex VARCHAR(100) NOT NULL,
    pool_address VARCHAR(44) NOT NULL,
    price_usd DECIMAL(15,2) NOT NULL,
    volume_24h DECIMAL(15,2),
    liquidity_usd DECIMAL(15,2),
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (dex, pool_address)
)`

// ConflictKey is the natural dedup key of each job type's table.
var ConflictKey = map[domain.JobType][]string{
	domain.JobTypeNFTBids:        {"marketplace", "bid_id"},
	domain.JobTypeNFTPrices:      {"marketplace", "listing_id"},
	domain.JobTypeTokenBorrowing: {"protocol", "reserve_address"},
	domain.JobTypeTokenPrices:    {"dex", "pool_address"},
}

// DDL renders the CREATE TABLE IF NOT EXISTS statement for a job type.
func DDL(t domain.JobType, table string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", err
	}

	var tmpl string
	switch t {
	case domain.JobTypeNFTBids:
		tmpl = nftBidsDDL
	case domain.JobTypeNFTPrices:
		tmpl = nftPricesDDL
	case domain.JobTypeTokenBorrowing:
		tmpl = tokenBorrowingDDL
	case domain.JobTypeTokenPrices:
		tmpl = tokenPricesDDL
	default:
		return "", domain.NewFatalError(fmt.Errorf("no table template for job type %q", t))
	}
	return fmt.Sprintf(tmpl, table), nil
}

// Execer is satisfied by *sqlx.DB, *sql.DB and transactions.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// EnsureTable creates the target table for a job type if it does not exist. Safe to call before every batch.
func EnsureTable(ctx context.Context, db Execer, t domain.JobType, table string) error {
	ddl, err := DDL(t, table)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure table %s: %w", table, err)
	}
	return nil
}

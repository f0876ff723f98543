package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

type connectionRow struct {
	ID           string    `db:"id"`
	OwnerID      string    `db:"owner_id"`
	Name         string    `db:"name"`
	Host         string    `db:"host"`
	Port         int       `db:"port"`
	Username     string    `db:"username"`
	Password     string    `db:"password"`
	DatabaseName string    `db:"database_name"`
	SSL          bool      `db:"ssl"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r connectionRow) toRecord() *domain.ConnectionRecord {
	return &domain.ConnectionRecord{
		Connection: domain.Connection{
			ID:           r.ID,
			OwnerID:      r.OwnerID,
			Name:         r.Name,
			Host:         r.Host,
			Port:         r.Port,
			Username:     r.Username,
			DatabaseName: r.DatabaseName,
			SSL:          r.SSL,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
		},
		EncryptedPassword: r.Password,
	}
}

const connectionColumns = `id, owner_id, name, host, port, username, password, database_name, ssl, created_at, updated_at`

// CreateConnection inserts rec and fills in its timestamps.
func (s *Storage) CreateConnection(ctx context.Context, rec *domain.ConnectionRecord) error {
	query := `
		INSERT INTO connections (
			id, owner_id, name, host, port,
			username, password, database_name, ssl
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowxContext(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.Name,
		rec.Host,
		rec.Port,
		rec.Username,
		rec.EncryptedPassword,
		rec.DatabaseName,
		rec.SSL,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}

	s.logger.Info("Connection created",
		slog.String("connection_id", rec.ID),
		slog.String("owner_id", rec.OwnerID),
	)
	return nil
}

// GetConnectionByID loads a connection regardless of owner.
func (s *Storage) GetConnectionByID(ctx context.Context, id string) (*domain.ConnectionRecord, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	var row connectionRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return row.toRecord(), nil
}

// ListConnections returns the owner's connections, newest first.
func (s *Storage) ListConnections(ctx context.Context, ownerID string) ([]*domain.ConnectionRecord, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`

	var rows []connectionRow
	if err := s.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	out := make([]*domain.ConnectionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord())
	}
	return out, nil
}

// UpdateConnection overwrites the mutable fields of rec, scoped to its owner.
func (s *Storage) UpdateConnection(ctx context.Context, rec *domain.ConnectionRecord) error {
	query := `
		UPDATE connections
		SET name = $1,
		    host = $2,
		    port = $3,
		    username = $4,
		    password = $5,
		    database_name = $6,
		    ssl = $7,
		    updated_at = NOW()
		WHERE id = $8 AND owner_id = $9
		RETURNING updated_at
	`

	err := s.db.QueryRowxContext(ctx, query,
		rec.Name,
		rec.Host,
		rec.Port,
		rec.Username,
		rec.EncryptedPassword,
		rec.DatabaseName,
		rec.SSL,
		rec.ID,
		rec.OwnerID,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update connection: %w", err)
	}
	return nil
}

// DeleteConnection removes an owner's connection. Jobs referencing it are left in place.
func (s *Storage) DeleteConnection(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	s.logger.Info("Connection deleted", slog.String("connection_id", id))
	return nil
}

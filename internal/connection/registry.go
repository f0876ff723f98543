// Package connection manages tenant database connections: validation, liveness checks and sealed credentials.
package connection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

// Store persists connection records.
type Store interface {
	CreateConnection(ctx context.Context, rec *domain.ConnectionRecord) error
	GetConnectionByID(ctx context.Context, id string) (*domain.ConnectionRecord, error)
	ListConnections(ctx context.Context, ownerID string) ([]*domain.ConnectionRecord, error)
	UpdateConnection(ctx context.Context, rec *domain.ConnectionRecord) error
	DeleteConnection(ctx context.Context, id, ownerID string) error
}

// Prober checks that a tenant database is reachable.
type Prober interface {
	Probe(ctx context.Context, p domain.ConnectionParams) error
}

// Sealer encrypts and decrypts stored passwords.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// Registry is the owner-scoped connection service.
type Registry struct {
	store  Store
	prober Prober
	vault  Sealer
	logger *slog.Logger
}

// NewRegistry creates a Registry
func NewRegistry(store Store, prober Prober, vault Sealer, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		prober: prober,
		vault:  vault,
		logger: logger,
	}
}

// Test validates in and checks the database is reachable without storing anything.
func (r *Registry) Test(ctx context.Context, in domain.ConnectionInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	return r.prober.Probe(ctx, in.Params())
}

// Create stores a connection after a successful liveness check.
// The password is sealed before it reaches storage.
func (r *Registry) Create(ctx context.Context, ownerID string, in domain.ConnectionInput) (*domain.Connection, error) {
	if err := r.Test(ctx, in); err != nil {
		return nil, err
	}

	sealed, err := r.vault.Encrypt(in.Password)
	if err != nil {
		return nil, err
	}

	rec := &domain.ConnectionRecord{
		Connection: domain.Connection{
			ID:           uuid.New().String(),
			OwnerID:      ownerID,
			Name:         in.DisplayName(),
			Host:         in.Host,
			Port:         in.Port,
			Username:     in.Username,
			DatabaseName: in.DatabaseName,
			SSL:          in.SSL,
		},
		EncryptedPassword: sealed,
	}
	if err := r.store.CreateConnection(ctx, rec); err != nil {
		return nil, err
	}

	conn := rec.Connection
	return &conn, nil
}

// Get returns the owner's connection. Connections of other owners are reported as not found.
func (r *Registry) Get(ctx context.Context, ownerID, id string) (*domain.Connection, error) {
	rec, err := r.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	conn := rec.Connection
	return &conn, nil
}

// List returns every connection of the owner.
func (r *Registry) List(ctx context.Context, ownerID string) ([]domain.Connection, error) {
	recs, err := r.store.ListConnections(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Connection, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Connection)
	}
	return out, nil
}

// Update applies patch. When a field that affects reachability changes, the
// merged settings must pass a liveness check before anything is written.
func (r *Registry) Update(ctx context.Context, ownerID, id string, patch domain.ConnectionPatch) (*domain.Connection, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	rec, err := r.load(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	updated := &domain.ConnectionRecord{
		Connection:        patch.Apply(rec.Connection),
		EncryptedPassword: rec.EncryptedPassword,
	}

	if patch.AffectsConnectivity() {
		password, err := r.password(rec, patch)
		if err != nil {
			return nil, err
		}
		if err := r.prober.Probe(ctx, updated.Params(password)); err != nil {
			return nil, err
		}
	}

	if patch.Password != nil {
		sealed, err := r.vault.Encrypt(*patch.Password)
		if err != nil {
			return nil, err
		}
		updated.EncryptedPassword = sealed
	}

	if err := r.store.UpdateConnection(ctx, updated); err != nil {
		return nil, err
	}

	r.logger.Info("Connection updated",
		slog.String("connection_id", id),
		slog.Bool("retested", patch.AffectsConnectivity()),
	)
	conn := updated.Connection
	return &conn, nil
}

// Delete removes the owner's connection. Jobs pointing at it are not touched.
func (r *Registry) Delete(ctx context.Context, ownerID, id string) error {
	if err := r.store.DeleteConnection(ctx, id, ownerID); err != nil {
		return err
	}
	r.logger.Info("Connection deleted", slog.String("connection_id", id))
	return nil
}

// Owned loads a connection with its sealed password, scoped to ownerID.
func (r *Registry) Owned(ctx context.Context, ownerID, id string) (*domain.ConnectionRecord, error) {
	return r.load(ctx, ownerID, id)
}

func (r *Registry) load(ctx context.Context, ownerID, id string) (*domain.ConnectionRecord, error) {
	rec, err := r.store.GetConnectionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (r *Registry) password(rec *domain.ConnectionRecord, patch domain.ConnectionPatch) (string, error) {
	if patch.Password != nil {
		return *patch.Password, nil
	}
	password, err := r.vault.Decrypt(rec.EncryptedPassword)
	if err != nil {
		return "", fmt.Errorf("failed to open stored password: %w", err)
	}
	return password, nil
}

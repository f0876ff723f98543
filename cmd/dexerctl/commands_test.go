package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/vault"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type fakeMigrator struct{ err error }

func (f *fakeMigrator) Migrate(context.Context) error { return f.err }

type fakeLogs struct {
	logs     []domain.JobLog
	gotLimit int
}

func (f *fakeLogs) ListLogs(_ context.Context, _ string, limit int) ([]domain.JobLog, error) {
	f.gotLimit = limit
	return f.logs, nil
}

type fakeRequeuer struct{ err error }

func (f *fakeRequeuer) RequeueSetup(context.Context, string) error { return f.err }

type fakeConnections map[string]*domain.ConnectionRecord

func (f fakeConnections) GetConnectionByID(_ context.Context, id string) (*domain.ConnectionRecord, error) {
	rec, ok := f[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func TestMigrateCmd(t *testing.T) {
	out, err := execute(t, MigrateCmd(func(context.Context) (Migrator, error) { return &fakeMigrator{}, nil }))
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date.")

	_, err = execute(t, MigrateCmd(func(context.Context) (Migrator, error) {
		return &fakeMigrator{err: errors.New("relation locked")}, nil
	}))
	assert.ErrorContains(t, err, "relation locked")
}

func TestLogsCmd(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	logs := &fakeLogs{logs: []domain.JobLog{
		{JobID: "j1", LogLevel: domain.LogLevelError, Message: "Webhook setup failed", CreatedAt: at},
		{JobID: "j1", LogLevel: domain.LogLevelInfo, Message: "Job created", CreatedAt: at.Add(-time.Minute)},
	}}
	open := func(context.Context) (LogReader, error) { return logs, nil }

	tests := []struct {
		name      string
		args      []string
		wantLimit int
		contains  []string
	}{
		{
			name:      "table output with default limit",
			args:      []string{"j1"},
			wantLimit: domain.DefaultLogLimit,
			contains:  []string{"TIME", "Webhook setup failed", "2026-03-01T12:00:00Z", "info"},
		},
		{
			name:      "limit is clamped",
			args:      []string{"j1", "--limit", "5000"},
			wantLimit: domain.MaxLogLimit,
			contains:  []string{"Job created"},
		},
		{
			name:      "json output",
			args:      []string{"j1", "--json", "--limit", "2"},
			wantLimit: 2,
			contains:  []string{`"log_level": "error"`, `"message": "Job created"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, LogsCmd(open), tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, logs.gotLimit)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
		})
	}

	t.Run("requires job id", func(t *testing.T) {
		_, err := execute(t, LogsCmd(open))
		assert.Error(t, err)
	})

	t.Run("empty log", func(t *testing.T) {
		out, err := execute(t, LogsCmd(func(context.Context) (LogReader, error) { return &fakeLogs{}, nil }), "j2")
		require.NoError(t, err)
		assert.Contains(t, out, "No log entries.")
	})
}

func TestSetupCmd(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr string
		wantOut string
	}{
		{name: "enqueued", wantOut: "Setup task for job j1 enqueued."},
		{name: "missing job", err: domain.ErrNotFound, wantErr: "job j1 does not exist"},
		{name: "not pending", err: fmt.Errorf("%w: job is active", domain.ErrInvalidTransition), wantErr: "job j1 is not pending"},
		{name: "broker down", err: errors.New("channel closed"), wantErr: "channel closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := SetupCmd(func(context.Context) (SetupRequeuer, error) { return &fakeRequeuer{err: tt.err}, nil })
			out, err := execute(t, cmd, "j1")
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestVaultCheckCmd(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	hexKey := hex.EncodeToString(key)

	v, err := vault.New(key)
	require.NoError(t, err)
	sealed, err := v.Encrypt("s3cret")
	require.NoError(t, err)

	other, err := vault.New(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	foreign, err := other.Encrypt("s3cret")
	require.NoError(t, err)

	conns := fakeConnections{
		"c1": {Connection: domain.Connection{ID: "c1"}, EncryptedPassword: sealed},
		"c2": {Connection: domain.Connection{ID: "c2"}, EncryptedPassword: foreign},
	}
	open := func(context.Context) (ConnectionReader, error) { return conns, nil }

	tests := []struct {
		name    string
		key     string
		args    []string
		wantErr string
		wantOut string
	}{
		{name: "valid key", key: hexKey, args: []string{"check"}, wantOut: "Encryption key is valid."},
		{name: "short key", key: "abcd", args: []string{"check"}, wantErr: "key"},
		{name: "connection decrypts", key: hexKey, args: []string{"check", "--connection", "c1"}, wantOut: "Connection c1 decrypts with this key."},
		{name: "connection sealed with another key", key: hexKey, args: []string{"check", "--connection", "c2"}, wantErr: "cannot be decrypted"},
		{name: "unknown connection", key: hexKey, args: []string{"check", "--connection", "c3"}, wantErr: "failed to load connection c3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := VaultCmd(func() (string, error) { return tt.key, nil }, open)
			out, err := execute(t, cmd, tt.args...)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

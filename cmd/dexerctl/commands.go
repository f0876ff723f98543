package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/vault"
)

// Migrator applies the metadata schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// LogReader reads a job's audit log.
type LogReader interface {
	ListLogs(ctx context.Context, jobID string, limit int) ([]domain.JobLog, error)
}

// SetupRequeuer re-enqueues setup for a job stuck in pending.
type SetupRequeuer interface {
	RequeueSetup(ctx context.Context, id string) error
}

// ConnectionReader loads a stored connection with its sealed password.
type ConnectionReader interface {
	GetConnectionByID(ctx context.Context, id string) (*domain.ConnectionRecord, error)
}

func MigrateCmd(open func(context.Context) (Migrator, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the metadata database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open(cmd.Context())
			if err != nil {
				return err
			}
			if err := m.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}

func LogsCmd(open func(context.Context) (LogReader, error)) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	logsCmd := &cobra.Command{
		Use:   "logs [job-id]",
		Short: "Show a job's log entries, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open(cmd.Context())
			if err != nil {
				return err
			}

			logs, err := r.ListLogs(cmd.Context(), args[0], domain.ClampLogLimit(limit))
			if err != nil {
				return fmt.Errorf("failed to list logs: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(logs)
			}

			if len(logs) == 0 {
				fmt.Fprintln(out, "No log entries.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tLEVEL\tMESSAGE\tDETAILS")
			for _, l := range logs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					l.CreatedAt.UTC().Format(time.RFC3339), l.LogLevel, l.Message, string(l.Details))
			}
			return tw.Flush()
		},
	}

	logsCmd.Flags().IntVar(&limit, "limit", domain.DefaultLogLimit, "Maximum number of entries")
	logsCmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return logsCmd
}

func SetupCmd(open func(context.Context) (SetupRequeuer, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "setup [job-id]",
		Short: "Re-enqueue webhook setup for a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open(cmd.Context())
			if err != nil {
				return err
			}

			jobID := args[0]
			if err := r.RequeueSetup(cmd.Context(), jobID); err != nil {
				switch {
				case errors.Is(err, domain.ErrNotFound):
					return fmt.Errorf("job %s does not exist", jobID)
				case errors.Is(err, domain.ErrInvalidTransition):
					return fmt.Errorf("job %s is not pending", jobID)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setup task for job %s enqueued.\n", jobID)
			return nil
		},
	}
}

func VaultCmd(key func() (string, error), open func(context.Context) (ConnectionReader, error)) *cobra.Command {
	vaultCmd := &cobra.Command{
		Use:   "vault",
		Short: "Inspect the credential vault",
	}

	var connectionID string
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the encryption key, optionally against a stored connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hexKey, err := key()
			if err != nil {
				return err
			}
			v, err := vault.NewFromHex(hexKey)
			if err != nil {
				return err
			}

			blob, err := v.Encrypt("dexerctl-check")
			if err != nil {
				return err
			}
			if plain, err := v.Decrypt(blob); err != nil || plain != "dexerctl-check" {
				return fmt.Errorf("%w: round trip failed", domain.ErrCrypto)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Encryption key is valid.")

			if connectionID == "" {
				return nil
			}
			r, err := open(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := r.GetConnectionByID(cmd.Context(), connectionID)
			if err != nil {
				return fmt.Errorf("failed to load connection %s: %w", connectionID, err)
			}
			if _, err := v.Decrypt(rec.EncryptedPassword); err != nil {
				return fmt.Errorf("connection %s cannot be decrypted with this key: %w", connectionID, err)
			}
			fmt.Fprintf(out, "Connection %s decrypts with this key.\n", connectionID)
			return nil
		},
	}
	checkCmd.Flags().StringVar(&connectionID, "connection", "", "Connection id whose stored password should be decrypted")

	vaultCmd.AddCommand(checkCmd)
	return vaultCmd
}

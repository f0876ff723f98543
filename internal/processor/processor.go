// Package processor turns queued webhook events into writes against a job's tenant table.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/tenant"
)

// Store resolves jobs and their connections.
type Store interface {
	GetJobByID(ctx context.Context, id string) (*domain.Job, error)
	GetConnectionByID(ctx context.Context, id string) (*domain.ConnectionRecord, error)
}

// LogSink records job audit entries.
type LogSink interface {
	AppendLog(ctx context.Context, jobID string, level domain.LogLevel, message string, details any) error
}

// Decrypter opens sealed connection passwords.
type Decrypter interface {
	Decrypt(blob string) (string, error)
}

// Targets opens a tenant table for writing.
type Targets interface {
	WithTarget(ctx context.Context, p domain.ConnectionParams, jobType domain.JobType, table string, fn func(ctx context.Context, t tenant.Target) error) error
}

// Result summarizes one processed batch.
type Result struct {
	ProcessedCount int
	Total          int
	// Rejected counts records the target table refused, such as values out of column range.
	Rejected int
	// Skipped is set when the job no longer accepts events.
	Skipped bool
}

// Processor handles webhook events for every job type.
type Processor struct {
	store     Store
	logs      LogSink
	vault     Decrypter
	targets   Targets
	extractor *Extractor
	logger    *slog.Logger
}

// New creates a Processor
func New(store Store, logs LogSink, vault Decrypter, targets Targets, extractor *Extractor, logger *slog.Logger) *Processor {
	return &Processor{
		store:     store,
		logs:      logs,
		vault:     vault,
		targets:   targets,
		extractor: extractor,
		logger:    logger,
	}
}

var labels = map[domain.JobType]struct{ success, failure string }{
	domain.JobTypeNFTBids:        {"Processed %d NFT bid transactions", "Error processing NFT bids"},
	domain.JobTypeNFTPrices:      {"Processed %d NFT price transactions", "Error processing NFT prices"},
	domain.JobTypeTokenBorrowing: {"Processed %d token borrowing reserve updates", "Error processing token borrowing"},
	domain.JobTypeTokenPrices:    {"Processed %d token price updates", "Error processing token prices"},
}

// Process writes one webhook payload into the job's target table.
//
// Re-processing the same payload converges to the same rows: listings, bids,
// reserves and pools are upserted by natural key and sales delete by mint.
// A missing job or connection yields domain.ErrNotFound. Failures other than
// a vanished job are recorded as an error log entry before being returned.
func (p *Processor) Process(ctx context.Context, jobType domain.JobType, jobID string, payload []byte) (Result, error) {
	start := time.Now()
	log := p.logger.With(slog.String("job_id", jobID), slog.String("job_type", string(jobType)))

	job, err := p.store.GetJobByID(ctx, jobID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	res, err := p.process(ctx, log, job, jobType, payload)
	if err != nil {
		label, ok := labels[jobType]
		msg := "Error processing webhook event"
		if ok {
			msg = label.failure
		}
		log.Error(msg, slog.Any("error", err))
		if logErr := p.logs.AppendLog(ctx, jobID, domain.LogLevelError, msg, map[string]string{"error": err.Error()}); logErr != nil {
			log.Error("Failed to write job log", slog.Any("error", logErr))
		}
		return res, err
	}
	if res.Skipped {
		log.Info("Dropping event for inactive job", slog.String("status", string(job.Status)))
		return res, nil
	}

	msg := fmt.Sprintf(labels[jobType].success, res.ProcessedCount)
	details := map[string]int{"processed_count": res.ProcessedCount, "total_transactions": res.Total}
	if res.Rejected > 0 {
		details["rejected_records"] = res.Rejected
	}
	if err := p.logs.AppendLog(ctx, jobID, domain.LogLevelInfo, msg, details); err != nil {
		log.Error("Failed to write job log", slog.Any("error", err))
	}

	log.Info("Webhook event processed",
		slog.Int("processed", res.ProcessedCount),
		slog.Int("total", res.Total),
		slog.Int("rejected", res.Rejected),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (p *Processor) process(ctx context.Context, log *slog.Logger, job *domain.Job, jobType domain.JobType, payload []byte) (Result, error) {
	if job.JobType != jobType {
		return Result{}, domain.NewFatalError(fmt.Errorf("event for %s delivered to %s job", jobType, job.JobType))
	}
	if !job.Status.AcceptsEvents() {
		return Result{Skipped: true}, nil
	}

	txs, err := DecodeTransactions(payload)
	if err != nil {
		return Result{}, err
	}
	res := Result{Total: len(txs)}

	mutations, err := p.extractor.Extract(ctx, job, txs)
	if err != nil {
		return res, err
	}

	conn, err := p.store.GetConnectionByID(ctx, job.ConnectionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return res, domain.NewFatalError(fmt.Errorf("connection %s no longer exists: %w", job.ConnectionID, err))
		}
		return res, fmt.Errorf("failed to load connection: %w", err)
	}

	password, err := p.vault.Decrypt(conn.EncryptedPassword)
	if err != nil {
		return res, domain.NewFatalError(err)
	}

	err = p.targets.WithTarget(ctx, conn.Params(password), job.JobType, job.TargetTable, func(ctx context.Context, t tenant.Target) error {
		for _, m := range mutations {
			var err error
			if m.Upsert != nil {
				err = t.Upsert(ctx, m.Upsert)
			} else {
				_, err = t.DeleteByTokenMint(ctx, m.DeleteMint)
			}
			if err != nil {
				if !tenant.IsRowRejected(err) {
					return err
				}
				log.Warn("Skipping record rejected by target table", slog.Any("error", err))
				res.Rejected++
				continue
			}
			res.ProcessedCount++
		}
		return nil
	})
	if err != nil {
		return res, domain.NewRetryableError(err)
	}
	return res, nil
}

// Package worker consumes setup tasks and webhook events and runs them on a bounded goroutine pool.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/metrics"
	"github.com/ritikbhatt20/Helius-Dexer/internal/processor"
	"github.com/ritikbhatt20/Helius-Dexer/internal/queue"
)

// JobStore is the slice of the metadata store the worker needs.
type JobStore interface {
	GetJobByID(ctx context.Context, id string) (*domain.Job, error)
	TransitionStatus(ctx context.Context, id string, next domain.JobStatus, webhookID *string) (*domain.Job, error)
	AppendLog(ctx context.Context, jobID string, level domain.LogLevel, message string, details any) error
}

// Provisioner creates and removes provider webhooks.
type Provisioner interface {
	CreateSubscription(ctx context.Context, job *domain.Job) (string, error)
	DeleteSubscription(ctx context.Context, webhookID string) error
}

// EventProcessor writes one webhook payload into a job's table.
type EventProcessor interface {
	Process(ctx context.Context, jobType domain.JobType, jobID string, payload []byte) (processor.Result, error)
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Broker      queue.Broker
	Jobs        JobStore
	Provisioner Provisioner
	Processor   EventProcessor
	Metrics     *metrics.Metrics

	WorkerID    string
	Queues      []string
	Concurrency int
	JobTimeout  time.Duration

	// MaxAttempts bounds deliveries of one event, the first included.
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Worker represents the background task worker
type Worker struct {
	logger      *slog.Logger
	broker      queue.Broker
	jobs        JobStore
	provisioner Provisioner
	processor   EventProcessor
	metrics     *metrics.Metrics

	workerID       string
	queues         []string
	concurrency    int
	jobTimeout     time.Duration
	maxAttempts    int
	retryBaseDelay time.Duration

	jobsChan chan *task
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = queue.Names()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Worker{
		logger:         cfg.Logger,
		broker:         cfg.Broker,
		jobs:           cfg.Jobs,
		provisioner:    cfg.Provisioner,
		processor:      cfg.Processor,
		metrics:        cfg.Metrics,
		workerID:       cfg.WorkerID,
		queues:         queues,
		concurrency:    concurrency,
		jobTimeout:     cfg.JobTimeout,
		maxAttempts:    maxAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		jobsChan:       make(chan *task),
		stopChan:       make(chan struct{}),
	}
}

// Start subscribes to every queue and dispatches deliveries to the pool.
// It blocks until ctx is canceled or a delivery stream ends unexpectedly.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Int("max_attempts", w.maxAttempts),
	)

	streams := make(map[string]<-chan queue.Delivery, len(w.queues))
	for _, q := range w.queues {
		deliveries, err := w.setupConsumer(ctx, q)
		if err != nil {
			return err
		}
		streams[q] = deliveries
	}

	w.spawnWorkerPool(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for q, deliveries := range streams {
		g.Go(func() error {
			return w.startMessageDispatcher(gctx, q, deliveries)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop waits for in-flight tasks to finish.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// taskContext detaches a task from shutdown so an in-flight delivery can finish,
// bounded by the per-task timeout.
func (w *Worker) taskContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if w.jobTimeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, w.jobTimeout)
}

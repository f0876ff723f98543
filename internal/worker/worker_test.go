package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/metrics"
	"github.com/ritikbhatt20/Helius-Dexer/internal/processor"
	"github.com/ritikbhatt20/Helius-Dexer/internal/queue"
	"github.com/ritikbhatt20/Helius-Dexer/shared/logger"
)

type logRecord struct {
	level   domain.LogLevel
	message string
	details any
}

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
	logs map[string][]logRecord
	// beforeTransition runs before every status change, outside the lock.
	beforeTransition func(id string, next domain.JobStatus)
}

func newMemJobs(jobs ...*domain.Job) *memJobs {
	s := &memJobs{jobs: map[string]*domain.Job{}, logs: map[string][]logRecord{}}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *memJobs) GetJobByID(_ context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *memJobs) TransitionStatus(_ context.Context, id string, next domain.JobStatus, webhookID *string) (*domain.Job, error) {
	if s.beforeTransition != nil {
		s.beforeTransition(id, next)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !j.Status.CanTransitionTo(next) {
		cp := *j
		return &cp, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	if webhookID != nil {
		j.WebhookID = webhookID
	}
	cp := *j
	return &cp, nil
}

func (s *memJobs) AppendLog(_ context.Context, jobID string, level domain.LogLevel, message string, details any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[jobID] = append(s.logs[jobID], logRecord{level, message, details})
	return nil
}

func (s *memJobs) status(id string) domain.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		return j.Status
	}
	return ""
}

func (s *memJobs) logsFor(id string) []logRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]logRecord(nil), s.logs[id]...)
}

type fakeProvisioner struct {
	mu      sync.Mutex
	err     error
	created []string
	deleted []string
}

func (p *fakeProvisioner) CreateSubscription(_ context.Context, job *domain.Job) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	id := "wh-" + job.ID
	p.created = append(p.created, id)
	return id, nil
}

func (p *fakeProvisioner) DeleteSubscription(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	return nil
}

func (p *fakeProvisioner) deletedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}

type funcProcessor struct {
	calls atomic.Int32
	fn    func(attempt int) (processor.Result, error)
}

func (p *funcProcessor) Process(context.Context, domain.JobType, string, []byte) (processor.Result, error) {
	n := int(p.calls.Add(1))
	return p.fn(n)
}

type harness struct {
	broker  *queue.MemoryBroker
	jobs    *memJobs
	prov    *fakeProvisioner
	proc    *funcProcessor
	metrics *metrics.Metrics
	worker  *Worker
}

func startWorker(t *testing.T, jobs *memJobs, proc *funcProcessor) *harness {
	t.Helper()
	h := &harness{
		broker:  queue.NewMemoryBroker(),
		jobs:    jobs,
		prov:    &fakeProvisioner{},
		proc:    proc,
		metrics: metrics.New(true),
	}
	if h.proc == nil {
		h.proc = &funcProcessor{fn: func(int) (processor.Result, error) { return processor.Result{}, nil }}
	}
	h.worker = NewWorker(&Config{
		Logger:         logger.NewDiscard().Logger,
		Broker:         h.broker,
		Jobs:           h.jobs,
		Provisioner:    h.prov,
		Processor:      h.proc,
		Metrics:        h.metrics,
		WorkerID:       "test",
		Concurrency:    2,
		JobTimeout:     time.Second,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.worker.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		h.worker.Stop()
		h.broker.Close()
	})
	return h
}

func pendingJob() *domain.Job {
	return &domain.Job{
		ID:            uuid.New().String(),
		OwnerID:       "owner",
		ConnectionID:  uuid.New().String(),
		JobType:       domain.JobTypeTokenPrices,
		Configuration: domain.TokenPricesConfig{},
		TargetTable:   "prices",
		Status:        domain.JobStatusPending,
	}
}

func activeJob() *domain.Job {
	j := pendingJob()
	j.Status = domain.JobStatusActive
	return j
}

func publishEvent(t *testing.T, h *harness, job *domain.Job) {
	t.Helper()
	err := queue.NewDispatcher(h.broker).EnqueueEvent(context.Background(), queue.WebhookEvent{
		JobType: job.JobType,
		JobID:   job.ID,
		Payload: json.RawMessage(`{"transactions":[]}`),
	})
	require.NoError(t, err)
}

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func TestWorker_SetupActivatesJob(t *testing.T) {
	job := pendingJob()
	h := startWorker(t, newMemJobs(job), nil)

	require.NoError(t, queue.NewDispatcher(h.broker).EnqueueSetup(context.Background(), job.ID))

	require.Eventually(t, func() bool { return h.broker.Acked(queue.Setup) == 1 }, waitFor, tick)
	assert.Equal(t, domain.JobStatusActive, h.jobs.status(job.ID))

	stored, err := h.jobs.GetJobByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.WebhookID)
	assert.Equal(t, "wh-"+job.ID, *stored.WebhookID)

	logs := h.jobs.logsFor(job.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "Indexing job setup successful", logs[0].message)
	assert.Equal(t, map[string]string{"webhook_id": "wh-" + job.ID}, logs[0].details)

	// A redelivered setup task is a no-op.
	require.NoError(t, queue.NewDispatcher(h.broker).EnqueueSetup(context.Background(), job.ID))
	require.Eventually(t, func() bool { return h.broker.Acked(queue.Setup) == 2 }, waitFor, tick)
	assert.Len(t, h.jobs.logsFor(job.ID), 1)
}

func TestWorker_SetupFailureFailsJob(t *testing.T) {
	job := pendingJob()
	h := startWorker(t, newMemJobs(job), nil)
	h.prov.err = &domain.ProvisioningError{Op: "create", Attempts: 3, Err: errors.New("503 service unavailable")}

	require.NoError(t, queue.NewDispatcher(h.broker).EnqueueSetup(context.Background(), job.ID))

	require.Eventually(t, func() bool { return h.broker.Acked(queue.Setup) == 1 }, waitFor, tick)
	assert.Equal(t, domain.JobStatusFailed, h.jobs.status(job.ID))

	logs := h.jobs.logsFor(job.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.LogLevelError, logs[0].level)
	assert.Equal(t, "Indexing job setup failed", logs[0].message)
}

func TestWorker_SetupRemovesOrphanWhenJobDeleted(t *testing.T) {
	job := pendingJob()
	jobs := newMemJobs(job)
	jobs.beforeTransition = func(id string, next domain.JobStatus) {
		if next == domain.JobStatusActive {
			jobs.mu.Lock()
			delete(jobs.jobs, id)
			jobs.mu.Unlock()
		}
	}
	h := startWorker(t, jobs, nil)

	require.NoError(t, queue.NewDispatcher(h.broker).EnqueueSetup(context.Background(), job.ID))

	require.Eventually(t, func() bool { return h.broker.Acked(queue.Setup) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"wh-" + job.ID}, h.prov.deletedIDs())
}

func TestWorker_EventRetriesThenSucceeds(t *testing.T) {
	job := activeJob()
	proc := &funcProcessor{fn: func(n int) (processor.Result, error) {
		if n < 3 {
			return processor.Result{}, domain.NewRetryableError(errors.New("connection refused"))
		}
		return processor.Result{ProcessedCount: 4, Total: 4}, nil
	}}
	h := startWorker(t, newMemJobs(job), proc)

	publishEvent(t, h, job)

	q := string(job.JobType)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.Deliveries.WithLabelValues(q, outcomeAck)) == 1
	}, waitFor, tick)
	assert.Equal(t, 3, h.broker.Acked(q))
	assert.Equal(t, int32(3), proc.calls.Load())
	assert.Equal(t, domain.JobStatusActive, h.jobs.status(job.ID))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Deliveries.WithLabelValues(q, outcomeRetry)))
	assert.Equal(t, 4.0, testutil.ToFloat64(h.metrics.RecordsWritten.WithLabelValues(q)))
}

func TestWorker_EventRetriesExhausted(t *testing.T) {
	job := activeJob()
	proc := &funcProcessor{fn: func(int) (processor.Result, error) {
		return processor.Result{}, errors.New("deadlock detected")
	}}
	h := startWorker(t, newMemJobs(job), proc)

	publishEvent(t, h, job)

	q := string(job.JobType)
	require.Eventually(t, func() bool { return h.broker.Rejected(q) == 1 }, waitFor, tick)
	assert.Equal(t, int32(3), proc.calls.Load())
	assert.Equal(t, domain.JobStatusFailed, h.jobs.status(job.ID))

	logs := h.jobs.logsFor(job.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "Processing retries exhausted", logs[0].message)
}

func TestWorker_EventErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus domain.JobStatus
		wantLogs   int
	}{
		{
			name:       "job deleted",
			err:        fmt.Errorf("failed to load job: %w", domain.ErrNotFound),
			wantStatus: domain.JobStatusActive,
		},
		{
			name:       "malformed payload",
			err:        domain.NewValidationError("payload", "must be a JSON object or array"),
			wantStatus: domain.JobStatusActive,
		},
		{
			name:       "connection deleted",
			err:        domain.NewFatalError(fmt.Errorf("connection gone: %w", domain.ErrNotFound)),
			wantStatus: domain.JobStatusFailed,
			wantLogs:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := activeJob()
			proc := &funcProcessor{fn: func(int) (processor.Result, error) { return processor.Result{}, tt.err }}
			h := startWorker(t, newMemJobs(job), proc)

			publishEvent(t, h, job)

			q := string(job.JobType)
			require.Eventually(t, func() bool { return h.broker.Rejected(q) == 1 }, waitFor, tick)
			assert.Equal(t, int32(1), proc.calls.Load())
			assert.Equal(t, tt.wantStatus, h.jobs.status(job.ID))
			assert.Len(t, h.jobs.logsFor(job.ID), tt.wantLogs)
		})
	}
}

func TestWorker_PoisonMessageDropped(t *testing.T) {
	job := activeJob()
	h := startWorker(t, newMemJobs(job), nil)

	require.NoError(t, h.broker.Publish(context.Background(), queue.Message{Queue: queue.Setup, Body: []byte("not json")}))
	body, err := json.Marshal(queue.WebhookEvent{JobType: domain.JobTypeNFTBids, JobID: job.ID})
	require.NoError(t, err)
	require.NoError(t, h.broker.Publish(context.Background(), queue.Message{Queue: string(domain.JobTypeTokenPrices), Body: body}))

	require.Eventually(t, func() bool {
		return h.broker.Rejected(queue.Setup) == 1 && h.broker.Rejected(string(domain.JobTypeTokenPrices)) == 1
	}, waitFor, tick)
	assert.Zero(t, h.proc.calls.Load())

	logs := h.jobs.logsFor(job.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "Dropped malformed queue message", logs[0].message)
}

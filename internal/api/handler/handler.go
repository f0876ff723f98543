package handler

import (
	"context"
	"log/slog"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/job"
	"github.com/ritikbhatt20/Helius-Dexer/internal/metrics"
	"github.com/ritikbhatt20/Helius-Dexer/internal/queue"
	"github.com/ritikbhatt20/Helius-Dexer/internal/storage"
)

// OwnerKey is the gin context key holding the authenticated caller id.
const OwnerKey = "owner_id"

// ConnectionService is the owner-scoped connection registry.
type ConnectionService interface {
	Test(ctx context.Context, in domain.ConnectionInput) error
	Create(ctx context.Context, ownerID string, in domain.ConnectionInput) (*domain.Connection, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Connection, error)
	List(ctx context.Context, ownerID string) ([]domain.Connection, error)
	Update(ctx context.Context, ownerID, id string, patch domain.ConnectionPatch) (*domain.Connection, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// JobService is the owner-scoped job registry.
type JobService interface {
	Create(ctx context.Context, ownerID string, in job.CreateInput) (*domain.Job, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Job, error)
	List(ctx context.Context, filter storage.JobFilter) (job.Page, error)
	Pause(ctx context.Context, ownerID, id string) (*domain.Job, error)
	Resume(ctx context.Context, ownerID, id string) (*domain.Job, error)
	Complete(ctx context.Context, ownerID, id string) (*domain.Job, error)
	Delete(ctx context.Context, ownerID, id string) error
	Logs(ctx context.Context, ownerID, id string, limit int) ([]domain.JobLog, error)
}

// EventQueue accepts webhook deliveries for asynchronous processing.
type EventQueue interface {
	EnqueueEvent(ctx context.Context, ev queue.WebhookEvent) error
}

// JobLookup resolves a job without an owner check, for provider callbacks.
type JobLookup interface {
	GetJobByID(ctx context.Context, id string) (*domain.Job, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Connections ConnectionService
	Jobs        JobService
	Events      EventQueue
	JobLookup   JobLookup
	Metrics     *metrics.Metrics

	// JWTSecret verifies bearer tokens on /api/v1.
	JWTSecret string
	// WebhookAuthHeader is the shared secret the provider sends in Authorization.
	WebhookAuthHeader string
	// MaxBodyBytes caps webhook request bodies.
	MaxBodyBytes int64
	// Readiness maps a backing service name to its liveness check.
	Readiness map[string]func(ctx context.Context) error
}

// ConnectionHandler handles connection-related HTTP requests
type ConnectionHandler struct {
	logger      *slog.Logger
	connections ConnectionService
}

// NewConnectionHandler creates a new ConnectionHandler instance
func NewConnectionHandler(deps *Dependencies) *ConnectionHandler {
	return &ConnectionHandler{
		logger:      deps.Logger.With(slog.String("component", "connection_handler")),
		connections: deps.Connections,
	}
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger.With(slog.String("component", "job_handler")),
		jobs:   deps.Jobs,
	}
}

// WebhookHandler accepts provider deliveries and queues them per job type.
type WebhookHandler struct {
	logger       *slog.Logger
	events       EventQueue
	jobs         JobLookup
	metrics      *metrics.Metrics
	authHeader   string
	maxBodyBytes int64
}

// NewWebhookHandler creates a new WebhookHandler instance
func NewWebhookHandler(deps *Dependencies) *WebhookHandler {
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &WebhookHandler{
		logger:       deps.Logger.With(slog.String("component", "webhook_handler")),
		events:       deps.Events,
		jobs:         deps.JobLookup,
		metrics:      deps.Metrics,
		authHeader:   deps.WebhookAuthHeader,
		maxBodyBytes: maxBody,
	}
}

const defaultMaxBodyBytes = 5 << 20

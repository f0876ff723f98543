package helius

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

// TransactionTypes maps each job type to the enhanced transaction types it subscribes to.
var TransactionTypes = map[domain.JobType][]string{
	domain.JobTypeNFTBids:        {"NFT_BID"},
	domain.JobTypeNFTPrices:      {"NFT_LISTING", "NFT_SALE"},
	domain.JobTypeTokenBorrowing: {"SWAP", "UNKNOWN"},
	domain.JobTypeTokenPrices:    {"SWAP"},
}

// WebhookAPI is the subset of Client the provisioner needs.
type WebhookAPI interface {
	CreateWebhook(ctx context.Context, req CreateWebhookRequest) (string, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
}

// ProvisionerConfig holds callback settings for created webhooks.
type ProvisionerConfig struct {
	// CallbackBaseURL is the public root of the API service, e.g. https://dexer.example.com.
	CallbackBaseURL string
	AuthHeader      string
	Retry           RetryPolicy
}

// Provisioner creates and deletes webhook subscriptions for jobs, with retries.
type Provisioner struct {
	api     WebhookAPI
	cfg     ProvisionerConfig
	logger  *slog.Logger
	observe func(op, outcome string)
}

// NewProvisioner creates a Provisioner
func NewProvisioner(api WebhookAPI, cfg ProvisionerConfig, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		api:     api,
		cfg:     cfg,
		logger:  logger,
		observe: func(string, string) {},
	}
}

// OnAttempt registers a hook called once per provider request with its outcome.
func (p *Provisioner) OnAttempt(fn func(op, outcome string)) {
	p.observe = fn
}

// CallbackURL is where the provider will deliver events for a job.
func (p *Provisioner) CallbackURL(jobType domain.JobType, jobID string) string {
	return fmt.Sprintf("%s/webhooks/%s/%s", strings.TrimRight(p.cfg.CallbackBaseURL, "/"), jobType, jobID)
}

// BuildSubscription derives the provider filter for a job.
func (p *Provisioner) BuildSubscription(job *domain.Job) (CreateWebhookRequest, error) {
	types, ok := TransactionTypes[job.JobType]
	if !ok {
		return CreateWebhookRequest{}, domain.NewFatalError(fmt.Errorf("no transaction types for job type %q", job.JobType))
	}
	if job.Configuration == nil {
		return CreateWebhookRequest{}, domain.NewFatalError(fmt.Errorf("job %s has no configuration", job.ID))
	}

	return CreateWebhookRequest{
		WebhookURL:       p.CallbackURL(job.JobType, job.ID),
		TransactionTypes: append([]string(nil), types...),
		AccountAddresses: job.Configuration.AccountAddresses(),
		WebhookType:      "enhanced",
		AuthHeader:       p.cfg.AuthHeader,
		TxnStatus:        "confirmed",
	}, nil
}

// CreateSubscription provisions a webhook for job and returns its id.
// After the retry budget is spent the error is a *domain.ProvisioningError.
func (p *Provisioner) CreateSubscription(ctx context.Context, job *domain.Job) (string, error) {
	req, err := p.BuildSubscription(job)
	if err != nil {
		return "", err
	}

	var webhookID string
	err = p.cfg.Retry.Do(ctx, "create", p.logger.With(slog.String("job_id", job.ID)), func(ctx context.Context) error {
		id, err := p.api.CreateWebhook(ctx, req)
		p.observe("create", outcome(err))
		if err != nil {
			return err
		}
		webhookID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return webhookID, nil
}

// DeleteSubscription removes a webhook with the same retry policy.
func (p *Provisioner) DeleteSubscription(ctx context.Context, webhookID string) error {
	return p.cfg.Retry.Do(ctx, "delete", p.logger.With(slog.String("webhook_id", webhookID)), func(ctx context.Context) error {
		err := p.api.DeleteWebhook(ctx, webhookID)
		p.observe("delete", outcome(err))
		return err
	})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

package domain

import (
	"time"
)

// JobType identifies which on-chain events a job indexes and which table shape it writes.
type JobType string

const (
	JobTypeNFTBids        JobType = "nft_bids"
	JobTypeNFTPrices      JobType = "nft_prices"
	JobTypeTokenBorrowing JobType = "token_borrowing"
	JobTypeTokenPrices    JobType = "token_prices"
)

// JobTypes lists every supported job type in a stable order.
var JobTypes = []JobType{
	JobTypeNFTBids,
	JobTypeNFTPrices,
	JobTypeTokenBorrowing,
	JobTypeTokenPrices,
}

// ParseJobType rejects anything outside the closed set of job types.
func ParseJobType(s string) (JobType, error) {
	for _, t := range JobTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", NewValidationError("job_type", "must be one of 'nft_bids', 'nft_prices', 'token_borrowing', 'token_prices'")
}

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	_, err := ParseJobType(string(t))
	return err == nil
}

// Job is a standing subscription mapping an event filter to a tenant table.
type Job struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	ConnectionID  string    `json:"connection_id"`
	JobType       JobType   `json:"job_type"`
	Configuration JobConfig `json:"configuration"`
	TargetTable   string    `json:"target_table"`
	Status        JobStatus `json:"status"`
	WebhookID     *string   `json:"webhook_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasWebhook reports whether a provider subscription was recorded for the job.
func (j *Job) HasWebhook() bool {
	return j.WebhookID != nil && *j.WebhookID != ""
}

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobConfig(t *testing.T) {
	tests := []struct {
		name      string
		jobType   JobType
		raw       string
		want      JobConfig
		wantField string
	}{
		{
			name:    "nft bids",
			jobType: JobTypeNFTBids,
			raw:     `{"marketplace_addresses":["M1"],"collection_addresses":["C1"]}`,
			want:    NFTBidsConfig{MarketplaceAddresses: []string{"M1"}, CollectionAddresses: []string{"C1"}},
		},
		{
			name:    "nft prices with usd",
			jobType: JobTypeNFTPrices,
			raw:     `{"include_usd_prices":true}`,
			want:    NFTPricesConfig{IncludeUSDPrices: true},
		},
		{
			name:    "empty object",
			jobType: JobTypeTokenPrices,
			raw:     `{}`,
			want:    TokenPricesConfig{},
		},
		{
			name:      "usd flag must be boolean",
			jobType:   JobTypeNFTPrices,
			raw:       `{"include_usd_prices":"yes"}`,
			wantField: "configuration.include_usd_prices",
		},
		{
			name:      "addresses must be strings",
			jobType:   JobTypeTokenBorrowing,
			raw:       `{"protocol_addresses":"P"}`,
			wantField: "configuration.protocol_addresses",
		},
		{
			name:      "unknown field",
			jobType:   JobTypeTokenPrices,
			raw:       `{"dex":"x"}`,
			wantField: "configuration.dex",
		},
		{
			name:      "blank address",
			jobType:   JobTypeTokenPrices,
			raw:       `{"dex_addresses":["A"," "]}`,
			wantField: "configuration.dex_addresses[1]",
		},
		{
			name:      "not an object",
			jobType:   JobTypeNFTBids,
			raw:       `[]`,
			wantField: "configuration",
		},
		{
			name:      "unknown job type",
			jobType:   JobType("sol_staking"),
			raw:       `{}`,
			wantField: "job_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseJobConfig(tt.jobType, json.RawMessage(tt.raw))
			if tt.wantField != "" {
				var ve *ValidationError
				require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
				assert.Equal(t, tt.wantField, ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
			assert.Equal(t, tt.jobType, cfg.JobType())
		})
	}
}

func TestLoadJobConfig_Lenient(t *testing.T) {
	cfg, err := LoadJobConfig(JobTypeTokenBorrowing, []byte(`{"protocol_addresses":["P"],"legacy":true}`))
	require.NoError(t, err)
	assert.Equal(t, TokenBorrowingConfig{ProtocolAddresses: []string{"P"}}, cfg)

	cfg, err = LoadJobConfig(JobTypeNFTBids, nil)
	require.NoError(t, err)
	assert.Equal(t, NFTBidsConfig{}, cfg)
}

func TestAccountAddresses(t *testing.T) {
	bids := NFTBidsConfig{MarketplaceAddresses: []string{"M"}, CollectionAddresses: []string{"C"}}
	assert.Equal(t, []string{"C", "M"}, bids.AccountAddresses())

	assert.Equal(t, []string{}, TokenPricesConfig{}.AccountAddresses())
	assert.Equal(t, []string{"P"}, TokenBorrowingConfig{ProtocolAddresses: []string{"P"}, ReserveAddresses: []string{"R"}}.AccountAddresses())
}

func TestJobStatusTransitions(t *testing.T) {
	all := []JobStatus{JobStatusPending, JobStatusActive, JobStatusPaused, JobStatusCompleted, JobStatusFailed}
	allowed := map[string]bool{
		"pending->active":   true,
		"pending->failed":   true,
		"active->paused":    true,
		"active->completed": true,
		"active->failed":    true,
		"paused->active":    true,
		"paused->completed": true,
		"paused->failed":    true,
	}

	for _, from := range all {
		for _, to := range all {
			key := fmt.Sprintf("%s->%s", from, to)
			assert.Equal(t, allowed[key], from.CanTransitionTo(to), key)
		}
	}

	assert.ElementsMatch(t, []JobStatus{JobStatusActive, JobStatusPaused}, SourcesFor(JobStatusCompleted))
	assert.ElementsMatch(t, []JobStatus{JobStatusPending, JobStatusPaused}, SourcesFor(JobStatusActive))
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatusPaused.Terminal())
	assert.True(t, JobStatusPending.AcceptsEvents())
	assert.False(t, JobStatusPaused.AcceptsEvents())
}

func TestParseJobType(t *testing.T) {
	jt, err := ParseJobType("nft_prices")
	require.NoError(t, err)
	assert.Equal(t, JobTypeNFTPrices, jt)

	_, err = ParseJobType("nft")
	assert.True(t, IsValidation(err))
}

func TestConnectionPatch(t *testing.T) {
	name := "renamed"
	port := 6543
	empty := ""

	base := Connection{ID: "c1", Name: "orig", Host: "h", Port: 5432, Username: "u", DatabaseName: "d"}

	rename := ConnectionPatch{Name: &name}
	assert.False(t, rename.AffectsConnectivity())
	assert.Equal(t, "renamed", rename.Apply(base).Name)
	assert.Equal(t, base.Host, rename.Apply(base).Host)

	move := ConnectionPatch{Port: &port}
	assert.True(t, move.AffectsConnectivity())
	assert.Equal(t, 6543, move.Apply(base).Port)

	assert.True(t, IsValidation(ConnectionPatch{Host: &empty}.Validate()))
	assert.NoError(t, ConnectionPatch{}.Validate())
}

func TestConnectionInputValidate(t *testing.T) {
	valid := ConnectionInput{Name: "n", Host: "h", Port: 5432, Username: "u", Password: "p", DatabaseName: "d"}
	require.NoError(t, valid.Validate())

	noPass := valid
	noPass.Password = ""
	var ve *ValidationError
	require.ErrorAs(t, noPass.Validate(), &ve)
	assert.Equal(t, "password", ve.Field)

	badPort := valid
	badPort.Port = 70000
	require.ErrorAs(t, badPort.Validate(), &ve)
	assert.Equal(t, "port", ve.Field)

	unnamed := valid
	unnamed.Name = ""
	require.NoError(t, unnamed.Validate())
}

func TestConnectionInputDisplayName(t *testing.T) {
	tests := []struct {
		name string
		in   ConnectionInput
		want string
	}{
		{name: "explicit name", in: ConnectionInput{Name: "analytics", Host: "db.example.com", DatabaseName: "d"}, want: "analytics"},
		{name: "missing name", in: ConnectionInput{Host: "db.example.com", DatabaseName: "d"}, want: "db.example.com/d"},
		{name: "blank name", in: ConnectionInput{Name: "  ", Host: "db.example.com", DatabaseName: "d"}, want: "db.example.com/d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.DisplayName())
		})
	}
}

func TestErrorClassification(t *testing.T) {
	validation := NewValidationError("x", "bad")
	retryable := NewRetryableError(errors.New("timeout"))
	fatal := NewFatalError(fmt.Errorf("gone: %w", ErrNotFound))

	assert.True(t, IsFatal(validation))
	assert.True(t, IsFatal(fatal))
	assert.True(t, errors.Is(fatal, ErrNotFound))
	assert.False(t, IsFatal(retryable))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", retryable)))
}

func TestClampLogLimit(t *testing.T) {
	assert.Equal(t, DefaultLogLimit, ClampLogLimit(0))
	assert.Equal(t, 5, ClampLogLimit(5))
	assert.Equal(t, MaxLogLimit, ClampLogLimit(5000))
}

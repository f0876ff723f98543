package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// JobConfig is the per-job-type configuration. The concrete type is selected by the job's JobType.
type JobConfig interface {
	// JobType returns the tag this configuration belongs to.
	JobType() JobType
	// AccountAddresses returns the provider account filter for the webhook subscription.
	AccountAddresses() []string
	validate() error
}

// NFTBidsConfig configures an nft_bids job.
type NFTBidsConfig struct {
	MarketplaceAddresses []string `json:"marketplace_addresses,omitempty"`
	CollectionAddresses  []string `json:"collection_addresses,omitempty"`
}

func (NFTBidsConfig) JobType() JobType { return JobTypeNFTBids }

func (c NFTBidsConfig) AccountAddresses() []string {
	return concatAddresses(c.CollectionAddresses, c.MarketplaceAddresses)
}

func (c NFTBidsConfig) validate() error {
	if err := validateAddresses("marketplace_addresses", c.MarketplaceAddresses); err != nil {
		return err
	}
	return validateAddresses("collection_addresses", c.CollectionAddresses)
}

// NFTPricesConfig configures an nft_prices job.
type NFTPricesConfig struct {
	MarketplaceAddresses []string `json:"marketplace_addresses,omitempty"`
	CollectionAddresses  []string `json:"collection_addresses,omitempty"`
	IncludeUSDPrices     bool     `json:"include_usd_prices,omitempty"`
}

func (NFTPricesConfig) JobType() JobType { return JobTypeNFTPrices }

func (c NFTPricesConfig) AccountAddresses() []string {
	return concatAddresses(c.CollectionAddresses, c.MarketplaceAddresses)
}

func (c NFTPricesConfig) validate() error {
	if err := validateAddresses("marketplace_addresses", c.MarketplaceAddresses); err != nil {
		return err
	}
	return validateAddresses("collection_addresses", c.CollectionAddresses)
}

// TokenBorrowingConfig configures a token_borrowing job.
type TokenBorrowingConfig struct {
	ProtocolAddresses []string `json:"protocol_addresses,omitempty"`
	ReserveAddresses  []string `json:"reserve_addresses,omitempty"`
}

func (TokenBorrowingConfig) JobType() JobType { return JobTypeTokenBorrowing }

func (c TokenBorrowingConfig) AccountAddresses() []string {
	return concatAddresses(c.ProtocolAddresses)
}

func (c TokenBorrowingConfig) validate() error {
	if err := validateAddresses("protocol_addresses", c.ProtocolAddresses); err != nil {
		return err
	}
	return validateAddresses("reserve_addresses", c.ReserveAddresses)
}

// TokenPricesConfig configures a token_prices job.
type TokenPricesConfig struct {
	DexAddresses []string `json:"dex_addresses,omitempty"`
}

func (TokenPricesConfig) JobType() JobType { return JobTypeTokenPrices }

func (c TokenPricesConfig) AccountAddresses() []string {
	return concatAddresses(c.DexAddresses)
}

func (c TokenPricesConfig) validate() error {
	return validateAddresses("dex_addresses", c.DexAddresses)
}

// ParseJobConfig validates raw against the schema selected by t.
// Unknown fields, wrong field types and non-object payloads are rejected.
func ParseJobConfig(t JobType, raw json.RawMessage) (JobConfig, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, NewValidationError("configuration", "must be a JSON object")
	}

	cfg, err := newJobConfig(t)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, configDecodeError(err)
	}

	out := deref(cfg)
	if err := out.validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadJobConfig decodes a configuration previously accepted by ParseJobConfig.
// It is lenient about unknown fields so stored rows survive schema additions.
func LoadJobConfig(t JobType, raw []byte) (JobConfig, error) {
	cfg, err := newJobConfig(t)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s configuration: %w", t, err)
		}
	}
	return deref(cfg), nil
}

func newJobConfig(t JobType) (any, error) {
	switch t {
	case JobTypeNFTBids:
		return &NFTBidsConfig{}, nil
	case JobTypeNFTPrices:
		return &NFTPricesConfig{}, nil
	case JobTypeTokenBorrowing:
		return &TokenBorrowingConfig{}, nil
	case JobTypeTokenPrices:
		return &TokenPricesConfig{}, nil
	default:
		return nil, NewValidationError("job_type", fmt.Sprintf("unknown job type %q", t))
	}
}

func deref(v any) JobConfig {
	switch c := v.(type) {
	case *NFTBidsConfig:
		return *c
	case *NFTPricesConfig:
		return *c
	case *TokenBorrowingConfig:
		return *c
	case *TokenPricesConfig:
		return *c
	}
	return nil
}

func configDecodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "configuration"
		} else {
			field = "configuration." + field
		}
		return NewValidationError(field, fmt.Sprintf("must be of type %s", describeType(typeErr.Type.String())))
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "json: unknown field ") {
		name := strings.Trim(strings.TrimPrefix(msg, "json: unknown field "), `"`)
		return NewValidationError("configuration."+name, "is not a recognised field for this job type")
	}
	return NewValidationError("configuration", "is not valid JSON")
}

func describeType(goType string) string {
	switch goType {
	case "[]string":
		return "array of strings"
	case "string":
		return "string"
	case "bool":
		return "boolean"
	default:
		return goType
	}
}

func validateAddresses(field string, addrs []string) error {
	for i, a := range addrs {
		if strings.TrimSpace(a) == "" {
			return NewValidationError(fmt.Sprintf("configuration.%s[%d]", field, i), "must be a non-empty address")
		}
	}
	return nil
}

func concatAddresses(lists ...[]string) []string {
	out := []string{}
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

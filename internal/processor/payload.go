package processor

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
)

// DecodeTransactions accepts either {"transactions": [...]} or a bare array and
// returns each transaction undecoded, so one malformed entry cannot spoil the batch.
func DecodeTransactions(payload []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var txs []json.RawMessage
		if err := json.Unmarshal(trimmed, &txs); err != nil {
			return nil, domain.NewValidationError("payload", "is not a valid transaction array")
		}
		return txs, nil
	case '{':
		var body struct {
			Transactions []json.RawMessage `json:"transactions"`
		}
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return nil, domain.NewValidationError("payload.transactions", "must be an array")
		}
		return body.Transactions, nil
	default:
		return nil, domain.NewValidationError("payload", "must be a JSON object or array")
	}
}

// Transaction is the subset of an enhanced transaction the processors read.
type Transaction struct {
	Signature string `json:"signature"`
	Type      string `json:"type"`
	Events    struct {
		NFT     *nftEvents     `json:"nft"`
		Lending *lendingEvents `json:"lending"`
		Swap    *swapEvents    `json:"swap"`
	} `json:"events"`
}

type nftRef struct {
	Address       string `json:"address"`
	Mint          string `json:"mint"`
	TokenStandard string `json:"tokenStandard"`
	Collection    *struct {
		Address string `json:"address"`
	} `json:"collection"`
}

type marketplaceRef struct {
	Name        string `json:"name"`
	ProgramID   string `json:"programId"`
	PaymentMint string `json:"paymentMint"`
}

type nftEvents struct {
	Bid *struct {
		NFT         *nftRef         `json:"nft"`
		Marketplace *marketplaceRef `json:"marketplace"`
		Buyer       string          `json:"buyer"`
		Amount      Number          `json:"amount"`
		BidID       string          `json:"bidId"`
		Expiry      Timestamp       `json:"expiry"`
	} `json:"bid"`
	Listing *struct {
		NFT         *nftRef         `json:"nft"`
		Marketplace *marketplaceRef `json:"marketplace"`
		Seller      string          `json:"seller"`
		Amount      Number          `json:"amount"`
		ListingID   string          `json:"listingId"`
	} `json:"listing"`
	Sale *struct {
		NFT         *nftRef         `json:"nft"`
		Marketplace *marketplaceRef `json:"marketplace"`
	} `json:"sale"`
}

type lendingEvents struct {
	Reserve *reserveEvent `json:"reserve"`
}

type reserveEvent struct {
	Protocol             string `json:"protocol"`
	Address              string `json:"address"`
	TokenMint            string `json:"tokenMint"`
	TokenSymbol          string `json:"tokenSymbol"`
	AvailableAmount      Number `json:"availableAmount"`
	BorrowAPY            Number `json:"borrowApy"`
	LTVRatio             Number `json:"ltvRatio"`
	LiquidationThreshold Number `json:"liquidationThreshold"`
	LiquidationPenalty   Number `json:"liquidationPenalty"`
}

type swapEvent struct {
	PoolAddress  string `json:"poolAddress"`
	TokenMint    string `json:"tokenMint"`
	TokenSymbol  string `json:"tokenSymbol"`
	Dex          string `json:"dex"`
	PriceUSD     Number `json:"priceUsd"`
	Volume24h    Number `json:"volume24h"`
	LiquidityUSD Number `json:"liquidityUsd"`
}

// swapEvents accepts both events.swap.poolAddress and events.swap.swap.poolAddress.
type swapEvents struct {
	swapEvent
	Swap *swapEvent `json:"swap"`
}

func (s *swapEvents) pool() *swapEvent {
	if s.Swap != nil && s.Swap.PoolAddress != "" {
		return s.Swap
	}
	if s.PoolAddress != "" {
		return &s.swapEvent
	}
	return nil
}

// Number is a JSON number that also accepts numeric strings. Null and absent are unset.
type Number struct {
	Value float64
	Set   bool
}

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*n = Number{}
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*n = Number{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = Number{Value: v, Set: true}
	return nil
}

// Ptr returns nil when unset, for nullable columns.
func (n Number) Ptr() *float64 {
	if !n.Set {
		return nil
	}
	v := n.Value
	return &v
}

// Int64 truncates toward zero.
func (n Number) Int64() int64 {
	return int64(n.Value)
}

// Timestamp accepts unix seconds, unix milliseconds or an RFC 3339 string.
type Timestamp struct {
	Time time.Time
	Set  bool
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*t = Timestamp{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		if str == "" {
			*t = Timestamp{}
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, str); err == nil {
			*t = Timestamp{Time: parsed.UTC(), Set: true}
			return nil
		}
		s = str
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	if v <= 0 {
		*t = Timestamp{}
		return nil
	}
	if v >= 1e12 {
		*t = Timestamp{Time: time.UnixMilli(int64(v)).UTC(), Set: true}
		return nil
	}
	*t = Timestamp{Time: time.Unix(int64(v), 0).UTC(), Set: true}
	return nil
}

// Ptr returns nil when unset, for nullable columns.
func (t Timestamp) Ptr() *time.Time {
	if !t.Set {
		return nil
	}
	v := t.Time
	return &v
}

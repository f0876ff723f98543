package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/helius"
)

const lamportsPerSOL = 1e9

// relevantTypes are the transaction types each job type reads.
var relevantTypes = map[domain.JobType]map[string]bool{
	domain.JobTypeNFTBids:        {"NFT_BID": true},
	domain.JobTypeNFTPrices:      {"NFT_LISTING": true, "NFT_SALE": true},
	domain.JobTypeTokenBorrowing: {"LENDING_POOL_UPDATE": true, "SWAP": true, "UNKNOWN": true},
	domain.JobTypeTokenPrices:    {"SWAP": true},
}

// Extractor turns raw transactions into table mutations for one job.
type Extractor struct {
	prices helius.PriceSource
	logger *slog.Logger
}

// NewExtractor creates an Extractor. prices may be nil when no job requests USD prices.
func NewExtractor(prices helius.PriceSource, logger *slog.Logger) *Extractor {
	return &Extractor{prices: prices, logger: logger}
}

// Extract returns the mutations for txs in payload order.
// Transactions that are irrelevant, malformed or missing required fields are skipped.
func (e *Extractor) Extract(ctx context.Context, job *domain.Job, txs []json.RawMessage) ([]Mutation, error) {
	types, ok := relevantTypes[job.JobType]
	if !ok {
		return nil, domain.NewFatalError(fmt.Errorf("no processor for job type %q", job.JobType))
	}

	var out []Mutation
	for i, raw := range txs {
		var tx Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			e.logger.Debug("Skipping malformed transaction",
				slog.String("job_id", job.ID),
				slog.Int("index", i),
				slog.Any("error", err),
			)
			continue
		}
		if !types[tx.Type] {
			continue
		}

		var (
			m  Mutation
			ok bool
		)
		switch cfg := job.Configuration.(type) {
		case domain.NFTBidsConfig:
			m, ok = nftBid(tx)
		case domain.NFTPricesConfig:
			m, ok = nftPrice(tx)
			if ok && m.Upsert != nil && cfg.IncludeUSDPrices {
				m.Upsert = e.withUSDPrice(ctx, job.ID, m.Upsert.(NFTListingRow))
			}
		case domain.TokenBorrowingConfig:
			m, ok = lendingReserve(tx, cfg)
		case domain.TokenPricesConfig:
			m, ok = swapPool(tx)
		default:
			return nil, domain.NewFatalError(fmt.Errorf("configuration %T does not match job type %q", job.Configuration, job.JobType))
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (e *Extractor) withUSDPrice(ctx context.Context, jobID string, row NFTListingRow) NFTListingRow {
	if e.prices == nil || row.paymentMint == "" {
		return row
	}
	price, err := e.prices.TokenPrice(ctx, row.paymentMint)
	if err != nil {
		e.logger.Warn("USD price lookup failed, storing listing without USD price",
			slog.String("job_id", jobID),
			slog.String("payment_mint", row.paymentMint),
			slog.Any("error", err),
		)
		return row
	}
	usd := float64(row.PriceLamports) / lamportsPerSOL * price
	row.PriceUSD = &usd
	return row
}

func nftBid(tx Transaction) (Mutation, bool) {
	if tx.Events.NFT == nil || tx.Events.NFT.Bid == nil {
		return Mutation{}, false
	}
	bid := tx.Events.NFT.Bid
	if bid.NFT == nil || bid.Marketplace == nil || bid.Buyer == "" || !bid.Amount.Set || bid.Amount.Value == 0 {
		return Mutation{}, false
	}
	if bid.NFT.Mint == "" || bid.NFT.Address == "" {
		return Mutation{}, false
	}

	row := NFTBidRow{
		Marketplace:  orDefault(bid.Marketplace.Name, "unknown"),
		TokenAddress: bid.NFT.Address,
		TokenMint:    bid.NFT.Mint,
		Buyer:        bid.Buyer,
		Price:        bid.Amount.Int64(),
		Expiry:       bid.Expiry.Ptr(),
		BidID:        bid.BidID,
	}
	if bid.Marketplace.ProgramID != "" {
		ah := bid.Marketplace.ProgramID
		row.AuctionHouse = &ah
	}
	if bid.NFT.TokenStandard == "NonFungible" {
		one := 1
		row.TokenSize = &one
	}
	if row.BidID == "" {
		row.BidID = fallbackID(row.TokenMint, row.Buyer, row.Price)
	}
	return Mutation{Upsert: row}, true
}

func nftPrice(tx Transaction) (Mutation, bool) {
	if tx.Events.NFT == nil {
		return Mutation{}, false
	}

	switch tx.Type {
	case "NFT_LISTING":
		l := tx.Events.NFT.Listing
		if l == nil || l.NFT == nil || l.Marketplace == nil || l.Seller == "" || !l.Amount.Set || l.Amount.Value == 0 {
			return Mutation{}, false
		}
		if l.NFT.Mint == "" || l.NFT.Address == "" {
			return Mutation{}, false
		}

		row := NFTListingRow{
			Marketplace:   orDefault(l.Marketplace.Name, "unknown"),
			TokenAddress:  l.NFT.Address,
			TokenMint:     l.NFT.Mint,
			PriceLamports: l.Amount.Int64(),
			Seller:        l.Seller,
			ListingID:     l.ListingID,
			paymentMint:   l.Marketplace.PaymentMint,
		}
		if l.NFT.Collection != nil && l.NFT.Collection.Address != "" {
			addr := l.NFT.Collection.Address
			row.CollectionAddress = &addr
		}
		if row.ListingID == "" {
			row.ListingID = fallbackID(row.TokenMint, row.Seller, row.PriceLamports)
		}
		return Mutation{Upsert: row}, true

	case "NFT_SALE":
		s := tx.Events.NFT.Sale
		if s == nil || s.NFT == nil || s.Marketplace == nil || s.NFT.Mint == "" {
			return Mutation{}, false
		}
		return Mutation{DeleteMint: s.NFT.Mint}, true
	}
	return Mutation{}, false
}

// lendingReserve keeps reserves of the job's listed protocols. An empty reserve list admits every
// reserve of those protocols; an empty protocol list admits nothing.
func lendingReserve(tx Transaction, cfg domain.TokenBorrowingConfig) (Mutation, bool) {
	if tx.Events.Lending == nil || tx.Events.Lending.Reserve == nil {
		return Mutation{}, false
	}
	r := tx.Events.Lending.Reserve
	if r.Protocol == "" || r.Address == "" || r.TokenMint == "" || !r.AvailableAmount.Set {
		return Mutation{}, false
	}
	if !slices.Contains(cfg.ProtocolAddresses, r.Protocol) || !matches(cfg.ReserveAddresses, r.Address) {
		return Mutation{}, false
	}

	return Mutation{Upsert: ReserveRow{
		Protocol:             r.Protocol,
		ReserveAddress:       r.Address,
		TokenMint:            r.TokenMint,
		TokenSymbol:          orDefault(r.TokenSymbol, "UNKNOWN"),
		AvailableAmount:      r.AvailableAmount.Int64(),
		BorrowAPY:            r.BorrowAPY.Ptr(),
		LTVRatio:             r.LTVRatio.Ptr(),
		LiquidationThreshold: r.LiquidationThreshold.Ptr(),
		LiquidationPenalty:   r.LiquidationPenalty.Ptr(),
	}}, true
}

func swapPool(tx Transaction) (Mutation, bool) {
	if tx.Events.Swap == nil {
		return Mutation{}, false
	}
	s := tx.Events.Swap.pool()
	if s == nil || s.TokenMint == "" {
		return Mutation{}, false
	}

	return Mutation{Upsert: PoolRow{
		TokenMint:    s.TokenMint,
		TokenSymbol:  orDefault(s.TokenSymbol, "UNKNOWN"),
		Dex:          orDefault(s.Dex, "unknown"),
		PoolAddress:  s.PoolAddress,
		PriceUSD:     s.PriceUSD.Value,
		Volume24h:    s.Volume24h.Value,
		LiquidityUSD: s.LiquidityUSD.Value,
	}}, true
}

func matches(filter []string, v string) bool {
	if len(filter) == 0 {
		return true
	}
	return slices.Contains(filter, v)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func fallbackID(mint, party string, amount int64) string {
	return mint + "-" + party + "-" + strconv.FormatInt(amount, 10)
}

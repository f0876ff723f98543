package processor

import (
	"time"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/schema"
	"github.com/ritikbhatt20/Helius-Dexer/internal/tenant"
)

// Mutation is one write against the target table: an upsert or a delete by token mint.
type Mutation struct {
	Upsert     tenant.Row
	DeleteMint string
}

// NFTBidRow is a row of an nft_bids table.
type NFTBidRow struct {
	Marketplace  string
	AuctionHouse *string
	TokenAddress string
	TokenMint    string
	Buyer        string
	Price        int64
	TokenSize    *int
	Expiry       *time.Time
	BidID        string
}

func (r NFTBidRow) Columns() []string {
	return []string{"marketplace", "auction_house", "token_address", "token_mint", "buyer", "price", "token_size", "expiry", "bid_id"}
}

func (r NFTBidRow) Values() []any {
	return []any{r.Marketplace, nullString(r.AuctionHouse), r.TokenAddress, r.TokenMint, r.Buyer, r.Price, nullInt(r.TokenSize), nullTime(r.Expiry), r.BidID}
}

func (r NFTBidRow) ConflictKey() []string { return schema.ConflictKey[domain.JobTypeNFTBids] }

func (r NFTBidRow) UpdateColumns() []string { return []string{"price"} }

// NFTListingRow is a row of an nft_prices table.
type NFTListingRow struct {
	Marketplace       string
	TokenAddress      string
	TokenMint         string
	CollectionAddress *string
	PriceLamports     int64
	PriceUSD          *float64
	Seller            string
	ListingID         string

	// paymentMint is the currency the listing is priced in, used for the USD lookup.
	paymentMint string
}

func (r NFTListingRow) Columns() []string {
	return []string{"marketplace", "token_address", "token_mint", "collection_address", "price_lamports", "price_usd", "seller", "listing_id"}
}

func (r NFTListingRow) Values() []any {
	return []any{r.Marketplace, r.TokenAddress, r.TokenMint, nullString(r.CollectionAddress), r.PriceLamports, nullFloat(r.PriceUSD), r.Seller, r.ListingID}
}

func (r NFTListingRow) ConflictKey() []string { return schema.ConflictKey[domain.JobTypeNFTPrices] }

func (r NFTListingRow) UpdateColumns() []string { return []string{"price_lamports", "price_usd"} }

// ReserveRow is a row of a token_borrowing table.
type ReserveRow struct {
	Protocol             string
	ReserveAddress       string
	TokenMint            string
	TokenSymbol          string
	AvailableAmount      int64
	BorrowAPY            *float64
	LTVRatio             *float64
	LiquidationThreshold *float64
	LiquidationPenalty   *float64
}

func (r ReserveRow) Columns() []string {
	return []string{"protocol", "reserve_address", "token_mint", "token_symbol", "available_amount", "borrow_apy", "ltv_ratio", "liquidation_threshold", "liquidation_penalty"}
}

func (r ReserveRow) Values() []any {
	return []any{r.Protocol, r.ReserveAddress, r.TokenMint, r.TokenSymbol, r.AvailableAmount,
		nullFloat(r.BorrowAPY), nullFloat(r.LTVRatio), nullFloat(r.LiquidationThreshold), nullFloat(r.LiquidationPenalty)}
}

func (r ReserveRow) ConflictKey() []string { return schema.ConflictKey[domain.JobTypeTokenBorrowing] }

func (r ReserveRow) UpdateColumns() []string {
	return []string{"available_amount", "borrow_apy", "ltv_ratio", "liquidation_threshold", "liquidation_penalty"}
}

// PoolRow is a row of a token_prices table.
type PoolRow struct {
	TokenMint    string
	TokenSymbol  string
	Dex          string
	PoolAddress  string
	PriceUSD     float64
	Volume24h    float64
	LiquidityUSD float64
}

func (r PoolRow) Columns() []string {
	return []string{"token_mint", "token_symbol", "dex", "pool_address", "price_usd", "volume_24h", "liquidity_usd"}
}

func (r PoolRow) Values() []any {
	return []any{r.TokenMint, r.TokenSymbol, r.Dex, r.PoolAddress, r.PriceUSD, r.Volume24h, r.LiquidityUSD}
}

func (r PoolRow) ConflictKey() []string { return schema.ConflictKey[domain.JobTypeTokenPrices] }

func (r PoolRow) UpdateColumns() []string { return []string{"price_usd", "volume_24h", "liquidity_usd"} }

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return int64(*i)
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

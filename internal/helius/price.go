package helius

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ErrNoPrice is returned when the provider has no price for a mint.
var ErrNoPrice = errors.New("no price available")

// PriceSource looks up USD token prices.
type PriceSource interface {
	TokenPrice(ctx context.Context, mint string) (float64, error)
}

const priceKeyPrefix = "dexer:price:"

// PriceCache fronts a PriceSource with a Redis TTL cache and collapses concurrent lookups
// of the same mint into one upstream request. A nil Redis client disables caching.
type PriceCache struct {
	src    PriceSource
	rdb    goredis.Cmdable
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewPriceCache creates a PriceCache
func NewPriceCache(src PriceSource, rdb goredis.Cmdable, ttl time.Duration, logger *slog.Logger) *PriceCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PriceCache{src: src, rdb: rdb, ttl: ttl, logger: logger}
}

// TokenPrice returns a cached price or fetches and caches a fresh one.
// Cache failures are logged and fall through to the source.
func (c *PriceCache) TokenPrice(ctx context.Context, mint string) (float64, error) {
	key := priceKeyPrefix + mint

	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, key).Result()
		switch {
		case err == nil:
			if price, perr := strconv.ParseFloat(raw, 64); perr == nil {
				return price, nil
			}
		case !errors.Is(err, goredis.Nil):
			c.logger.Warn("Price cache read failed", slog.String("mint", mint), slog.Any("error", err))
		}
	}

	v, err, _ := c.group.Do(mint, func() (any, error) {
		price, err := c.src.TokenPrice(ctx, mint)
		if err != nil {
			return 0.0, err
		}
		if c.rdb != nil {
			if err := c.rdb.Set(ctx, key, strconv.FormatFloat(price, 'f', -1, 64), c.ttl).Err(); err != nil {
				c.logger.Warn("Price cache write failed", slog.String("mint", mint), slog.Any("error", err))
			}
		}
		return price, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

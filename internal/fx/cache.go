package fx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Cache wraps a RateSource with Redis based caching. Rates for a past date
// never change, so a plain TTL is enough.
type Cache struct {
	client *redis.Client
	source RateSource
	ttl    time.Duration
}

// NewCache instantiates the caching rate source.
func NewCache(client *redis.Client, source RateSource, ttl time.Duration) *Cache {
	return &Cache{client: client, source: source, ttl: ttl}
}

// GetRate serves the rate from Redis and falls through to the underlying
// source on a miss. A degraded cache never fails the lookup.
func (c *Cache) GetRate(ctx context.Context, base, quote string, date time.Time) (decimal.Decimal, error) {
	if c == nil {
		return decimal.Decimal{}, errors.New("fx: cache not configured")
	}
	if c.client == nil {
		return c.source.GetRate(ctx, base, quote, date)
	}
	key := rateKey(base, quote, date)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if rate, perr := decimal.NewFromString(raw); perr == nil {
			return rate, nil
		}
	}
	rate, err := c.source.GetRate(ctx, base, quote, date)
	if err != nil {
		return decimal.Decimal{}, err
	}
	c.client.Set(ctx, key, rate.String(), c.ttl)
	return rate, nil
}

func rateKey(base, quote string, date time.Time) string {
	return fmt.Sprintf("fx:rate:%s:%s:%s", base, quote, date.Format("2006-01-02"))
}

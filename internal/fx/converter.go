package fx

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultFanout = 4

// RateSource yields the conversion rate for a currency pair.
type RateSource interface {
	PairRate(ctx context.Context, pair Pair) (float64, error)
}

// Converter is the conversion gateway: identity for same-currency pairs,
// cached provider rates otherwise. Concurrent lookups for the same pair are
// collapsed through singleflight.
type Converter struct {
	source RateSource
	cache  *RateCache
	group  singleflight.Group
	logger *slog.Logger
}

// NewConverter constructs a Converter.
func NewConverter(source RateSource, cache *RateCache, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{source: source, cache: cache, logger: logger}
}

// Rate returns the conversion rate for the pair. Same-currency pairs are 1
// without any lookup.
func (c *Converter) Rate(ctx context.Context, pair Pair) (float64, error) {
	if pair.Same() {
		return 1, nil
	}
	if rate, ok, err := c.cache.Get(ctx, pair); err == nil && ok {
		return rate, nil
	} else if err != nil {
		c.logger.Warn("fx cache read", slog.Any("error", err), slog.String("pair", pair.Key()))
	}

	value, err, _ := c.group.Do(pair.Key(), func() (any, error) {
		rate, err := c.source.PairRate(ctx, pair)
		if err != nil {
			return 0.0, err
		}
		if err := c.cache.Set(ctx, pair, rate); err != nil {
			c.logger.Warn("fx cache write", slog.Any("error", err), slog.String("pair", pair.Key()))
		}
		return rate, nil
	})
	if err != nil {
		return 0, err
	}
	return value.(float64), nil
}

// Convert normalizes amount from one currency into another, rounded to two
// decimal places. Pass-through when the currencies match.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}
	rate, err := c.Rate(ctx, Pair{From: from, To: to})
	if err != nil {
		return 0, err
	}
	return Round2(amount * rate), nil
}

// Rates resolves a deduplicated set of pairs with bounded concurrency. The
// result maps pair keys to rates; pairs whose lookup failed are absent, so a
// single provider outage degrades only the amounts that need that pair.
func (c *Converter) Rates(ctx context.Context, pairs []Pair) map[string]float64 {
	unique := make(map[string]Pair, len(pairs))
	for _, p := range pairs {
		if p.Same() {
			continue
		}
		unique[p.Key()] = p
	}

	var mu sync.Mutex
	rates := make(map[string]float64, len(unique))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultFanout)
	for key, pair := range unique {
		g.Go(func() error {
			rate, err := c.Rate(ctx, pair)
			if err != nil {
				c.logger.Warn("fx rate lookup", slog.Any("error", err), slog.String("pair", key))
				return nil
			}
			mu.Lock()
			rates[key] = rate
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return rates
}

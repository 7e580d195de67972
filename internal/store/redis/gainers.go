package redis

import (
	"context"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"hama-scanner/internal/model"
)

// Gainers reads a top-gainers list kept as a sorted set per market type
// (gainers:{spot|futures}), scored by percentage change. An external
// collector maintains the set; Replace is provided for it and for tests.
type Gainers struct {
	client *goredis.Client
}

func NewGainers(client *goredis.Client) *Gainers {
	return &Gainers{client: client}
}

// TopGainers returns up to limit symbols, highest change first.
func (g *Gainers) TopGainers(ctx context.Context, limit int, marketType model.MarketType) ([]model.Gainer, error) {
	if limit <= 0 {
		return nil, nil
	}
	zs, err := g.client.ZRevRangeWithScores(ctx, gainersKey(string(marketType)), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange gainers %s: %w", marketType, err)
	}

	out := make([]model.Gainer, 0, len(zs))
	for _, z := range zs {
		sym, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, model.Gainer{Symbol: sym, MarketType: marketType, ChangePct: z.Score})
	}
	return out, nil
}

// Replace atomically swaps the list for marketType.
func (g *Gainers) Replace(ctx context.Context, marketType model.MarketType, list []model.Gainer) error {
	key := gainersKey(string(marketType))
	members := make([]*goredis.Z, 0, len(list))
	for _, gn := range list {
		members = append(members, &goredis.Z{Score: gn.ChangePct, Member: gn.Symbol})
	}

	_, err := g.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.ZAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace gainers %s: %w", marketType, err)
	}
	return nil
}

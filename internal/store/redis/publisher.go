package redis

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"

	"hama-scanner/internal/model"
)

// Publisher is a signal sink that appends to the signals stream, stores the
// latest signal per symbol and publishes on signals:{symbol} for live
// subscribers, all in one pipeline.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
}

// NewPublisher creates the sink. cb may be shared with the cache.
func NewPublisher(client *goredis.Client, cb *CircuitBreaker) *Publisher {
	return &Publisher{client: client, cb: cb}
}

func (p *Publisher) Name() string { return "redis" }

func (p *Publisher) Notify(ctx context.Context, sig model.Signal) error {
	data, err := sonic.MarshalString(sig)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}

	return p.cb.Execute(func() error {
		pipe := p.client.Pipeline()
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: signalStream,
			MaxLen: signalStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"symbol": sig.Symbol,
				"data":   data,
			},
		})
		pipe.Set(ctx, signalLatestKey(sig.Symbol), data, signalLatestTTL)
		pipe.Publish(ctx, signalChannel(sig.Symbol), data)

		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("signal pipeline %s: %w", sig.Symbol, err)
		}
		return nil
	})
}

// Package redis holds the Redis-backed collaborators of the scanner: the
// snapshot cache, the gainers list and the signal publisher.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"hama-scanner/internal/logger"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Connect opens a client and pings the server.
func Connect(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	l := logger.Component("redis")
	l.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected")
	return client, nil
}

// Key layout.
const (
	snapshotPrefix     = "hama:snapshot:"
	gainersPrefix      = "gainers:"
	signalStream       = "signals:stream"
	signalChannelPref  = "signals:"
	signalLatestPrefix = "signal:latest:"

	// ~1 week of hourly signals across a few hundred symbols
	signalStreamMaxLen = 50000
	signalLatestTTL    = 24 * time.Hour
)

func snapshotKey(symbol string) string { return snapshotPrefix + symbol }

func gainersKey(marketType string) string { return gainersPrefix + marketType }

func signalChannel(symbol string) string { return signalChannelPref + symbol }

func signalLatestKey(symbol string) string { return signalLatestPrefix + symbol }

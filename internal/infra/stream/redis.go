// Package stream publishes market-data and execution events onto Redis
// Streams and maintains the shared order-book cache consumed by the trading
// read path.
package stream

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dial parses a Redis URL, opens a client and verifies connectivity.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("stream: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		closeErr := client.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("stream: ping redis: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("stream: ping redis: %w", err)
	}
	return client, nil
}

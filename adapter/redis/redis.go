// Package redis implements a Redis pub/sub fault-record transport.
//
// Publishes fault records to a configurable Redis channel, encoded as JSON
// or msgpack. Retries with exponential backoff on connection errors.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/vpd/adapter"
	"github.com/pithecene-io/vpd/types"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "vpd:pel"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Codec selects the payload encoding.
type Codec string

// Supported codecs.
const (
	CodecJSON    Codec = "json"
	CodecMsgpack Codec = "msgpack"
)

// Config configures the Redis pub/sub transport.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: vpd:pel).
	Channel string
	// Codec is the payload encoding (default: json).
	Codec Codec
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// Transport publishes fault records via Redis PUBLISH.
type Transport struct {
	config Config
	client *goredis.Client
}

// New creates a Redis transport from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Transport, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis transport requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis transport: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	switch cfg.Codec {
	case "":
		cfg.Codec = CodecJSON
	case CodecJSON, CodecMsgpack:
	default:
		return nil, fmt.Errorf("redis transport: unknown codec %q", cfg.Codec)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Transport{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

func (t *Transport) encode(record *types.FaultRecord) ([]byte, error) {
	if t.config.Codec == CodecMsgpack {
		return msgpack.Marshal(record)
	}
	return json.Marshal(record)
}

// Create publishes the record to the configured channel.
// Retries with exponential backoff on failures.
func (t *Transport) Create(ctx context.Context, record *types.FaultRecord) error {
	body, err := t.encode(record)
	if err != nil {
		return fmt.Errorf("redis: encode record: %w", err)
	}

	var lastErr error
	// attempts = 1 initial + retries
	attempts := 1 + t.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: context canceled: %w", err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
		lastErr = t.client.Publish(publishCtx, t.config.Channel, body).Err()
		cancel()

		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

// Close releases transport resources.
func (t *Transport) Close() error {
	return t.client.Close()
}

var _ adapter.Transport = (*Transport)(nil)

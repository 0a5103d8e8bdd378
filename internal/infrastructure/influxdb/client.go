package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/quietlawn/rachio-bridge/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// The InfluxDB client takes its flush interval in milliseconds.
	millisecondsPerSecond = 1000
)

// Client wraps the InfluxDB v2 client for telemetry writes: token auth,
// non-blocking batched writes, and health checks.
//
// All methods are safe for concurrent use.
type Client struct {
	influx influxdb2.Client
	writer api.WriteAPI
	cfg    config.InfluxDBConfig

	online bool
	mu     sync.RWMutex

	// onError receives async write failures, set via SetOnError.
	onError func(err error)
}

// Connect creates the client, verifies the server with a ping, and sets
// up the non-blocking write API with batching.
//
// Parameters:
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrDisabled when cfg.Enabled is false, or a connection error
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	// #nosec G115 -- values clamped positive above
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	c := &Client{
		influx: client,
		writer: client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:    cfg,
		online: true,
	}
	go c.handleWriteErrors(c.writer.Errors())

	return c, nil
}

// handleWriteErrors forwards async write errors to the onError callback.
func (c *Client) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// Close flushes pending writes and shuts the client down.
//
// Returns:
//   - error: always nil; the underlying Close does not report errors
func (c *Client) Close() error {
	if c.influx == nil {
		return nil
	}

	c.mu.Lock()
	c.online = false
	c.mu.Unlock()

	c.writer.Flush()
	c.influx.Close()
	return nil
}

// HealthCheck pings the server, bounded by a short timeout.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.influx.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// IsConnected reports the last known connection state. HealthCheck
// performs an active ping when that matters.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// SetOnError registers a callback for async write failures. Writes are
// non-blocking, so this is the only place those errors surface.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until all buffered points are written. No-op after Close.
func (c *Client) Flush() {
	if c.writer == nil {
		return
	}

	c.mu.RLock()
	online := c.online
	c.mu.RUnlock()
	if !online {
		return
	}

	c.writer.Flush()
}

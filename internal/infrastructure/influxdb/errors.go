package influxdb

import "errors"

// Sentinel errors for InfluxDB operations, for use with errors.Is.
var (
	// ErrNotConnected means the client is not connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed means the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed wraps synchronous write failures. Most write errors
	// surface asynchronously through the SetOnError callback instead.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled means InfluxDB is turned off in configuration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)

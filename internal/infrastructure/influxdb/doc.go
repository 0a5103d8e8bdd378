// Package influxdb records bridge telemetry as time-series points.
//
// It wraps influxdb-client-go v2 behind a small Client that owns the
// connection and a batched write API. Points cover zone run durations,
// controller WiFi signal strength, online/offline transitions, and the
// remaining cloud rate-limit quota.
//
// Writes never block the caller: emit hands the point to the client
// library's batching queue, and delivery failures surface through the
// callback registered with SetOnError. Only Connect, HealthCheck, and
// Flush return errors directly.
//
// When influxdb.enabled is false in config.yaml, Connect returns
// ErrDisabled and the bridge runs without telemetry. Batch size and
// flush interval come from the same config section.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSignalStrength(dev.UID, -61)
//
// All Client methods are safe for concurrent use.
package influxdb

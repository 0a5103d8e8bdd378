// Package api implements the HTTP surface of the bridge.
//
// This package provides:
//   - REST endpoints for controller and zone reads and commands
//   - The inbound cloud webhook endpoint
//   - WebSocket hub for real-time state change broadcasts
//   - JSON system metrics and the zone image proxy
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for deployments exposed beyond the LAN
//
// # Architecture
//
// The server sits between consumers (dashboards, automations, the cloud's
// webhook POSTs) and the entity store + cloud client. Commands flow from
// the API to the cloud; state flows back through webhook events and
// reconciliation, and accepted changes are broadcast to WebSocket clients.
//
// # Security
//
// The REST surface is unauthenticated and intended for LAN deployment
// behind a reverse proxy. The webhook endpoint authenticates events by
// their external ID, which only this process and the cloud know.
//
// # Graceful Degradation
//
// The server operates without MQTT, InfluxDB, or the history database.
// Whatever is wired in shows up in /api/v1/metrics; the rest reports as
// absent.
package api

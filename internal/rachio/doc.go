// Package rachio implements the client side of the Rachio cloud REST API.
//
// This package manages:
//   - Authenticated HTTP calls against the cloud endpoint family
//     (person/device/zone inventory, watering commands, webhook
//     registration)
//   - Quota tracking from the X-RateLimit-* response headers, with
//     warning/critical/blocked classification
//   - A typed error taxonomy (ErrAuth, ErrTransport, ErrProtocol,
//     ErrRateLimited, ErrNotFound) checked with errors.Is
//
// The package mirrors the wire shapes only; the local entity model and
// change detection live in internal/bridge.
//
// Usage:
//
//	client, err := rachio.NewClient(cfg.Rachio)
//	if err != nil {
//	    return err
//	}
//	personID, err := client.PersonID(ctx)
package rachio

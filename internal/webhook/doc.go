// Package webhook processes inbound push events from the cloud service.
//
// This package manages:
//   - The Event wire model and normalization of known upstream payload
//     malformations before JSON decoding
//   - External-ID derivation, the opaque per-account token used to
//     demultiplex events among configured accounts
//   - The Router: authenticate by external ID, classify the event
//     (type, subtype), locate the target device or zone, and apply the
//     update through the entity store
//
// Routing outcomes are explicit (Handled, Unhandled, Rejected); a lookup
// miss is an outcome, never an error, and no failure propagates past
// Route. The HTTP endpoint that feeds this package lives in internal/api.
package webhook

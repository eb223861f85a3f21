// Package encode contains the feature encoders that turn raw categorical,
// geographic and temporal attributes into model-ready numeric columns.
//
// Encoders are constructed with explicit dependencies (mapping tables, the
// geo zone mapper, decay parameters) so they are testable in isolation and
// safe under concurrent use. Each encoder is owned by exactly one
// Forecaster; they are never shared across Forecasters.
//
// Encoding is deliberately lenient: unknown categories become the unknown
// rank, malformed locations resolve to the default zone, unparseable date
// columns fall back to uniform weights. The strict counterpart lives in the
// inference validation layer, which rejects unknown vocabulary before a
// prediction is attempted.
package encode

// Package telemetry holds the channel schema and the latest-value store fed by the ingestion listener.
//
// The schema is a static table of (name, kind, default). Values arriving from packets are coerced to
// the declared kind on write; names outside the schema are ignored.
package telemetry

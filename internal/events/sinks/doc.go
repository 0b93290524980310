// Package sinks contains event.Sink implementations: structured logs,
// Prometheus job runtime collectors and a Pub/Sub topic publisher.
package sinks

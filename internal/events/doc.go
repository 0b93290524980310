// Package events carries job lifecycle notifications from the job manager to
// pluggable sinks. Emission never blocks a run: events are buffered, batched
// on a background goroutine and dropped under backpressure.
package events

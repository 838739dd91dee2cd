// Package progress carries the event stream of a scraping run. The runner
// emits through the Emitter interface; Hub buffers those events without
// blocking and fans them out in batches to sinks such as structured logs,
// Prometheus collectors or the run store.
package progress

/*
Package metrics defines and registers the Prometheus metrics an embedder
exposes for an Index: document counts, index file size, indexing and
search latency, automaton cache hit rate, and consistency-check outcomes.

Metrics are package-level vars, registered against the default registry
at init time; Handler returns the promhttp handler to mount at /metrics.
Collector samples the size-oriented gauges off an *indexcore.Index on a
ticker, the way a long-lived process would run it alongside a
reconciler.Reconciler.
*/
package metrics

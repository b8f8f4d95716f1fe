// Package ingest synchronizes graphs with the relational triple table.
//
// Bootstrap performs a one-time load of every source at startup. Thereafter,
// a PQListener receives change notifications of the table, and an Aggregator
// decodes and accumulates them by source, merging accumulated triples into
// the graph.Integrator on a fixed interval. The Aggregator is the only
// writer into the graph.Integrator once Bootstrap completes.
//
// The listener subscribes before Bootstrap reads begin, so that rows
// committed during Bootstrap are buffered and applied by the first flush.
package ingest

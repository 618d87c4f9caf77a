// Package engine runs the query-answering pipeline.
//
// A question is validated, then answered by the oracle path: cache lookup,
// SQL generation, guarded execution and insight synthesis. When that path
// fails or matches nothing, the keyword searcher answers instead and the
// result records why.
//
// Only oracle successes with at least one row are cached. Each call gets a
// request id from a RequestIDGenerator, so tests can pin ids and the clock
// to produce byte-stable output.
package engine

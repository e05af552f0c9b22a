// Package harness runs declarative YAML scenarios against a fresh
// in-memory store and engine. Each scenario's step trace is compared
// against a golden file, and its assertions validate the final state,
// so the lifecycle, capture, rebase and cascade behavior is pinned down
// end to end in one readable place.
package harness

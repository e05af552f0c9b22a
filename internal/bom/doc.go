// Package bom defines the domain model for versioned bills of materials:
// versions, component lines, change orders, and the change records that
// a rebase replays. Types here are pure data with value semantics; all
// persistence and state transitions live in the store and engine packages.
package bom

// Package engine implements the BOM revision logic on top of the record
// store: change-order lifecycle, diff capture of base-version edits,
// record replay (rebase) onto candidate versions, and the activation
// cascade that re-targets sibling orders when a version goes live.
//
// The engine registers itself as the store's line observer, so diff
// capture is synchronous with every base edit. All operations are plain
// method calls returning typed errors; the CLI and harness sit on top.
package engine

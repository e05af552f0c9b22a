// Package store persists the BOM revision data model in SQLite: versions
// and their component lines, change orders, pending change records, and
// the activation log.
//
// The store is deliberately narrow - create/read/update/delete plus the
// indexed "orders borrowing this base version" search - and it invokes a
// registered LineObserver synchronously on every component-line mutation
// so diff capture sees edits in the order they occur. Composite steps
// that must be atomic (activating a version, re-pointing an order during
// cascade) are single-transaction store methods rather than call sites
// juggling their own transactions.
package store

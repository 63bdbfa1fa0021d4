// Package store provides SQLite-backed document storage for tableside.
//
// The store offers exactly the two primitives the consistency engine needs
// from its persistence collaborator:
//   - Per-record atomic read-modify-write (conditional UPDATEs and short
//     transactions on a single writer connection)
//   - Change notification keyed by collection (products, tables, orders)
//
// # Change Notification
//
// Every mutating call bumps the collection's row in collection_versions
// inside the same transaction, then invokes registered listeners after
// commit. Poll watches collection_versions so a process can observe commits
// made by other processes sharing the same database file.
//
// # Ordering
//
//   - Products: ORDER BY name COLLATE NOCASE, id
//   - Tables: ORDER BY number
//   - Orders: ORDER BY created_at DESC, seq DESC (newest first)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

// Package model defines the shared domain types for tableside: products,
// tables, orders, the order status lifecycle, and the coded error taxonomy.
//
// # Ownership
//
//   - Product is owned by the catalog. Only decrement (on placement) and
//     explicit admin set mutate its quantity.
//   - Table is owned by the table registry. Status writes are unconditional.
//   - Order is owned by the ledger. Line items are immutable after creation;
//     only Status mutates.
//
// # Canonical JSON
//
// Snapshots are fingerprinted with a SHA-256 digest over canonical JSON
// (sorted keys by UTF-16 code units, NFC-normalized strings, no floats).
// The digest is what the hub compares to drop duplicate deliveries, so two
// snapshots with equal content always produce equal digests.
package model

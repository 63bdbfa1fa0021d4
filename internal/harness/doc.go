// Package harness runs restaurant scenarios against the real catalog,
// ledger, table registry, and orchestrator.
//
// A scenario is a YAML file with three parts:
//
//	setup:       products and tables created before the flow
//	flow:        operations with the outcome each should produce
//	assertions:  checks on the trace and the final state
//
// Every flow step is recorded in a trace as an invocation and a
// completion, each stamped with a step sequence number. Products are
// referred to by their setup key and orders by the name bound with "as",
// so traces are stable across runs and can be compared against golden
// files with RunWithGolden.
//
// Each run uses a fresh in-memory store, sequence ID generators, and a
// deterministic clock.
package harness

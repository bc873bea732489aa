// Package sop defines the shared primitives used across the coordinator
// codebase: the UUID wrapper, the ErrorLevel/TransactionError types, logging
// setup and retry/sleep helpers. Concrete node trees, the 2PC manager,
// the timing wheel, the identifier generator, commit log backends, the
// admission policy layer and the HTTP/GraphQL/WebSocket surface live in
// their own subpackages (node, manager, wheel, idgen, commitlog, admission,
// api) and build on top of this package.
//
// This package is intended for internal use within the coordinator and its
// subpackages; it is a foundational layer the rest of the module builds on,
// not an end-user facing API by itself.
package sop

// Timeout model
//
// Coordinator operations (notably commit and replay) are bounded by the
// caller-provided context deadline/cancellation, which propagates to the
// commit log and runtime calls made on the caller's behalf.
//
// The timing wheel scheduler (package wheel) is a separate, opt-in
// mechanism: the manager never schedules deadlines on it, and neither does
// cmd/coordinator, which only runs a scheduler whose callback reacts to
// entries that something else has scheduled. When such an entry fires for
// a node in Prepareing or Actioning, that callback injects
// PrepareFailed/ActionFailed and invokes Rollback, matching the manual
// timeout path documented in SPEC_FULL.md section 5.

// Package launches runs catalog flows on the orchestration platform and keeps
// the execution ledger in step with it.
//
// Lifecycle:
//   - Launch compiles the flow, records a PENDING ledger entry, archives and
//     registers the definition, then starts the platform execution.
//   - Refresh pulls node phases from the platform and advances the ledger
//     phase. Phases only move forward.
//   - Cancel terminates the platform execution and records ABORTED.
//
// Auditing:
//   - launch, completion and cancellation each emit exactly one audit event.
//   - Refreshes that do not change the phase emit nothing.
package launches

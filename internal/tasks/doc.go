// package tasks implements the incremental synchronization engine.
//
// The core abstraction is SyncEngine, which owns the full-vs-incremental
// decision, the polite pagination loop with its early-stop heuristic, and
// idempotent persistence into the item store. Runs emit progress updates via
// channels for non-blocking status reporting to CLI/UI layers.
package tasks

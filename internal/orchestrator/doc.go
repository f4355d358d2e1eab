// Package orchestrator drives discovery attempts across the probe backends.
//
// The engine owns the retry policy: an individual probe call makes exactly
// one attempt, and the engine re-invokes it up to the configured retry count
// with a pause between attempts. Batch discovery fans out over a bounded
// worker group so a slow image cannot serialize the whole run.
package orchestrator

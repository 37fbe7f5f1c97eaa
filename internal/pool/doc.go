// Package pool coordinates a single-process pool of concurrent simulation
// workers.
//
// The [Orchestrator] owns every piece of mutable pool state:
//
//   - environment placement (which worker and slot host which environment)
//   - per-episode counters (step count, cumulative reward, episode index)
//   - the active reward reference per environment
//
// Workers are plain goroutines fed by point-to-point command channels; they
// hold the engine instances and nothing else. Within one worker, commands
// execute strictly in the order sent, so step requests for a slot are FIFO.
// Across workers no ordering is guaranteed; the orchestrator aggregates
// results by environment id.
//
// Every step request carries a monotone per-environment sequence number and
// every result echoes it. A result older than the last accepted sequence is
// discarded, which makes duplicate or late deliveries around worker
// restarts harmless.
//
// # Thread Safety
//
// All exported [Orchestrator] methods are safe for concurrent use. Step
// batches suspend only while awaiting worker replies; callers touching
// disjoint environments do not serialize against each other beyond brief
// registry updates.
package pool

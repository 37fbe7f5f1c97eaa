package pool

import "errors"

// Domain errors for pool operations.
var (
	// ErrPoolInit indicates initialization failed; no partially running
	// pool is left behind.
	ErrPoolInit = errors.New("pool: initialization failed")

	// ErrConfig indicates an environment configuration could not be
	// materialized on its slot.
	ErrConfig = errors.New("pool: environment configuration rejected")

	// ErrUnknownEnvironment indicates a caller used an id that was never
	// assigned. No state is mutated.
	ErrUnknownEnvironment = errors.New("pool: unknown environment id")

	// ErrReconfiguration indicates a reconfiguration was rolled back and
	// the environment kept its prior configuration.
	ErrReconfiguration = errors.New("pool: reconfiguration failed")

	// ErrWorkerUnresponsive indicates a worker missed its response budget.
	// Its environments report last-known observations until the worker is
	// restarted.
	ErrWorkerUnresponsive = errors.New("pool: worker did not respond within budget")

	// ErrEnvironmentBusy indicates an environment is draining or already
	// has a step in flight.
	ErrEnvironmentBusy = errors.New("pool: environment busy")

	// ErrSlotUnusable indicates an environment slot failed its last load
	// and must be reconfigured before use.
	ErrSlotUnusable = errors.New("pool: slot unusable until reloaded")

	// ErrShutdown indicates the orchestrator is no longer running.
	ErrShutdown = errors.New("pool: orchestrator is shut down")
)

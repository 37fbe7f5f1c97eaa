package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/san-kum/envpool/internal/engine"
	"github.com/san-kum/envpool/internal/reward"
)

const DefaultStepTimeout = 2 * time.Second

// Options configures a pool.
type Options struct {
	NumEnvs    int
	NumWorkers int

	// Horizon caps episode length. The step that reaches it is reported
	// done, so episodes end at the horizon, not one step past it. 0
	// disables the cap.
	Horizon int

	// StepTimeout bounds every worker round trip. A worker that misses it
	// is declared unresponsive and restarted before its environments
	// accept another batch.
	StepTimeout time.Duration

	DefaultConfig engine.Config
	DefaultReward reward.Ref
}

// Outcome is one environment's entry in a step batch.
type Outcome struct {
	Obs    []float64
	Reward float64
	Done   bool
	Err    error
}

// Batch maps environment ids to step outcomes.
type Batch map[int]Outcome

type workerHandle struct {
	id    int
	w     *worker
	envs  []int // assigned env ids, in slot order
	alive bool
}

// Orchestrator owns the worker pool and the environment registry. It is the
// single writer of registry state; workers communicate only through their
// command channels. All exported methods are safe for concurrent use.
type Orchestrator struct {
	eng  engine.Engine
	opts Options

	mu      sync.Mutex
	cond    *sync.Cond
	reg     *registry
	workers []*workerHandle
	running bool
}

func New(eng engine.Engine, opts Options) *Orchestrator {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	o := &Orchestrator{
		eng:  eng,
		opts: opts,
		reg:  newRegistry(),
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// Initialize creates the workers, partitions environments round-robin
// (environment i lands on worker i mod numWorkers) and loads every slot.
// Any failure tears the partial pool down before returning.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return fmt.Errorf("%w: already initialized", ErrPoolInit)
	}
	if o.opts.NumWorkers < 1 {
		return fmt.Errorf("%w: need at least one worker, got %d", ErrPoolInit, o.opts.NumWorkers)
	}
	if o.opts.NumEnvs < 1 {
		return fmt.Errorf("%w: need at least one environment, got %d", ErrPoolInit, o.opts.NumEnvs)
	}

	o.workers = make([]*workerHandle, o.opts.NumWorkers)
	for i := range o.workers {
		h := &workerHandle{id: i, w: newWorker(i, o.eng), alive: true}
		go h.w.run()
		o.workers[i] = h
	}

	for id := 0; id < o.opts.NumEnvs; id++ {
		h := o.workers[id%o.opts.NumWorkers]
		cfg := o.opts.DefaultConfig
		cfg.Seed += int64(id)

		e := &envEntry{
			id:        id,
			workerID:  h.id,
			slot:      len(h.envs),
			cfg:       cfg,
			rewardRef: o.opts.DefaultReward,
		}
		h.envs = append(h.envs, id)
		o.reg.add(e)
	}

	for _, id := range o.reg.ids() {
		e, _ := o.reg.get(id)
		h := o.workers[e.workerID]
		obs, err := o.syncLoad(ctx, h.w, e.slot, e.cfg)
		if err != nil {
			o.teardownLocked()
			return fmt.Errorf("%w: loading env %d on worker %d: %v", ErrPoolInit, id, h.id, err)
		}
		e.lastObs = obs
	}

	o.running = true
	return nil
}

// Shutdown stops every worker after in-flight batches and reconfigurations
// settle. Idempotent.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	o.running = false
	for o.anyInFlightLocked() || o.anyDrainingLocked() {
		o.cond.Wait()
	}
	o.teardownLocked()
}

func (o *Orchestrator) teardownLocked() {
	for _, h := range o.workers {
		if h != nil && h.w != nil {
			h.w.stop()
		}
	}
	o.workers = nil
}

func (o *Orchestrator) anyInFlightLocked() bool {
	for _, e := range o.reg.entries {
		if e.inFlight {
			return true
		}
	}
	return false
}

func (o *Orchestrator) anyDrainingLocked() bool {
	for _, e := range o.reg.entries {
		if e.draining {
			return true
		}
	}
	return false
}

// Step advances every environment with a supplied action by one timestep and
// returns the aggregated batch. Environments flagged for auto-reset by a
// previous batch are reset first, so counters in the returned batch always
// describe the episode the observation belongs to. An unresponsive worker
// contributes last-known observations marked done with an error instead of
// stalling the batch.
func (o *Orchestrator) Step(ctx context.Context, actions map[int][]float64) (Batch, error) {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil, ErrShutdown
	}
	for id := range actions {
		if _, err := o.reg.get(id); err != nil {
			o.mu.Unlock()
			return nil, err
		}
	}

	ids := make([]int, 0, len(actions))
	for id := range actions {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	batch := make(Batch, len(actions))

	// Restart workers that went unresponsive in an earlier batch before
	// accepting new work for their environments.
	for _, id := range ids {
		e, _ := o.reg.get(id)
		h := o.workers[e.workerID]
		if !h.alive {
			o.restartWorkerLocked(ctx, h)
		}
	}

	// Deferred auto-resets from terminal flags or horizon.
	resetErrs := make(map[int]error)
	for _, id := range ids {
		e, _ := o.reg.get(id)
		if e.pendingReset && !e.draining && !e.inFlight && !e.unusable {
			if err := o.resetEntryLocked(ctx, e); err != nil {
				resetErrs[id] = err
			}
		}
	}

	type dispatch struct {
		w     *worker
		items []stepItem
	}
	perWorker := make(map[int]*dispatch)

	for _, id := range ids {
		e, _ := o.reg.get(id)
		switch {
		case e.unusable:
			batch[id] = Outcome{Obs: append([]float64(nil), e.lastObs...), Done: true, Err: ErrSlotUnusable}
		case e.draining || e.inFlight:
			batch[id] = Outcome{Obs: append([]float64(nil), e.lastObs...), Done: e.lastDone, Err: ErrEnvironmentBusy}
		case e.pendingReset:
			// Reset failed just above; report rather than stepping a
			// terminal episode.
			batch[id] = Outcome{Obs: append([]float64(nil), e.lastObs...), Done: true, Err: resetErrs[id]}
		default:
			e.seq++
			e.inFlight = true
			d := perWorker[e.workerID]
			if d == nil {
				d = &dispatch{w: o.workers[e.workerID].w}
				perWorker[e.workerID] = d
			}
			d.items = append(d.items, stepItem{envID: id, slot: e.slot, action: actions[id], seq: e.seq})
		}
	}
	timeout := o.opts.StepTimeout
	o.mu.Unlock()

	type workerOutcome struct {
		workerID int
		items    []stepItem
		results  []stepResult
		err      error
	}
	outCh := make(chan workerOutcome, len(perWorker))

	for wid, d := range perWorker {
		go func(wid int, d *dispatch) {
			reply := make(chan []stepResult, 1)
			timer := time.NewTimer(timeout)
			defer timer.Stop()

			select {
			case d.w.cmds <- stepCmd{items: d.items, reply: reply}:
			case <-timer.C:
				outCh <- workerOutcome{workerID: wid, items: d.items, err: ErrWorkerUnresponsive}
				return
			case <-ctx.Done():
				outCh <- workerOutcome{workerID: wid, items: d.items, err: ctx.Err()}
				return
			}

			select {
			case results := <-reply:
				outCh <- workerOutcome{workerID: wid, items: d.items, results: results}
			case <-timer.C:
				outCh <- workerOutcome{workerID: wid, items: d.items, err: ErrWorkerUnresponsive}
			case <-ctx.Done():
				outCh <- workerOutcome{workerID: wid, items: d.items, err: ctx.Err()}
			}
		}(wid, d)
	}

	collected := make([]workerOutcome, 0, len(perWorker))
	for range perWorker {
		collected = append(collected, <-outCh)
	}

	o.mu.Lock()
	for _, wo := range collected {
		if wo.err != nil {
			h := o.workers[wo.workerID]
			if errors.Is(wo.err, ErrWorkerUnresponsive) {
				h.alive = false
				// The restart reloads every slot on this worker, so
				// co-hosted environments outside this batch lose their
				// episodes too and must reset before stepping again.
				// Entries in flight belong to another batch whose own
				// collection handles them.
				for _, id := range h.envs {
					e, _ := o.reg.get(id)
					if e.inFlight {
						continue
					}
					e.lastDone = true
					e.pendingReset = true
				}
			}
			for _, item := range wo.items {
				e, _ := o.reg.get(item.envID)
				e.inFlight = false
				e.lastDone = true
				e.pendingReset = true
				batch[item.envID] = Outcome{
					Obs:  append([]float64(nil), e.lastObs...),
					Done: true,
					Err:  wo.err,
				}
			}
			continue
		}
		for _, res := range wo.results {
			if out, applied := o.applyResultLocked(res); applied {
				batch[res.envID] = out
			}
		}
	}
	o.cond.Broadcast()
	o.mu.Unlock()

	return batch, nil
}

// applyResultLocked folds one worker result into the registry. Results whose
// sequence is not newer than the last accepted one are discarded (duplicate
// or stale delivery, e.g. around a worker restart).
func (o *Orchestrator) applyResultLocked(res stepResult) (Outcome, bool) {
	e, err := o.reg.get(res.envID)
	if err != nil {
		return Outcome{Err: err}, false
	}
	if res.seq <= e.lastApplied {
		return Outcome{}, false
	}
	e.lastApplied = res.seq
	e.inFlight = false

	if res.err != nil {
		if errors.Is(res.err, ErrSlotUnusable) {
			e.unusable = true
		}
		e.lastDone = true
		e.pendingReset = true
		return Outcome{Obs: append([]float64(nil), e.lastObs...), Done: true, Err: res.err}, true
	}

	e.stepCount++
	e.cumulativeReward += res.reward
	e.lastObs = res.obs

	done := res.done
	if o.opts.Horizon > 0 && e.stepCount >= o.opts.Horizon {
		done = true
	}
	e.lastDone = done
	if done {
		e.pendingReset = true
	}
	return Outcome{Obs: res.obs, Reward: res.reward, Done: done}, true
}

// Reset reinitializes the given environments, zeroes their episode counters
// and increments their episode index. It returns the fresh initial
// observations keyed by environment id.
func (o *Orchestrator) Reset(ctx context.Context, envIDs []int) (map[int][]float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return nil, ErrShutdown
	}
	for _, id := range envIDs {
		if _, err := o.reg.get(id); err != nil {
			return nil, err
		}
	}

	ids := append([]int(nil), envIDs...)
	sort.Ints(ids)

	obsMap := make(map[int][]float64, len(ids))
	var errs []error
	for _, id := range ids {
		e, _ := o.reg.get(id)
		for e.inFlight || e.draining {
			o.cond.Wait()
		}
		h := o.workers[e.workerID]
		if !h.alive {
			o.restartWorkerLocked(ctx, h)
		}
		if err := o.resetEntryLocked(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("env %d: %w", id, err))
			continue
		}
		obsMap[id] = append([]float64(nil), e.lastObs...)
	}
	return obsMap, errors.Join(errs...)
}

func (o *Orchestrator) resetEntryLocked(ctx context.Context, e *envEntry) error {
	h := o.workers[e.workerID]
	obs, err := o.syncReset(ctx, h.w, e.slot)
	if err != nil {
		if errors.Is(err, ErrWorkerUnresponsive) {
			h.alive = false
		}
		return err
	}
	e.stepCount = 0
	e.cumulativeReward = 0
	e.episodeIndex++
	e.lastObs = obs
	e.lastDone = false
	e.pendingReset = false
	return nil
}

// restartWorkerLocked replaces an unresponsive worker's goroutine and
// reloads every assigned slot from its last committed config. The old
// goroutine is abandoned; if it is wedged inside an engine call there is
// nothing useful left to do with it. Reloading destroys every episode the
// worker was hosting, so all of its environments are flagged for a reset
// before they step again.
func (o *Orchestrator) restartWorkerLocked(ctx context.Context, h *workerHandle) {
	h.w = newWorker(h.id, o.eng)
	go h.w.run()
	h.alive = true

	for _, id := range h.envs {
		e, _ := o.reg.get(id)
		obs, err := o.syncLoad(ctx, h.w, e.slot, e.cfg)
		if err != nil {
			e.unusable = true
			continue
		}
		e.unusable = false
		e.lastObs = obs
		if !e.inFlight {
			e.lastDone = true
			e.pendingReset = true
		}
	}
}

// EnvironmentState returns a read-only snapshot of one registry entry.
func (o *Orchestrator) EnvironmentState(envID int) (EnvState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return EnvState{}, ErrShutdown
	}
	e, err := o.reg.get(envID)
	if err != nil {
		return EnvState{}, err
	}
	return e.snapshot(), nil
}

// States returns snapshots of every environment, ordered by id.
func (o *Orchestrator) States() []EnvState {
	o.mu.Lock()
	defer o.mu.Unlock()
	states := make([]EnvState, 0, len(o.reg.entries))
	for _, id := range o.reg.ids() {
		e, _ := o.reg.get(id)
		states = append(states, e.snapshot())
	}
	return states
}

// The sync helpers take a *worker captured while holding o.mu; handles may be
// re-pointed at a replacement worker by a concurrent restart, captured workers
// never change.
func (o *Orchestrator) syncLoad(ctx context.Context, w *worker, slot int, cfg engine.Config) ([]float64, error) {
	reply := make(chan loadReply, 1)
	return o.awaitLoadReply(ctx, w, loadCmd{slot: slot, cfg: cfg, reply: reply}, reply)
}

func (o *Orchestrator) syncReset(ctx context.Context, w *worker, slot int) ([]float64, error) {
	reply := make(chan loadReply, 1)
	return o.awaitLoadReply(ctx, w, resetCmd{slot: slot, reply: reply}, reply)
}

func (o *Orchestrator) awaitLoadReply(ctx context.Context, w *worker, cmd workerCommand, reply <-chan loadReply) ([]float64, error) {
	timer := time.NewTimer(o.opts.StepTimeout)
	defer timer.Stop()

	select {
	case w.cmds <- cmd:
	case <-timer.C:
		return nil, ErrWorkerUnresponsive
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.obs, r.err
	case <-timer.C:
		return nil, ErrWorkerUnresponsive
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/envpool/internal/engine"
	"github.com/san-kum/envpool/internal/reward"
)

// Change describes a live reconfiguration. Config swaps the physical
// configuration (implicitly starting a new episode); Reward swaps the active
// reward reference with no worker interaction. Either or both may be set.
type Change struct {
	Config *engine.Config
	Reward *reward.Ref
}

// Reconfigure mutates the targeted environments without disturbing the rest
// of the pool. Each target is drained first: no new step requests are
// accepted for it and any in-flight step settles before the change applies.
// Requests on overlapping environment sets serialize; disjoint sets proceed
// independently. A failed config load rolls the environment back to its
// prior configuration and reports the failure.
func (o *Orchestrator) Reconfigure(ctx context.Context, envIDs []int, change Change) error {
	if change.Config == nil && change.Reward == nil {
		return fmt.Errorf("%w: empty change", ErrReconfiguration)
	}
	if len(envIDs) == 0 {
		return nil
	}

	ids := append([]int(nil), envIDs...)
	sort.Ints(ids)

	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return ErrShutdown
	}
	for _, id := range ids {
		if _, err := o.reg.get(id); err != nil {
			o.mu.Unlock()
			return err
		}
	}

	// Acquire draining in ascending id order so overlapping requests
	// cannot deadlock; the second request waits for the first to clear.
	for _, id := range ids {
		e, _ := o.reg.get(id)
		for e.draining {
			o.cond.Wait()
		}
		e.draining = true
	}
	for _, id := range ids {
		e, _ := o.reg.get(id)
		for e.inFlight {
			o.cond.Wait()
		}
	}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		for _, id := range ids {
			if e, err := o.reg.get(id); err == nil {
				e.draining = false
			}
		}
		o.cond.Broadcast()
		o.mu.Unlock()
	}()

	var errs []error
	for _, id := range ids {
		if err := o.reconfigureEnv(ctx, id, change); err != nil {
			errs = append(errs, fmt.Errorf("env %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) reconfigureEnv(ctx context.Context, id int, change Change) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return ErrShutdown
	}
	e, err := o.reg.get(id)
	if err != nil {
		o.mu.Unlock()
		return err
	}

	if change.Config == nil {
		// Reward-only swap: registry field update, no worker round trip.
		e.rewardRef = *change.Reward
		o.mu.Unlock()
		return nil
	}

	h := o.workers[e.workerID]
	if !h.alive {
		o.restartWorkerLocked(ctx, h)
	}
	w := h.w
	slot := e.slot
	prior := e.cfg
	o.mu.Unlock()

	obs, loadErr := o.syncLoad(ctx, w, slot, *change.Config)

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return ErrShutdown
	}
	if h.w != w {
		// The worker was replaced while the load was outstanding; the
		// replacement already reloaded the committed (prior) config, so
		// the load result belongs to an abandoned goroutine.
		return fmt.Errorf("%w: worker %d restarted during load", ErrReconfiguration, h.id)
	}

	if loadErr != nil {
		if errors.Is(loadErr, ErrWorkerUnresponsive) {
			// Restarting reloads every slot from its committed config,
			// which is still the prior one for this environment.
			h.alive = false
			o.restartWorkerLocked(ctx, h)
		} else if priorObs, rbErr := o.syncLoad(ctx, h.w, slot, prior); rbErr == nil {
			// The failed load left the slot empty; restore the prior
			// config so the environment is not left undefined.
			e.lastObs = priorObs
			e.unusable = false
		} else {
			e.unusable = true
		}
		return fmt.Errorf("%w: %v", ErrReconfiguration, loadErr)
	}

	e.cfg = *change.Config
	e.unusable = false
	e.stepCount = 0
	e.cumulativeReward = 0
	e.episodeIndex++
	e.lastObs = obs
	e.lastDone = false
	e.pendingReset = false
	if change.Reward != nil {
		e.rewardRef = *change.Reward
	}
	return nil
}

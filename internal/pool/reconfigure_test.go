package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/san-kum/envpool/internal/engine"
	"github.com/san-kum/envpool/internal/reward"
)

func TestRewardSwapIsolation(t *testing.T) {
	o, _ := newTestPool(t, 4, 2, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := o.Step(ctx, allActions(4)); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	before := make(map[int]EnvState)
	for id := 0; id < 4; id++ {
		before[id], _ = o.EnvironmentState(id)
	}

	ref := reward.Ref("upright")
	if err := o.Reconfigure(ctx, []int{2}, Change{Reward: &ref}); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}

	s2, _ := o.EnvironmentState(2)
	if s2.Reward != ref {
		t.Errorf("env 2 reward ref %q, expected %q", s2.Reward, ref)
	}
	// A reward swap touches registry state only; counters survive.
	if s2.StepCount != before[2].StepCount || s2.CumulativeReward != before[2].CumulativeReward {
		t.Errorf("reward swap altered env 2 counters")
	}

	for _, id := range []int{0, 1, 3} {
		s, _ := o.EnvironmentState(id)
		if s.Reward != before[id].Reward {
			t.Errorf("env %d reward ref changed by reconfiguring env 2", id)
		}
		if s.CumulativeReward != before[id].CumulativeReward {
			t.Errorf("env %d cumulative reward changed by reconfiguring env 2", id)
		}
		if s.EpisodeIndex != before[id].EpisodeIndex {
			t.Errorf("env %d episode changed by reconfiguring env 2", id)
		}
		if s.Config.Model != before[id].Config.Model {
			t.Errorf("env %d config changed by reconfiguring env 2", id)
		}
	}
}

func TestConfigReconfigureStartsNewEpisode(t *testing.T) {
	o, _ := newTestPool(t, 4, 2, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := o.Step(ctx, allActions(4)); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	newCfg := fakeConfig(map[string]float64{"reward": 2})
	newCfg.Seed = 42
	if err := o.Reconfigure(ctx, []int{2}, Change{Config: &newCfg}); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}

	s2, _ := o.EnvironmentState(2)
	if s2.StepCount != 0 || s2.EpisodeIndex != 1 {
		t.Errorf("env 2: steps %d episode %d, expected fresh episode", s2.StepCount, s2.EpisodeIndex)
	}
	if s2.Config.Seed != 42 {
		t.Errorf("env 2 config not updated")
	}

	batch, err := o.Step(ctx, map[int][]float64{2: {0}})
	if err != nil {
		t.Fatalf("step after reconfigure: %v", err)
	}
	if batch[2].Reward != 2 {
		t.Errorf("env 2 not running the new config: reward %f", batch[2].Reward)
	}
	s2, _ = o.EnvironmentState(2)
	if s2.StepCount != 1 || s2.EpisodeIndex != 1 {
		t.Errorf("env 2: steps %d episode %d after first step of new episode", s2.StepCount, s2.EpisodeIndex)
	}

	// Untargeted environments keep their counters.
	s0, _ := o.EnvironmentState(0)
	if s0.StepCount != 5 || s0.EpisodeIndex != 0 {
		t.Errorf("env 0 disturbed by reconfiguring env 2: steps %d episode %d", s0.StepCount, s0.EpisodeIndex)
	}
}

func TestReconfigureRollbackOnLoadFailure(t *testing.T) {
	o, _ := newTestPool(t, 2, 1, nil)
	ctx := context.Background()

	if _, err := o.Step(ctx, allActions(2)); err != nil {
		t.Fatalf("step: %v", err)
	}

	bad := fakeConfig(nil)
	bad.Model = "bad"
	err := o.Reconfigure(ctx, []int{1}, Change{Config: &bad})
	if !errors.Is(err, ErrReconfiguration) {
		t.Fatalf("expected ErrReconfiguration, got %v", err)
	}

	s, _ := o.EnvironmentState(1)
	if s.Config.Model != "fake" {
		t.Errorf("env 1 config not reverted: %q", s.Config.Model)
	}

	// The environment still steps on its prior configuration.
	batch, err := o.Step(ctx, map[int][]float64{1: {0}})
	if err != nil {
		t.Fatalf("step after rollback: %v", err)
	}
	if batch[1].Err != nil {
		t.Errorf("env 1 unusable after rollback: %v", batch[1].Err)
	}
}

func TestReconfigureUnknownEnvironment(t *testing.T) {
	o, _ := newTestPool(t, 2, 1, nil)
	ref := reward.Ref("upright")
	err := o.Reconfigure(context.Background(), []int{9}, Change{Reward: &ref})
	if !errors.Is(err, ErrUnknownEnvironment) {
		t.Errorf("expected ErrUnknownEnvironment, got %v", err)
	}
}

func TestReconfigureEmptyChange(t *testing.T) {
	o, _ := newTestPool(t, 2, 1, nil)
	err := o.Reconfigure(context.Background(), []int{0}, Change{})
	if !errors.Is(err, ErrReconfiguration) {
		t.Errorf("expected ErrReconfiguration, got %v", err)
	}
}

func TestOverlappingReconfiguresSerialize(t *testing.T) {
	o, _ := newTestPool(t, 2, 1, nil)
	ctx := context.Background()

	cfgA := fakeConfig(nil)
	cfgA.Seed = 100
	cfgB := fakeConfig(nil)
	cfgB.Seed = 200

	var wg sync.WaitGroup
	for _, cfg := range []engine.Config{cfgA, cfgB} {
		wg.Add(1)
		go func(cfg engine.Config) {
			defer wg.Done()
			if err := o.Reconfigure(ctx, []int{0}, Change{Config: &cfg}); err != nil {
				t.Errorf("reconfigure: %v", err)
			}
		}(cfg)
	}
	wg.Wait()

	s, _ := o.EnvironmentState(0)
	if s.EpisodeIndex != 2 {
		t.Errorf("expected both reconfigurations to apply in turn, episode %d", s.EpisodeIndex)
	}
	if s.Config.Seed != 100 && s.Config.Seed != 200 {
		t.Errorf("unexpected final config seed %d", s.Config.Seed)
	}
}

func TestShutdownWaitsForReconfigure(t *testing.T) {
	eng := newFakeEngine()
	o := New(eng, buildOpts(1, 1, nil, func(opts *Options) {
		opts.StepTimeout = 50 * time.Millisecond
	}))
	ctx := context.Background()
	if err := o.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// Wedge a step so the reconfiguration has to drain behind it, keeping
	// the environment draining while Shutdown arrives.
	eng.blockOn(0)
	stepDone := make(chan struct{})
	go func() {
		defer close(stepDone)
		o.Step(ctx, allActions(1))
	}()
	time.Sleep(10 * time.Millisecond)

	recDone := make(chan error, 1)
	go func() {
		cfg := fakeConfig(nil)
		cfg.Seed = 5
		recDone <- o.Reconfigure(ctx, []int{0}, Change{Config: &cfg})
	}()
	time.Sleep(10 * time.Millisecond)

	shutDone := make(chan struct{})
	go func() {
		defer close(shutDone)
		o.Shutdown()
	}()

	select {
	case <-stepDone:
	case <-time.After(2 * time.Second):
		t.Fatal("step did not settle")
	}
	eng.unblock()

	// Shutdown must let the draining reconfiguration settle instead of
	// tearing the workers down underneath it.
	var recErr error
	select {
	case recErr = <-recDone:
	case <-time.After(2 * time.Second):
		t.Fatal("reconfigure did not settle")
	}
	select {
	case <-shutDone:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	if recErr != nil && !errors.Is(recErr, ErrShutdown) && !errors.Is(recErr, ErrReconfiguration) {
		t.Errorf("unexpected reconfigure error: %v", recErr)
	}
	if _, err := o.Step(ctx, allActions(1)); !errors.Is(err, ErrShutdown) {
		t.Errorf("expected ErrShutdown after shutdown, got %v", err)
	}
}

func TestDrainingEnvironmentRejectsSteps(t *testing.T) {
	o, _ := newTestPool(t, 2, 1, nil)
	ctx := context.Background()

	o.mu.Lock()
	e, _ := o.reg.get(0)
	e.draining = true
	o.mu.Unlock()

	batch, err := o.Step(ctx, allActions(2))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !errors.Is(batch[0].Err, ErrEnvironmentBusy) {
		t.Errorf("expected ErrEnvironmentBusy for draining env, got %v", batch[0].Err)
	}
	if batch[1].Err != nil {
		t.Errorf("untargeted env affected: %v", batch[1].Err)
	}

	o.mu.Lock()
	e.draining = false
	o.cond.Broadcast()
	o.mu.Unlock()
}

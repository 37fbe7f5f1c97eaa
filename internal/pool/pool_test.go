package pool

import (
	"fmt"
	"sync"

	"github.com/san-kum/envpool/internal/engine"
)

// fakeEngine is a scriptable engine for pool tests. Config knobs:
//
//	Model "bad"            materialize fails
//	Params["done_after"]   instance reports done after that many steps
//	Params["reward"]       per-step reward (default 1)
//
// Instances whose seed matches blockSeed stall inside Step until release is
// closed, which simulates an unresponsive worker.
type fakeEngine struct {
	mu        sync.Mutex
	loads     map[int64]int // materialize count per seed
	blockSeed int64
	blocking  bool
	release   chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		loads:   make(map[int64]int),
		release: make(chan struct{}),
	}
}

func (f *fakeEngine) blockOn(seed int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockSeed = seed
	f.blocking = true
}

func (f *fakeEngine) unblock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocking = false
	close(f.release)
	f.release = make(chan struct{})
}

func (f *fakeEngine) shouldBlock(seed int64) (<-chan struct{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.release, f.blocking && seed == f.blockSeed
}

func (f *fakeEngine) loadCount(seed int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[seed]
}

func (f *fakeEngine) Materialize(cfg engine.Config) (engine.Instance, error) {
	if cfg.Model == "bad" {
		return nil, fmt.Errorf("%w: scripted failure", engine.ErrBadConfig)
	}
	f.mu.Lock()
	f.loads[cfg.Seed]++
	f.mu.Unlock()
	return &fakeInstance{eng: f, cfg: cfg}, nil
}

type fakeInstance struct {
	eng   *fakeEngine
	cfg   engine.Config
	steps int
}

func (i *fakeInstance) Step(action []float64) ([]float64, float64, bool) {
	if ch, block := i.eng.shouldBlock(i.cfg.Seed); block {
		<-ch
	}
	i.steps++
	obs := []float64{float64(i.steps), float64(i.cfg.Seed)}
	reward := i.cfg.Param("reward", 1.0)
	doneAfter := int(i.cfg.Param("done_after", 0))
	done := doneAfter > 0 && i.steps >= doneAfter
	return obs, reward, done
}

func (i *fakeInstance) Reset() []float64 {
	i.steps = 0
	return []float64{0, float64(i.cfg.Seed)}
}

func fakeConfig(params map[string]float64) engine.Config {
	return engine.Config{Model: "fake", Dt: 0.01, Params: params}
}

func allActions(n int) map[int][]float64 {
	actions := make(map[int][]float64, n)
	for i := 0; i < n; i++ {
		actions[i] = []float64{0}
	}
	return actions
}

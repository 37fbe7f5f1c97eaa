package pool

import (
	"fmt"
	"sort"

	"github.com/san-kum/envpool/internal/engine"
	"github.com/san-kum/envpool/internal/reward"
)

// envEntry is the registry record for one environment. Entries are mutated
// only by the orchestrator while holding its lock; workers never see them.
type envEntry struct {
	id       int
	workerID int
	slot     int

	cfg       engine.Config
	rewardRef reward.Ref

	episodeIndex     int
	stepCount        int
	cumulativeReward float64
	lastObs          []float64
	lastDone         bool

	// seq is the last request sequence issued; lastApplied the last one
	// accepted. A result older than lastApplied is stale and discarded.
	seq         uint64
	lastApplied uint64

	inFlight     bool
	draining     bool
	pendingReset bool
	unusable     bool
}

type registry struct {
	entries map[int]*envEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[int]*envEntry)}
}

func (r *registry) add(e *envEntry) {
	r.entries[e.id] = e
}

func (r *registry) get(id int) (*envEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEnvironment, id)
	}
	return e, nil
}

func (r *registry) ids() []int {
	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// EnvState is a read-only snapshot of a registry entry.
type EnvState struct {
	EnvID            int
	WorkerID         int
	Slot             int
	Config           engine.Config
	Reward           reward.Ref
	EpisodeIndex     int
	StepCount        int
	CumulativeReward float64
	LastObservation  []float64
	Done             bool
	PendingReset     bool
}

func (e *envEntry) snapshot() EnvState {
	return EnvState{
		EnvID:            e.id,
		WorkerID:         e.workerID,
		Slot:             e.slot,
		Config:           e.cfg,
		Reward:           e.rewardRef,
		EpisodeIndex:     e.episodeIndex,
		StepCount:        e.stepCount,
		CumulativeReward: e.cumulativeReward,
		LastObservation:  append([]float64(nil), e.lastObs...),
		Done:             e.lastDone,
		PendingReset:     e.pendingReset,
	}
}

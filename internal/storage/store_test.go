package storage

import (
	"testing"
)

func sampleRecords() []StepRecord {
	return []StepRecord{
		{Step: 0, EnvID: 0, Episode: 0, Reward: 1, CumulativeReward: 1},
		{Step: 0, EnvID: 1, Episode: 0, Reward: 1, CumulativeReward: 1},
		{Step: 1, EnvID: 0, Episode: 0, Reward: 1, CumulativeReward: 2},
		{Step: 1, EnvID: 1, Episode: 0, Reward: 0, CumulativeReward: 1, Done: true},
	}
}

func TestSaveAndLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	meta := RunMetadata{Model: "cartpole", NumEnvs: 2, NumWorkers: 1, Steps: 2, Policy: "random", Reward: "survival"}
	runID, err := st.Save(meta, sampleRecords())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if runID == "" {
		t.Fatal("empty run id")
	}

	loaded, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != runID || loaded.Model != "cartpole" || loaded.NumEnvs != 2 {
		t.Errorf("metadata mismatch: %+v", loaded)
	}
	if loaded.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}

	for i := 0; i < 3; i++ {
		if _, err := st.Save(RunMetadata{Model: "pendulum"}, sampleRecords()); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("expected 3 runs, got %d", len(runs))
	}
}

func TestLoadSeries(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	runID, err := st.Save(RunMetadata{Model: "cartpole"}, sampleRecords())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	series, err := st.LoadSeries(runID, 0)
	if err != nil {
		t.Fatalf("load series: %v", err)
	}
	if len(series) != 2 || series[0] != 1 || series[1] != 2 {
		t.Errorf("unexpected series: %v", series)
	}

	if _, err := st.LoadSeries(runID, 42); err == nil {
		t.Error("expected error for unknown env")
	}
}

package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Store persists rollout runs under a base directory: one directory per run
// with metadata.json and steps.csv.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Timestamp  time.Time `json:"timestamp"`
	NumEnvs    int       `json:"num_envs"`
	NumWorkers int       `json:"num_workers"`
	Steps      int       `json:"steps"`
	Horizon    int       `json:"horizon"`
	Seed       int64     `json:"seed"`
	Policy     string    `json:"policy"`
	Reward     string    `json:"reward"`
	Episodes   int       `json:"episodes"`
	MeanReward float64   `json:"mean_reward"`
}

// StepRecord is one environment's row for one orchestrator step.
type StepRecord struct {
	Step             int
	EnvID            int
	Episode          int
	Reward           float64
	CumulativeReward float64
	Done             bool
}

func (s *Store) Save(meta RunMetadata, records []StepRecord) (string, error) {
	runID := uuid.NewString()
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "steps.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := []string{"step", "env", "episode", "reward", "cumulative_reward", "done"}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, rec := range records {
		row := []string{
			strconv.Itoa(rec.Step),
			strconv.Itoa(rec.EnvID),
			strconv.Itoa(rec.Episode),
			strconv.FormatFloat(rec.Reward, 'f', 6, 64),
			strconv.FormatFloat(rec.CumulativeReward, 'f', 6, 64),
			strconv.FormatBool(rec.Done),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSeries returns one environment's cumulative reward over steps.
func (s *Store) LoadSeries(runID string, envID int) ([]float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "steps.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []float64{}, nil
	}

	series := make([]float64, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 5 {
			continue
		}
		env, err := strconv.Atoi(record[1])
		if err != nil || env != envID {
			continue
		}
		v, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			continue
		}
		series = append(series, v)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no records for env %d in run %s", envID, runID)
	}
	return series, nil
}

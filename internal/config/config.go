package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/envpool/internal/engine"
	"github.com/san-kum/envpool/internal/pool"
	"github.com/san-kum/envpool/internal/reward"
)

const (
	DefaultDt         = 0.02
	DefaultNumEnvs    = 4
	DefaultNumWorkers = 2
	DefaultHorizon    = 500
	DefaultTimeoutMs  = 2000
)

type Config struct {
	NumEnvs       int                `yaml:"num_envs"`
	NumWorkers    int                `yaml:"num_workers"`
	Model         string             `yaml:"model"`
	Dt            float64            `yaml:"dt"`
	Horizon       int                `yaml:"horizon"`
	StepTimeoutMs int                `yaml:"step_timeout_ms"`
	Seed          int64              `yaml:"seed"`
	Reward        string             `yaml:"reward"`
	Policy        string             `yaml:"policy"`
	Init          []float64          `yaml:"init,omitempty"`
	Params        map[string]float64 `yaml:"params,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		NumEnvs:       DefaultNumEnvs,
		NumWorkers:    DefaultNumWorkers,
		Model:         "cartpole",
		Dt:            DefaultDt,
		Horizon:       DefaultHorizon,
		StepTimeoutMs: DefaultTimeoutMs,
		Reward:        string(reward.Survival),
		Policy:        "random",
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EngineConfig builds the per-environment default engine configuration.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Model:  c.Model,
		Dt:     c.Dt,
		Seed:   c.Seed,
		Init:   c.Init,
		Params: c.Params,
	}
}

// PoolOptions builds the orchestrator options.
func (c *Config) PoolOptions() pool.Options {
	return pool.Options{
		NumEnvs:       c.NumEnvs,
		NumWorkers:    c.NumWorkers,
		Horizon:       c.Horizon,
		StepTimeout:   time.Duration(c.StepTimeoutMs) * time.Millisecond,
		DefaultConfig: c.EngineConfig(),
		DefaultReward: reward.Ref(c.Reward),
	}
}

// ActionDim reports the control vector width for the configured model.
func (c *Config) ActionDim() int {
	// Both bundled backends take a single scalar control.
	return 1
}

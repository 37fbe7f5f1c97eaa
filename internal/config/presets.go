package config

var Presets = map[string]map[string]*Config{
	"cartpole": {
		"small": {
			Model: "cartpole", NumEnvs: 4, NumWorkers: 2, Dt: 0.02,
			Horizon: 200, StepTimeoutMs: DefaultTimeoutMs,
			Reward: "survival", Policy: "pd",
			Init: []float64{0, 0, 0.05, 0},
		},
		"wide": {
			Model: "cartpole", NumEnvs: 32, NumWorkers: 8, Dt: 0.02,
			Horizon: 500, StepTimeoutMs: DefaultTimeoutMs,
			Reward: "survival", Policy: "pd",
		},
		"chaos": {
			Model: "cartpole", NumEnvs: 8, NumWorkers: 4, Dt: 0.02,
			Horizon: 500, StepTimeoutMs: DefaultTimeoutMs,
			Reward: "survival", Policy: "random",
		},
	},
	"pendulum": {
		"upright": {
			Model: "pendulum", NumEnvs: 4, NumWorkers: 2, Dt: 0.01,
			Horizon: 1000, StepTimeoutMs: DefaultTimeoutMs,
			Reward: "upright", Policy: "zero",
			Init: []float64{0.1, 0},
		},
		"swing": {
			Model: "pendulum", NumEnvs: 16, NumWorkers: 4, Dt: 0.01,
			Horizon: 1000, StepTimeoutMs: DefaultTimeoutMs,
			Reward: "upright", Policy: "random",
		},
	},
}

func GetPreset(model, name string) *Config {
	group, ok := Presets[model]
	if !ok {
		return nil
	}
	return group[name]
}

func ListPresets(model string) []string {
	group, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(group))
	for name := range group {
		names = append(names, name)
	}
	return names
}

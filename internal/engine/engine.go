package engine

import (
	"errors"
	"fmt"
	"math"
)

// Errors returned when a configuration cannot be materialized.
var (
	ErrBadConfig    = errors.New("engine: invalid configuration")
	ErrUnknownModel = errors.New("engine: unknown model")
)

// Config describes one environment instance. The pool treats it as opaque
// beyond identity; only backends interpret the fields.
type Config struct {
	Model  string             `yaml:"model" json:"model"`
	Dt     float64            `yaml:"dt" json:"dt"`
	Seed   int64              `yaml:"seed" json:"seed"`
	Init   []float64          `yaml:"init" json:"init,omitempty"`
	Params map[string]float64 `yaml:"params" json:"params,omitempty"`
}

func (c Config) Param(name string, fallback float64) float64 {
	if v, ok := c.Params[name]; ok {
		return v
	}
	return fallback
}

// Instance is one live simulation. Calls are synchronous and an instance is
// never shared between goroutines; the hosting worker serializes access.
type Instance interface {
	// Step applies a control vector, advances one fixed timestep and
	// reports the new observation, the immediate reward and whether the
	// episode terminated.
	Step(action []float64) (obs []float64, reward float64, done bool)

	// Reset returns the instance to its episode-start state and reports
	// the initial observation.
	Reset() []float64
}

// Engine materializes instances from configurations.
type Engine interface {
	Materialize(cfg Config) (Instance, error)
}

// Default is the built-in engine covering the bundled backends.
type Default struct{}

func NewDefault() *Default { return &Default{} }

func (d *Default) Materialize(cfg Config) (Instance, error) {
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("%w: dt must be positive, got %f", ErrBadConfig, cfg.Dt)
	}
	switch cfg.Model {
	case "cartpole":
		return newCartPole(cfg)
	case "pendulum":
		return newPendulum(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, cfg.Model)
	}
}

// derivFunc computes dx/dt for a backend's dynamics.
type derivFunc func(x, u []float64) []float64

// rk4 advances x by one dt using classical Runge-Kutta.
func rk4(f derivFunc, x, u []float64, dt float64) []float64 {
	n := len(x)
	k1 := f(x, u)

	scratch := make([]float64, n)
	for i := 0; i < n; i++ {
		scratch[i] = x[i] + dt*0.5*k1[i]
	}
	k2 := f(scratch, u)

	for i := 0; i < n; i++ {
		scratch[i] = x[i] + dt*0.5*k2[i]
	}
	k3 := f(scratch, u)

	for i := 0; i < n; i++ {
		scratch[i] = x[i] + dt*k3[i]
	}
	k4 := f(scratch, u)

	result := make([]float64, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return result
}

func validState(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

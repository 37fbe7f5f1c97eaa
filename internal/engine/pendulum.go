package engine

import (
	"fmt"
	"math"
	"math/rand"
)

// pendulum is a damped torque-controlled pendulum. State is [theta, omega]
// with theta measured from the upright position. Reward is the negative
// squared distance from upright; the episode ends when the pendulum swings
// past the fall threshold.
type pendulum struct {
	mass      float64
	length    float64
	damping   float64
	gravity   float64
	torqueMax float64
	dt        float64

	fallThreshold float64

	init  []float64
	state []float64
	rng   *rand.Rand
}

func newPendulum(cfg Config) (*pendulum, error) {
	p := &pendulum{
		mass:          cfg.Param("mass", 1.0),
		length:        cfg.Param("length", 1.0),
		damping:       cfg.Param("damping", 0.1),
		gravity:       cfg.Param("gravity", 9.81),
		torqueMax:     cfg.Param("torque_max", 5.0),
		fallThreshold: cfg.Param("fall_threshold", math.Pi/2),
		dt:            cfg.Dt,
		rng:           rand.New(rand.NewSource(cfg.Seed)),
	}
	if p.mass <= 0 || p.length <= 0 {
		return nil, fmt.Errorf("%w: pendulum mass and length must be positive", ErrBadConfig)
	}
	if len(cfg.Init) != 0 && len(cfg.Init) != 2 {
		return nil, fmt.Errorf("%w: pendulum init state needs 2 values, got %d", ErrBadConfig, len(cfg.Init))
	}
	if len(cfg.Init) == 2 {
		p.init = append([]float64(nil), cfg.Init...)
	}
	p.Reset()
	return p, nil
}

func (p *pendulum) Reset() []float64 {
	if p.init != nil {
		p.state = append([]float64(nil), p.init...)
	} else {
		p.state = []float64{
			p.rng.Float64()*0.2 - 0.1,
			p.rng.Float64()*0.2 - 0.1,
		}
	}
	return append([]float64(nil), p.state...)
}

func (p *pendulum) derive(x, u []float64) []float64 {
	theta := x[0]
	omega := x[1]

	torque := 0.0
	if len(u) > 0 {
		torque = math.Max(-p.torqueMax, math.Min(p.torqueMax, u[0]))
	}

	// Gravity destabilizes the upright equilibrium at theta = 0.
	alpha := (-p.damping*omega + p.mass*p.gravity*p.length*math.Sin(theta) + torque) /
		(p.mass * p.length * p.length)

	return []float64{omega, alpha}
}

func (p *pendulum) Step(action []float64) ([]float64, float64, bool) {
	p.state = rk4(p.derive, p.state, action, p.dt)

	obs := append([]float64(nil), p.state...)
	theta := p.state[0]

	done := math.Abs(theta) > p.fallThreshold || !validState(p.state)
	reward := -(theta * theta)
	if done {
		reward = -10.0
	}
	return obs, reward, done
}

package policy

import (
	"fmt"
	"math/rand"
)

// Policy maps an observation to a control vector. Policies stand in for the
// learning agent when the pool is driven from the CLI or the live monitor.
type Policy interface {
	Action(obs []float64) []float64
}

// Random emits uniform controls in [-Scale, Scale].
type Random struct {
	Dim   int
	Scale float64
	rng   *rand.Rand
}

func NewRandom(dim int, scale float64, seed int64) *Random {
	return &Random{Dim: dim, Scale: scale, rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Action(obs []float64) []float64 {
	u := make([]float64, r.Dim)
	for i := range u {
		u[i] = (r.rng.Float64()*2 - 1) * r.Scale
	}
	return u
}

// Zero emits no control, letting the dynamics run free.
type Zero struct {
	Dim int
}

func (z *Zero) Action(obs []float64) []float64 {
	return make([]float64, z.Dim)
}

// PD is a proportional-derivative regulator on one observation pair,
// driving obs[PosIndex] to Target. For cartpole use PosIndex 2 (pole angle)
// and VelIndex 3; for pendulum 0 and 1.
type PD struct {
	Kp       float64
	Kd       float64
	Target   float64
	PosIndex int
	VelIndex int
}

func NewPD(kp, kd, target float64, posIndex, velIndex int) *PD {
	return &PD{Kp: kp, Kd: kd, Target: target, PosIndex: posIndex, VelIndex: velIndex}
}

func (p *PD) Action(obs []float64) []float64 {
	if p.PosIndex >= len(obs) || p.VelIndex >= len(obs) {
		return []float64{0}
	}
	err := p.Target - obs[p.PosIndex]
	return []float64{p.Kp*err - p.Kd*obs[p.VelIndex]}
}

// New builds a named policy. Known names: random, zero, pd.
func New(name string, dim int, seed int64) (Policy, error) {
	switch name {
	case "random":
		return NewRandom(dim, 1.0, seed), nil
	case "zero":
		return &Zero{Dim: dim}, nil
	case "pd":
		// Negative gains: positive force reduces pole angle on the
		// bundled cartpole backend.
		return NewPD(-40.0, -4.0, 0.0, 2, 3), nil
	default:
		return nil, fmt.Errorf("unknown policy: %s", name)
	}
}

package engine

import (
	"fmt"
	"math"
	"math/rand"
)

// cartPole is the classic balance task: a pole hinged on a cart driven by a
// horizontal force. State is [pos, vel, theta, omega]. The episode ends when
// the cart leaves the track or the pole falls past the angle threshold.
type cartPole struct {
	cartMass   float64
	poleMass   float64
	poleLength float64
	gravity    float64
	forceMax   float64
	dt         float64

	xThreshold     float64
	thetaThreshold float64

	init  []float64
	state []float64
	rng   *rand.Rand
}

func newCartPole(cfg Config) (*cartPole, error) {
	c := &cartPole{
		cartMass:       cfg.Param("cart_mass", 1.0),
		poleMass:       cfg.Param("pole_mass", 0.1),
		poleLength:     cfg.Param("pole_length", 0.5),
		gravity:        cfg.Param("gravity", 9.81),
		forceMax:       cfg.Param("force_max", 10.0),
		xThreshold:     cfg.Param("x_threshold", 2.4),
		thetaThreshold: cfg.Param("theta_threshold", 12.0*math.Pi/180.0),
		dt:             cfg.Dt,
		rng:            rand.New(rand.NewSource(cfg.Seed)),
	}
	if c.cartMass <= 0 || c.poleMass <= 0 || c.poleLength <= 0 {
		return nil, fmt.Errorf("%w: cartpole masses and length must be positive", ErrBadConfig)
	}
	if len(cfg.Init) != 0 && len(cfg.Init) != 4 {
		return nil, fmt.Errorf("%w: cartpole init state needs 4 values, got %d", ErrBadConfig, len(cfg.Init))
	}
	if len(cfg.Init) == 4 {
		c.init = append([]float64(nil), cfg.Init...)
	}
	c.Reset()
	return c, nil
}

func (c *cartPole) Reset() []float64 {
	if c.init != nil {
		c.state = append([]float64(nil), c.init...)
	} else {
		c.state = []float64{
			c.rng.Float64()*0.1 - 0.05,
			c.rng.Float64()*0.1 - 0.05,
			c.rng.Float64()*0.1 - 0.05,
			c.rng.Float64()*0.1 - 0.05,
		}
	}
	return append([]float64(nil), c.state...)
}

func (c *cartPole) derive(x, u []float64) []float64 {
	vel := x[1]
	theta := x[2]
	omega := x[3]

	force := 0.0
	if len(u) > 0 {
		force = math.Max(-c.forceMax, math.Min(c.forceMax, u[0]))
	}

	mc := c.cartMass
	mp := c.poleMass
	l := c.poleLength

	sint := math.Sin(theta)
	cost := math.Cos(theta)

	temp := (force + mp*l*omega*omega*sint) / (mc + mp)
	alphaacc := (c.gravity*sint - cost*temp) / (l * (4.0/3.0 - mp*cost*cost/(mc+mp)))
	xacc := temp - mp*l*alphaacc*cost/(mc+mp)

	return []float64{vel, xacc, omega, alphaacc}
}

func (c *cartPole) Step(action []float64) ([]float64, float64, bool) {
	c.state = rk4(c.derive, c.state, action, c.dt)

	obs := append([]float64(nil), c.state...)
	pos := c.state[0]
	theta := c.state[2]

	done := pos < -c.xThreshold || pos > c.xThreshold ||
		theta < -c.thetaThreshold || theta > c.thetaThreshold ||
		!validState(c.state)

	// Survival reward: 1 per step while upright.
	reward := 1.0
	if done {
		reward = 0.0
	}
	return obs, reward, done
}

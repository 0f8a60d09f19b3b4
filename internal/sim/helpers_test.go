package sim

import "math/rand"

// fixedSource always returns the same value and counts how often it was asked.
type fixedSource struct {
	value float64
	draws int
}

func (s *fixedSource) Float64() float64 {
	s.draws++
	return s.value
}

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// still builds an agent with zero velocity.
func still(id int, x, y float64, status Status, intensity float64) Agent {
	a := Agent{ID: id, X: x, Y: y, Status: status}
	if status == Infected {
		a.Intensity = intensity
	}
	return a
}

func pairParams() Params {
	p := DefaultParams()
	p.InfectionRate = 1.0
	return p
}

func statusOf(agents []Agent) []Status {
	out := make([]Status, len(agents))
	for i := range agents {
		out[i] = agents[i].Status
	}
	return out
}

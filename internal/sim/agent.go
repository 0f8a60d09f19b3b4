package sim

import (
	"fmt"
	"math"
)

// Status is the infection state of an agent.
type Status uint8

const (
	Susceptible Status = iota
	Infected
	Resistant
)

func (s Status) String() string {
	switch s {
	case Susceptible:
		return "susceptible"
	case Infected:
		return "infected"
	case Resistant:
		return "resistant"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	return s <= Resistant
}

// Agent represents a moving participant in the arena.
// InfectionTime is only meaningful while Status is Infected.
type Agent struct {
	ID            int
	X, Y          float64
	VX, VY        float64
	Status        Status
	InfectionTime float64
	Intensity     float64
}

// Move advances the agent by its velocity scaled by scale, reflects the
// velocity on any axis that left the arena and clamps the position back
// inside [0, width] x [0, height].
func (a *Agent) Move(scale, width, height float64) {
	a.X += a.VX * scale
	a.Y += a.VY * scale

	if a.X < 0 || a.X > width {
		a.VX = -a.VX
	}
	if a.Y < 0 || a.Y > height {
		a.VY = -a.VY
	}

	a.X = clamp(a.X, 0, width)
	a.Y = clamp(a.Y, 0, height)
}

// infect marks a susceptible agent infected at the given simulation time.
func (a *Agent) infect(at, intensity float64) {
	a.Status = Infected
	a.InfectionTime = at
	a.Intensity = intensity
}

func (a *Agent) validate() error {
	if !a.Status.Valid() {
		return fmt.Errorf("agent %d: unknown status %d", a.ID, a.Status)
	}
	for _, v := range [...]float64{a.X, a.Y, a.VX, a.VY, a.InfectionTime} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("agent %d: non-finite kinematics", a.ID)
		}
	}
	if !(a.Intensity >= 0 && a.Intensity <= 1) {
		return fmt.Errorf("agent %d: intensity %v outside [0,1]", a.ID, a.Intensity)
	}
	if a.Status != Infected && a.Intensity != 0 {
		return fmt.Errorf("agent %d: %s agent carries intensity %v", a.ID, a.Status, a.Intensity)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

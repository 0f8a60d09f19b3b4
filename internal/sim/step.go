package sim

import (
	"fmt"
	"math"
)

// Step advances pop by one tick in place and returns the new elapsed time.
//
// Agents are processed in slice order. For each agent: move, reflect and
// clamp, then, if infected, grow its intensity and roll against every
// susceptible agent within the infection radius. Status is read live, so an
// agent infected earlier in the pass is skipped by later infectors and, if it
// comes later in the order, already spreads during this same tick.
//
// Movement is a fixed displacement per tick unless params.TimeScaled is set.
// Nothing is mutated when an error is returned.
func Step(pop *Population, dt float64, params Params, src Source) (float64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	if !(dt >= 0) || math.IsInf(dt, 0) {
		return 0, fmt.Errorf("%w: delta time %v must be finite and non-negative", ErrInvalidParams, dt)
	}
	if src == nil {
		return 0, fmt.Errorf("%w: nil random source", ErrInvalidParams)
	}
	if err := pop.Validate(); err != nil {
		return 0, err
	}

	scale := 1.0
	if params.TimeScaled {
		scale = dt * ReferenceTickRate
	}

	pop.Elapsed += dt
	now := pop.Elapsed
	agents := pop.Agents

	for i := range agents {
		a := &agents[i]
		a.Move(scale, params.Width, params.Height)

		if a.Status != Infected {
			continue
		}
		a.Intensity = math.Min(1.0, a.Intensity+params.IntensityGrowth*scale)

		for j := range agents {
			if i == j {
				continue
			}
			other := &agents[j]
			if other.Status != Susceptible {
				continue
			}
			if transmits(a, other, params, src) {
				other.infect(now, params.ContactIntensity)
			}
		}
	}

	return now, nil
}

// transmits rolls whether from infects to during this tick. Agents at or
// beyond the infection radius never consume a random draw.
func transmits(from, to *Agent, params Params, src Source) bool {
	dx := from.X - to.X
	dy := from.Y - to.Y
	distance := math.Sqrt(dx*dx + dy*dy)
	if distance >= params.InfectionRadius {
		return false
	}

	proximity := 1 - distance/params.InfectionRadius
	chance := params.InfectionRate * proximity * from.Intensity
	return src.Float64() < chance
}

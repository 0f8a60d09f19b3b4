package sim

import "fmt"

// Source supplies uniform random values in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Population is the ordered set of agents of one run together with the
// simulation time it has been advanced to.
type Population struct {
	Agents  []Agent
	Elapsed float64
}

// Initialize creates count agents with ids 0..count-1 scattered uniformly
// over the arena. The first SeedInfected agents start infected at full
// intensity; every other agent is resistant with probability resistanceRate.
//
// Per agent the source is drawn for x, y, vx, vy and then, for non-seed
// agents only, the resistance roll.
func Initialize(count int, resistanceRate, width, height float64, src Source) (*Population, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: population count %d must be at least 1", ErrInvalidParams, count)
	}
	if err := unitInterval("resistance rate", resistanceRate); err != nil {
		return nil, err
	}
	if err := arena(width, height); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidParams)
	}

	agents := make([]Agent, count)
	for i := range agents {
		a := &agents[i]
		a.ID = i
		a.X = src.Float64() * width
		a.Y = src.Float64() * height
		a.VX = (src.Float64() - 0.5) * 2
		a.VY = (src.Float64() - 0.5) * 2

		switch {
		case i < SeedInfected:
			a.infect(0, 1.0)
		case src.Float64() < resistanceRate:
			a.Status = Resistant
		default:
			a.Status = Susceptible
		}
	}

	return &Population{Agents: agents}, nil
}

// Clone returns a deep copy of p.
func (p *Population) Clone() *Population {
	agents := make([]Agent, len(p.Agents))
	copy(agents, p.Agents)
	return &Population{Agents: agents, Elapsed: p.Elapsed}
}

// Stats summarizes p at its current elapsed time.
func (p *Population) Stats() Statistics {
	return Summarize(p.Agents, p.Elapsed)
}

// Validate checks every agent record and that ids are unique.
func (p *Population) Validate() error {
	if p == nil || len(p.Agents) == 0 {
		return fmt.Errorf("%w: empty population", ErrInvalidPopulation)
	}
	seen := make(map[int]struct{}, len(p.Agents))
	for i := range p.Agents {
		a := &p.Agents[i]
		if err := a.validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPopulation, err)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate agent id %d", ErrInvalidPopulation, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}

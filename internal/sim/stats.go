package sim

import "math"

// Statistics is the per-status head count of a population at a point in
// simulation time.
type Statistics struct {
	Infected    int
	Resistant   int
	Susceptible int
	Elapsed     float64
}

// Summarize counts agents by status.
func Summarize(agents []Agent, elapsed float64) Statistics {
	stats := Statistics{Elapsed: elapsed}
	for i := range agents {
		switch agents[i].Status {
		case Infected:
			stats.Infected++
		case Resistant:
			stats.Resistant++
		default:
			stats.Susceptible++
		}
	}
	return stats
}

// Total is the population size the counts were taken over.
func (s Statistics) Total() int {
	return s.Infected + s.Resistant + s.Susceptible
}

// InfectedPercent is the share of infected agents, 0..100.
func (s Statistics) InfectedPercent() float64 {
	return s.percent(s.Infected)
}

// ResistantPercent is the share of resistant agents, 0..100.
func (s Statistics) ResistantPercent() float64 {
	return s.percent(s.Resistant)
}

// SusceptiblePercent is the share of susceptible agents, 0..100.
func (s Statistics) SusceptiblePercent() float64 {
	return s.percent(s.Susceptible)
}

// WholeSeconds is the elapsed time truncated to whole seconds.
func (s Statistics) WholeSeconds() int {
	return int(math.Floor(s.Elapsed))
}

func (s Statistics) percent(n int) float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

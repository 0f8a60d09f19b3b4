package sim

import (
	"reflect"
	"testing"
)

const tickSeconds = 1.0 / 60

func run(t *testing.T, seed int64, count, ticks int, params Params, observe func(tick int, prev, next *Population)) *Population {
	t.Helper()

	src := seeded(seed)
	pop, err := Initialize(count, params.ResistanceRate, params.Width, params.Height, src)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for tick := 0; tick < ticks; tick++ {
		prev := pop.Clone()
		if _, err := Step(pop, tickSeconds, params, src); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if observe != nil {
			observe(tick, prev, pop)
		}
	}
	return pop
}

func TestInvariantsHoldAcrossSeeds(t *testing.T) {
	params := DefaultParams()
	params.InfectionRate = 0.4

	for seed := int64(1); seed <= 5; seed++ {
		initial := map[int]Status{}
		run(t, seed, 200, 300, params, func(tick int, prev, next *Population) {
			if tick == 0 {
				for _, a := range prev.Agents {
					initial[a.ID] = a.Status
				}
			}

			if got := next.Stats().Total(); got != len(next.Agents) {
				t.Fatalf("seed %d tick %d: counts sum to %d, want %d", seed, tick, got, len(next.Agents))
			}

			for i := range next.Agents {
				before, after := prev.Agents[i], next.Agents[i]

				if after.X < 0 || after.X > params.Width || after.Y < 0 || after.Y > params.Height {
					t.Fatalf("seed %d tick %d: agent %d escaped to (%v, %v)", seed, tick, after.ID, after.X, after.Y)
				}
				if after.Intensity < 0 || after.Intensity > 1 {
					t.Fatalf("seed %d tick %d: agent %d intensity %v", seed, tick, after.ID, after.Intensity)
				}

				switch before.Status {
				case Infected:
					if after.Status != Infected {
						t.Fatalf("seed %d tick %d: agent %d left infected state", seed, tick, after.ID)
					}
					if after.Intensity < before.Intensity {
						t.Fatalf("seed %d tick %d: agent %d intensity fell %v -> %v", seed, tick, after.ID, before.Intensity, after.Intensity)
					}
				case Resistant:
					if after.Status != Resistant {
						t.Fatalf("seed %d tick %d: resistant agent %d became %s", seed, tick, after.ID, after.Status)
					}
				case Susceptible:
					if after.Status == Resistant {
						t.Fatalf("seed %d tick %d: susceptible agent %d became resistant", seed, tick, after.ID)
					}
					if after.Status == Susceptible && after.Intensity != 0 {
						t.Fatalf("seed %d tick %d: susceptible agent %d has intensity", seed, tick, after.ID)
					}
				}

				if initial[after.ID] == Resistant && after.Status == Infected {
					t.Fatalf("seed %d tick %d: originally resistant agent %d infected", seed, tick, after.ID)
				}
			}
		})
	}
}

func TestDeterministicForSeed(t *testing.T) {
	params := DefaultParams()
	first := run(t, 99, 150, 250, params, nil)
	second := run(t, 99, 150, 250, params, nil)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("two runs with the same seed diverged")
	}

	other := run(t, 100, 150, 250, params, nil)
	if reflect.DeepEqual(first, other) {
		t.Fatal("runs with different seeds produced identical populations")
	}
}

func TestZeroInfectionRateNeverSpreads(t *testing.T) {
	params := DefaultParams()
	params.InfectionRate = 0

	run(t, 11, 300, 400, params, func(tick int, _, next *Population) {
		if got := next.Stats().Infected; got != SeedInfected {
			t.Fatalf("tick %d: infected count %d, want %d", tick, got, SeedInfected)
		}
	})
}

func TestFullResistanceNeverSpreads(t *testing.T) {
	params := DefaultParams()
	params.InfectionRate = 1
	params.ResistanceRate = 1

	run(t, 12, 100, 300, params, func(tick int, _, next *Population) {
		stats := next.Stats()
		if stats.Infected != 3 || stats.Resistant != 97 || stats.Susceptible != 0 {
			t.Fatalf("tick %d: unexpected stats %+v", tick, stats)
		}
	})
}

func TestReferenceScenarioFiveHundredTicks(t *testing.T) {
	params := DefaultParams()
	params.InfectionRate = 0.15
	params.ResistanceRate = 0

	last := SeedInfected
	pop := run(t, 42, 100, 500, params, func(tick int, _, next *Population) {
		infected := next.Stats().Infected
		if infected < last {
			t.Fatalf("tick %d: infected count fell from %d to %d", tick, last, infected)
		}
		last = infected
	})

	stats := pop.Stats()
	if stats.Infected < 3 || stats.Infected > 100 {
		t.Fatalf("final infected count %d outside [3, 100]", stats.Infected)
	}
	if stats.Resistant != 0 {
		t.Fatalf("expected no resistant agents, got %d", stats.Resistant)
	}
	if want := 500 * tickSeconds; stats.Elapsed < want-1e-9 || stats.Elapsed > want+1e-9 {
		t.Fatalf("elapsed = %v, want %v", stats.Elapsed, want)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"earworm/internal/config"
	"earworm/internal/logging"
	"earworm/internal/sim"
)

// runOptions controls a headless run.
type runOptions struct {
	Ticks int
	DT    float64
	Every int
	JSON  bool
}

// statsLine is the JSON shape of one sampled tick.
type statsLine struct {
	Tick            int     `json:"tick"`
	Elapsed         float64 `json:"elapsed_seconds"`
	Infected        int     `json:"infected"`
	Resistant       int     `json:"resistant"`
	Susceptible     int     `json:"susceptible"`
	InfectedPercent float64 `json:"infected_percent"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a headless simulation and print statistics",
		Long: `Run initializes a population and advances it a fixed number of ticks,
printing per-status counts every --every ticks and once at the end.

Use --seed for a reproducible run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Simulation.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if cmd.Flags().Changed("population") {
				cfg.Simulation.Population, _ = cmd.Flags().GetInt("population")
			}
			if cmd.Flags().Changed("infection-rate") {
				cfg.Simulation.InfectionRate, _ = cmd.Flags().GetFloat64("infection-rate")
			}
			if cmd.Flags().Changed("resistance-rate") {
				cfg.Simulation.ResistanceRate, _ = cmd.Flags().GetFloat64("resistance-rate")
			}
			if cmd.Flags().Changed("time-scaled") {
				cfg.Arena.TimeScaled, _ = cmd.Flags().GetBool("time-scaled")
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			var opts runOptions
			opts.Ticks, _ = cmd.Flags().GetInt("ticks")
			opts.DT, _ = cmd.Flags().GetFloat64("dt")
			opts.Every, _ = cmd.Flags().GetInt("every")
			opts.JSON, _ = cmd.Flags().GetBool("json")

			logger := newLogger(cfg, cmd.ErrOrStderr())
			return runSimulation(cmd.OutOrStdout(), logger, cfg, opts)
		},
	}

	cmd.Flags().Int("ticks", 500, "Number of ticks to simulate")
	cmd.Flags().Float64("dt", 1.0/sim.ReferenceTickRate, "Seconds of simulation time per tick")
	cmd.Flags().Int("every", 60, "Print statistics every N ticks (0 prints only the final tick)")
	cmd.Flags().Bool("json", false, "Output one JSON object per line")
	cmd.Flags().Int64("seed", 0, "Random seed (0 seeds from the clock)")
	cmd.Flags().Int("population", 500, "Number of agents")
	cmd.Flags().Float64("infection-rate", sim.DefaultInfectionRate, "Transmission scaling in [0,1]")
	cmd.Flags().Float64("resistance-rate", sim.DefaultResistanceRate, "Fraction of agents resistant at start")
	cmd.Flags().Bool("time-scaled", false, "Scale movement and growth by elapsed time")
	return cmd
}

func runSimulation(w io.Writer, logger *slog.Logger, cfg *config.Config, opts runOptions) error {
	if opts.Ticks < 0 {
		return fmt.Errorf("ticks must be non-negative, got %d", opts.Ticks)
	}
	if opts.Every < 0 {
		return fmt.Errorf("every must be non-negative, got %d", opts.Every)
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	src := rand.New(rand.NewSource(seed))
	params := cfg.Params()

	pop, err := sim.Initialize(cfg.Simulation.Population, params.ResistanceRate, params.Width, params.Height, src)
	if err != nil {
		return err
	}
	logger.Info("run started", "seed", seed, "population", len(pop.Agents), "ticks", opts.Ticks)

	if err := printStats(w, 0, pop.Stats(), opts.JSON); err != nil {
		return err
	}

	for tick := 1; tick <= opts.Ticks; tick++ {
		elapsed, err := sim.Step(pop, opts.DT, params, src)
		if err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
		stats := sim.Summarize(pop.Agents, elapsed)
		logger.Log(context.Background(), logging.LevelTrace, "tick", "tick", tick, "infected", stats.Infected)

		if tick == opts.Ticks || (opts.Every > 0 && tick%opts.Every == 0) {
			if err := printStats(w, tick, stats, opts.JSON); err != nil {
				return err
			}
		}
	}

	final := pop.Stats()
	logger.Info("run finished",
		"infected", final.Infected,
		"resistant", final.Resistant,
		"susceptible", final.Susceptible,
		"elapsed", final.Elapsed,
	)
	return nil
}

func printStats(w io.Writer, tick int, stats sim.Statistics, jsonOut bool) error {
	if jsonOut {
		return json.NewEncoder(w).Encode(statsLine{
			Tick:            tick,
			Elapsed:         stats.Elapsed,
			Infected:        stats.Infected,
			Resistant:       stats.Resistant,
			Susceptible:     stats.Susceptible,
			InfectedPercent: stats.InfectedPercent(),
		})
	}
	_, err := fmt.Fprintf(w, "tick=%-6d elapsed=%-4ds infected=%-5d (%5.1f%%) resistant=%-5d susceptible=%d\n",
		tick, stats.WholeSeconds(), stats.Infected, stats.InfectedPercent(), stats.Resistant, stats.Susceptible)
	return err
}

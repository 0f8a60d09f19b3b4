// Package session wraps the engine with the state a control surface needs:
// current parameters, a running flag, the live population and the random
// source. It also provides Run, a ticker-driven loop that feeds the engine
// measured elapsed time.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"earworm/internal/sim"
)

// ErrRunning is returned when parameters are edited while the run is active.
var ErrRunning = errors.New("session is running")

// Settings are the user-editable knobs of a run.
type Settings struct {
	Population int
	Params     sim.Params
}

// DefaultSettings returns the reference settings with a population of 500.
func DefaultSettings() Settings {
	return Settings{Population: 500, Params: sim.DefaultParams()}
}

// Validate checks the settings without touching any session.
func (s Settings) Validate() error {
	if s.Population < 1 {
		return fmt.Errorf("%w: population %d must be at least 1", sim.ErrInvalidParams, s.Population)
	}
	return s.Params.Validate()
}

// Snapshot is a copy of the session state handed to renderers.
type Snapshot struct {
	Tick    uint64
	Running bool
	Stats   sim.Statistics
	Agents  []sim.Agent
}

// Session is safe for concurrent use; the engine itself only ever runs under
// the session lock.
type Session struct {
	mu       sync.RWMutex
	settings Settings
	pop      *sim.Population
	rng      sim.Source
	running  bool
	tick     uint64
}

// New creates a paused session with a freshly initialized population. A nil
// src falls back to a time-seeded generator.
func New(settings Settings, src sim.Source) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &Session{settings: settings, rng: src}
	if err := s.reinitialize(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSeeded creates a session whose random source is seeded with seed.
func NewSeeded(settings Settings, seed int64) (*Session, error) {
	return New(settings, rand.New(rand.NewSource(seed)))
}

func (s *Session) reinitialize() error {
	pop, err := sim.Initialize(
		s.settings.Population,
		s.settings.Params.ResistanceRate,
		s.settings.Params.Width,
		s.settings.Params.Height,
		s.rng,
	)
	if err != nil {
		return err
	}
	s.pop = pop
	s.tick = 0
	return nil
}

// Start resumes ticking.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

// Pause stops ticking; the population is kept.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Running reports whether ticks currently advance the population.
func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Settings returns the current settings.
func (s *Session) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Reset pauses the run and rebuilds the population from the current settings.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return s.reinitialize()
}

// Update replaces the settings. Edits are refused while running. A change of
// population size or resistance rate rebuilds the population; any other edit
// applies to the existing population from the next tick on.
func (s *Session) Update(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}

	prev := s.settings
	s.settings = next
	if prev.Population != next.Population ||
		prev.Params.ResistanceRate != next.Params.ResistanceRate ||
		prev.Params.Width != next.Params.Width ||
		prev.Params.Height != next.Params.Height {
		if err := s.reinitialize(); err != nil {
			s.settings = prev
			return err
		}
	}
	return nil
}

// Tick advances the population by one step of dt seconds when running and
// returns the resulting snapshot. A paused session returns its current
// snapshot unchanged.
func (s *Session) Tick(dt float64) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		if _, err := sim.Step(s.pop, dt, s.settings.Params, s.rng); err != nil {
			return Snapshot{}, err
		}
		s.tick++
	}
	return s.snapshotLocked(), nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	pop := s.pop.Clone()
	return Snapshot{
		Tick:    s.tick,
		Running: s.running,
		Stats:   pop.Stats(),
		Agents:  pop.Agents,
	}
}

// Run ticks the session every interval until ctx is done, passing the real
// time since the previous tick as dt. report, when non-nil, receives every
// snapshot produced while running. Step errors end the loop.
func (s *Session) Run(ctx context.Context, interval time.Duration, report func(Snapshot)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if !s.Running() {
				continue
			}

			snap, err := s.Tick(dt)
			if err != nil {
				return fmt.Errorf("advancing session: %w", err)
			}
			if report != nil {
				report(snap)
			}
		}
	}
}

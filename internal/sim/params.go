package sim

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultArenaWidth       = 800.0
	DefaultArenaHeight      = 600.0
	DefaultInfectionRadius  = 40.0
	DefaultIntensityGrowth  = 0.01
	DefaultContactIntensity = 0.3
	DefaultInfectionRate    = 0.15
	DefaultResistanceRate   = 0.25

	// SeedInfected is the number of agents, lowest ids first, that start infected.
	SeedInfected = 3

	// ReferenceTickRate is the tick cadence the per-tick constants were tuned
	// for. Time-scaled runs multiply displacement and growth by dt*ReferenceTickRate.
	ReferenceTickRate = 60.0
)

var (
	ErrInvalidParams     = errors.New("invalid simulation parameters")
	ErrInvalidPopulation = errors.New("invalid population")
)

// Params are the tunables consumed by a single Step. They are read-only for
// the duration of the call.
type Params struct {
	InfectionRate    float64
	ResistanceRate   float64
	Width            float64
	Height           float64
	InfectionRadius  float64
	IntensityGrowth  float64
	ContactIntensity float64

	// TimeScaled switches movement and intensity growth from a fixed amount
	// per tick to an amount proportional to the elapsed time of the tick.
	TimeScaled bool
}

// DefaultParams returns the reference parameter set.
func DefaultParams() Params {
	return Params{
		InfectionRate:    DefaultInfectionRate,
		ResistanceRate:   DefaultResistanceRate,
		Width:            DefaultArenaWidth,
		Height:           DefaultArenaHeight,
		InfectionRadius:  DefaultInfectionRadius,
		IntensityGrowth:  DefaultIntensityGrowth,
		ContactIntensity: DefaultContactIntensity,
	}
}

// Validate rejects parameter sets that the engine cannot run with.
func (p Params) Validate() error {
	if err := unitInterval("infection rate", p.InfectionRate); err != nil {
		return err
	}
	if err := unitInterval("resistance rate", p.ResistanceRate); err != nil {
		return err
	}
	if err := unitInterval("contact intensity", p.ContactIntensity); err != nil {
		return err
	}
	if err := unitInterval("intensity growth", p.IntensityGrowth); err != nil {
		return err
	}
	if err := arena(p.Width, p.Height); err != nil {
		return err
	}
	if !(p.InfectionRadius >= 0) || math.IsInf(p.InfectionRadius, 0) {
		return fmt.Errorf("%w: infection radius %v must be finite and non-negative", ErrInvalidParams, p.InfectionRadius)
	}
	return nil
}

func unitInterval(name string, v float64) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalidParams, name, v)
	}
	return nil
}

func arena(width, height float64) error {
	if !(width > 0) || !(height > 0) || math.IsInf(width, 0) || math.IsInf(height, 0) {
		return fmt.Errorf("%w: arena %vx%v must be positive and finite", ErrInvalidParams, width, height)
	}
	return nil
}

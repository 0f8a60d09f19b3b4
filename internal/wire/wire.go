// Package wire encodes the messages exchanged with renderers and control
// surfaces. The layout follows proto/earworm.proto and is produced with
// protowire directly, so no generated code is needed.
package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"earworm/internal/session"
	"earworm/internal/sim"
)

// ErrMalformed wraps every decoding failure.
var ErrMalformed = errors.New("malformed message")

// Command is the action requested by a Control message.
type Command int32

const (
	CommandNone Command = iota
	CommandStart
	CommandPause
	CommandReset
	CommandUpdate
)

func (c Command) String() string {
	switch c {
	case CommandNone:
		return "none"
	case CommandStart:
		return "start"
	case CommandPause:
		return "pause"
	case CommandReset:
		return "reset"
	case CommandUpdate:
		return "update"
	default:
		return fmt.Sprintf("command(%d)", int32(c))
	}
}

// Control is a command from the control surface. Nil fields are unset.
type Control struct {
	Command        Command
	InfectionRate  *float64
	ResistanceRate *float64
	Population     *uint32
}

// Apply returns base with every set field of c copied over it.
func (c Control) Apply(base session.Settings) session.Settings {
	if c.InfectionRate != nil {
		base.Params.InfectionRate = *c.InfectionRate
	}
	if c.ResistanceRate != nil {
		base.Params.ResistanceRate = *c.ResistanceRate
	}
	if c.Population != nil {
		base.Population = int(*c.Population)
	}
	return base
}

// AgentState is the per-agent slice of a frame a renderer needs.
type AgentState struct {
	ID        uint32
	X, Y      float64
	Status    sim.Status
	Intensity float64
}

// Frame is one rendered tick.
type Frame struct {
	Tick        uint64
	Running     bool
	Infected    uint32
	Resistant   uint32
	Susceptible uint32
	Elapsed     float64
	Agents      []AgentState
}

// FrameFromSnapshot converts a session snapshot into a frame.
func FrameFromSnapshot(snap session.Snapshot) Frame {
	f := Frame{
		Tick:        snap.Tick,
		Running:     snap.Running,
		Infected:    uint32(snap.Stats.Infected),
		Resistant:   uint32(snap.Stats.Resistant),
		Susceptible: uint32(snap.Stats.Susceptible),
		Elapsed:     snap.Stats.Elapsed,
		Agents:      make([]AgentState, len(snap.Agents)),
	}
	for i, a := range snap.Agents {
		f.Agents[i] = AgentState{
			ID:        uint32(a.ID),
			X:         a.X,
			Y:         a.Y,
			Status:    a.Status,
			Intensity: a.Intensity,
		}
	}
	return f
}

const (
	frameTick    protowire.Number = 1
	frameRunning protowire.Number = 2
	frameStats   protowire.Number = 3
	frameAgents  protowire.Number = 4

	statsInfected    protowire.Number = 1
	statsResistant   protowire.Number = 2
	statsSusceptible protowire.Number = 3
	statsElapsed     protowire.Number = 4

	agentID        protowire.Number = 1
	agentX         protowire.Number = 2
	agentY         protowire.Number = 3
	agentStatus    protowire.Number = 4
	agentIntensity protowire.Number = 5

	controlCommand        protowire.Number = 1
	controlInfectionRate  protowire.Number = 2
	controlResistanceRate protowire.Number = 3
	controlPopulation     protowire.Number = 4
)

// EncodeFrame serializes f. Zero scalars are omitted as in proto3.
func EncodeFrame(f Frame) []byte {
	b := make([]byte, 0, 64+len(f.Agents)*40)
	b = appendVarint(b, frameTick, f.Tick)
	b = appendVarint(b, frameRunning, protowire.EncodeBool(f.Running))

	var stats []byte
	stats = appendVarint(stats, statsInfected, uint64(f.Infected))
	stats = appendVarint(stats, statsResistant, uint64(f.Resistant))
	stats = appendVarint(stats, statsSusceptible, uint64(f.Susceptible))
	stats = appendDouble(stats, statsElapsed, f.Elapsed)
	b = protowire.AppendTag(b, frameStats, protowire.BytesType)
	b = protowire.AppendBytes(b, stats)

	var agent []byte
	for _, a := range f.Agents {
		agent = agent[:0]
		agent = appendVarint(agent, agentID, uint64(a.ID))
		agent = appendDouble(agent, agentX, a.X)
		agent = appendDouble(agent, agentY, a.Y)
		agent = appendVarint(agent, agentStatus, uint64(a.Status))
		agent = appendDouble(agent, agentIntensity, a.Intensity)
		b = protowire.AppendTag(b, frameAgents, protowire.BytesType)
		b = protowire.AppendBytes(b, agent)
	}
	return b
}

// DecodeFrame parses a frame produced by EncodeFrame. Unknown fields are skipped.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	err := walk(b, func(num protowire.Number, typ protowire.Type, v field) error {
		switch {
		case num == frameTick && typ == protowire.VarintType:
			f.Tick = v.varint
		case num == frameRunning && typ == protowire.VarintType:
			f.Running = protowire.DecodeBool(v.varint)
		case num == frameStats && typ == protowire.BytesType:
			return walk(v.bytes, func(num protowire.Number, typ protowire.Type, v field) error {
				switch {
				case num == statsInfected && typ == protowire.VarintType:
					f.Infected = uint32(v.varint)
				case num == statsResistant && typ == protowire.VarintType:
					f.Resistant = uint32(v.varint)
				case num == statsSusceptible && typ == protowire.VarintType:
					f.Susceptible = uint32(v.varint)
				case num == statsElapsed && typ == protowire.Fixed64Type:
					f.Elapsed = math.Float64frombits(v.varint)
				}
				return nil
			})
		case num == frameAgents && typ == protowire.BytesType:
			a, err := decodeAgent(v.bytes)
			if err != nil {
				return err
			}
			f.Agents = append(f.Agents, a)
		}
		return nil
	})
	return f, err
}

func decodeAgent(b []byte) (AgentState, error) {
	var a AgentState
	err := walk(b, func(num protowire.Number, typ protowire.Type, v field) error {
		switch {
		case num == agentID && typ == protowire.VarintType:
			a.ID = uint32(v.varint)
		case num == agentX && typ == protowire.Fixed64Type:
			a.X = math.Float64frombits(v.varint)
		case num == agentY && typ == protowire.Fixed64Type:
			a.Y = math.Float64frombits(v.varint)
		case num == agentStatus && typ == protowire.VarintType:
			status := sim.Status(v.varint)
			if v.varint > uint64(sim.Resistant) {
				return fmt.Errorf("%w: agent status %d", ErrMalformed, v.varint)
			}
			a.Status = status
		case num == agentIntensity && typ == protowire.Fixed64Type:
			a.Intensity = math.Float64frombits(v.varint)
		}
		return nil
	})
	return a, err
}

// EncodeControl serializes c. Set optional fields are always written.
func EncodeControl(c Control) []byte {
	var b []byte
	b = appendVarint(b, controlCommand, uint64(c.Command))
	if c.InfectionRate != nil {
		b = protowire.AppendTag(b, controlInfectionRate, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(*c.InfectionRate))
	}
	if c.ResistanceRate != nil {
		b = protowire.AppendTag(b, controlResistanceRate, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(*c.ResistanceRate))
	}
	if c.Population != nil {
		b = protowire.AppendTag(b, controlPopulation, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*c.Population))
	}
	return b
}

// DecodeControl parses a control message.
func DecodeControl(b []byte) (Control, error) {
	var c Control
	err := walk(b, func(num protowire.Number, typ protowire.Type, v field) error {
		switch {
		case num == controlCommand && typ == protowire.VarintType:
			c.Command = Command(int32(v.varint))
		case num == controlInfectionRate && typ == protowire.Fixed64Type:
			rate := math.Float64frombits(v.varint)
			c.InfectionRate = &rate
		case num == controlResistanceRate && typ == protowire.Fixed64Type:
			rate := math.Float64frombits(v.varint)
			c.ResistanceRate = &rate
		case num == controlPopulation && typ == protowire.VarintType:
			if v.varint > math.MaxUint32 {
				return fmt.Errorf("%w: population %d overflows uint32", ErrMalformed, v.varint)
			}
			n := uint32(v.varint)
			c.Population = &n
		}
		return nil
	})
	if err != nil {
		return Control{}, err
	}
	if c.Command < CommandNone || c.Command > CommandUpdate {
		return Control{}, fmt.Errorf("%w: unknown command %d", ErrMalformed, c.Command)
	}
	return c, nil
}

// field holds a decoded value: varint and fixed64 payloads share varint.
type field struct {
	varint uint64
	bytes  []byte
}

// walk iterates the top-level fields of b, handing varint, fixed64 and
// length-delimited values to fn and skipping anything else.
func walk(b []byte, fn func(protowire.Number, protowire.Type, field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		var v field
		switch typ {
		case protowire.VarintType:
			v.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			v.varint, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			v.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(num, typ, v); err != nil {
			return err
		}
	}
	return nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 && !math.Signbit(v) {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

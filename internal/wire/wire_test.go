package wire

import (
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"earworm/internal/session"
	"earworm/internal/sim"
)

func TestFrameFromSnapshotRoundTrip(t *testing.T) {
	s, err := session.NewSeeded(session.Settings{Population: 25, Params: sim.DefaultParams()}, 42)
	if err != nil {
		t.Fatalf("NewSeeded: %v", err)
	}
	s.Start()
	snap, err := s.Tick(0.25)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	frame := FrameFromSnapshot(snap)
	if frame.Tick != 1 || !frame.Running || frame.Elapsed != 0.25 {
		t.Fatalf("unexpected frame header %+v", frame)
	}
	if int(frame.Infected+frame.Resistant+frame.Susceptible) != 25 {
		t.Fatalf("frame counts do not sum to the population")
	}

	decoded, err := DecodeFrame(EncodeFrame(frame))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !reflect.DeepEqual(decoded, frame) {
		t.Fatalf("decoded frame differs:\n got %+v\nwant %+v", decoded, frame)
	}
}

func TestDecodeFrameSkipsUnknownFields(t *testing.T) {
	b := EncodeFrame(Frame{Tick: 7, Infected: 3})
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))
	b = protowire.AppendTag(b, 98, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 1)

	f, err := DecodeFrame(b)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if f.Tick != 7 || f.Infected != 3 {
		t.Fatalf("unexpected frame %+v", f)
	}
}

func TestControlOptionalFields(t *testing.T) {
	rate := 0.2
	pop := uint32(300)
	in := Control{Command: CommandUpdate, InfectionRate: &rate, Population: &pop}

	out, err := DecodeControl(EncodeControl(in))
	if err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	if out.Command != CommandUpdate {
		t.Fatalf("expected update command, got %s", out.Command)
	}
	if out.InfectionRate == nil || *out.InfectionRate != 0.2 {
		t.Fatalf("expected infection rate 0.2, got %v", out.InfectionRate)
	}
	if out.ResistanceRate != nil {
		t.Fatalf("expected resistance rate unset, got %v", *out.ResistanceRate)
	}
	if out.Population == nil || *out.Population != 300 {
		t.Fatalf("expected population 300, got %v", out.Population)
	}

	zero := 0.0
	explicit, err := DecodeControl(EncodeControl(Control{Command: CommandUpdate, ResistanceRate: &zero}))
	if err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	if explicit.ResistanceRate == nil || *explicit.ResistanceRate != 0 {
		t.Fatal("expected an explicit zero resistance rate to survive encoding")
	}
}

func TestControlApply(t *testing.T) {
	rate := 0.5
	pop := uint32(120)
	base := session.DefaultSettings()

	got := Control{Command: CommandUpdate, ResistanceRate: &rate, Population: &pop}.Apply(base)
	if got.Params.ResistanceRate != 0.5 || got.Population != 120 {
		t.Fatalf("unexpected settings %+v", got)
	}
	if got.Params.InfectionRate != base.Params.InfectionRate {
		t.Fatal("unset infection rate was overwritten")
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated tag", []byte{0x80}},
		{"truncated fixed64", append(protowire.AppendTag(nil, controlInfectionRate, protowire.Fixed64Type), 1, 2)},
		{"unknown command", protowire.AppendVarint(protowire.AppendTag(nil, controlCommand, protowire.VarintType), 42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeControl(tt.data); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}

	bad := protowire.AppendTag(nil, agentStatus, protowire.VarintType)
	bad = protowire.AppendVarint(bad, 9)
	frame := protowire.AppendTag(nil, frameAgents, protowire.BytesType)
	frame = protowire.AppendBytes(frame, bad)
	if _, err := DecodeFrame(frame); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for a bad agent status, got %v", err)
	}
}

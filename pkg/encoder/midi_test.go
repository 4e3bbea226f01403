package encoder

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/james-see/neonhorizon/pkg/generator"
)

func scenarioPiece(t *testing.T) *generator.Piece {
	t.Helper()
	piece, err := generator.Default().Generate(generator.ParameterSet{
		KeyName: "A_Minor", Root: 57, Tempo: 85,
		Bass:   generator.BassFormula{Period: 4, Duty: 2},
		Melody: generator.MelodyFormula{Amplitude: 5, Frequency: 0.1},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return piece
}

func TestMIDIWriterLayout(t *testing.T) {
	piece := scenarioPiece(t)
	w := NewMIDIWriter(generator.DefaultTheory(), nil)

	data, report, err := w.Write(piece)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if DetectFormatFromContent(data) != FormatMIDI {
		t.Fatal("Write() output lacks the MThd signature")
	}

	dec, err := ReadMIDI(data)
	if err != nil {
		t.Fatalf("ReadMIDI() error = %v", err)
	}

	if dec.Resolution != TicksPerQuarter {
		t.Errorf("Resolution = %d, want %d", dec.Resolution, TicksPerQuarter)
	}
	if dec.MicrosecondsPerQuarter != 705882 {
		t.Errorf("MicrosecondsPerQuarter = %d, want 705882", dec.MicrosecondsPerQuarter)
	}
	if len(dec.Tracks) != 4 {
		t.Fatalf("tracks = %d, want 4", len(dec.Tracks))
	}

	tests := []struct {
		name    string
		channel int
		program int
		notes   int
	}{
		{"drums", 9, -1, 32},
		{"bass", 0, 38, 64},
		{"pads", 1, 89, 16},
		{"lead", 2, 81, 64},
	}
	for i, tt := range tests {
		tr := dec.Tracks[i]
		if tr.Name != tt.name {
			t.Errorf("track %d name = %q, want %q", i, tr.Name, tt.name)
		}
		if tr.Channel != tt.channel {
			t.Errorf("%s channel = %d, want %d", tt.name, tr.Channel, tt.channel)
		}
		if tr.Program != tt.program {
			t.Errorf("%s program = %d, want %d", tt.name, tr.Program, tt.program)
		}
		if len(tr.Notes) != tt.notes {
			t.Errorf("%s notes = %d, want %d", tt.name, len(tr.Notes), tt.notes)
		}
	}

	// Drums and lead never overlap, so they survive the file unchanged.
	if !reflect.DeepEqual(dec.Tracks[0].Notes, piece.Drums) {
		t.Error("drum track does not match the generated drums")
	}
	if !reflect.DeepEqual(dec.Tracks[3].Notes, piece.Lead) {
		t.Error("lead track does not match the generated lead")
	}

	// Bass notes overlap on every second step and pad notes share onsets.
	want := [4]int{0, 32, 12, 0}
	if report.Clamps != want {
		t.Errorf("report clamps = %v, want %v", report.Clamps, want)
	}
	if report.Total() != 44 {
		t.Errorf("report total = %d, want 44", report.Total())
	}
	bass := dec.Tracks[1].Notes
	if bass[1].Onset != 200 || bass[2].Onset != 560 {
		t.Errorf("clamped bass onsets = %d, %d, want 200, 560", bass[1].Onset, bass[2].Onset)
	}
}

func TestMIDIWriterDeterministic(t *testing.T) {
	piece := scenarioPiece(t)
	w := NewMIDIWriter(generator.DefaultTheory(), nil)

	a, _, err := w.Write(piece)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	b, _, err := w.Write(scenarioPiece(t))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Write() is not byte-identical across runs")
	}
}

func TestMIDIWriterErrors(t *testing.T) {
	w := NewMIDIWriter(generator.DefaultTheory(), nil)

	if _, _, err := w.Write(nil); err == nil {
		t.Error("Write(nil) should fail")
	}

	for _, bpm := range []int{0, 3, 120000001} {
		piece := scenarioPiece(t)
		piece.Params.Tempo = bpm
		if _, _, err := w.Write(piece); !errors.Is(err, generator.ErrInvalidParams) {
			t.Errorf("Write() with tempo %d error = %v, want ErrInvalidParams", bpm, err)
		}
	}

	piece := scenarioPiece(t)
	piece.Lead[len(piece.Lead)-1].Onset = generator.MaxTicks
	if _, _, err := w.Write(piece); !errors.Is(err, generator.ErrInvalidParams) {
		t.Errorf("Write() with onset past MaxTicks error = %v, want ErrInvalidParams", err)
	}

	piece = scenarioPiece(t)
	piece.Drums[0].Duration = -1
	if _, _, err := w.Write(piece); !errors.Is(err, generator.ErrInvalidParams) {
		t.Errorf("Write() with negative duration error = %v, want ErrInvalidParams", err)
	}
}

func TestMIDIWriterTempoBounds(t *testing.T) {
	w := NewMIDIWriter(generator.DefaultTheory(), nil)
	for _, bpm := range []int{4, 60000000} {
		piece := scenarioPiece(t)
		piece.Params.Tempo = bpm
		data, _, err := w.Write(piece)
		if err != nil {
			t.Fatalf("Write() with tempo %d error = %v", bpm, err)
		}
		dec, err := ReadMIDI(data)
		if err != nil {
			t.Fatalf("ReadMIDI() error = %v", err)
		}
		if dec.MicrosecondsPerQuarter != MicrosecondsPerQuarter(bpm) {
			t.Errorf("tempo %d reads back as %d us, want %d", bpm, dec.MicrosecondsPerQuarter, MicrosecondsPerQuarter(bpm))
		}
	}
}

func TestWriteFileAndReadBack(t *testing.T) {
	piece := scenarioPiece(t)
	w := NewMIDIWriter(generator.DefaultTheory(), nil)
	path := filepath.Join(t.TempDir(), "piece.mid")

	if _, err := w.WriteFile(piece, path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	dec, err := ReadMIDIFile(path)
	if err != nil {
		t.Fatalf("ReadMIDIFile() error = %v", err)
	}
	if dec.Tempo < 84.99 || dec.Tempo > 85.01 {
		t.Errorf("Tempo = %f, want ~85", dec.Tempo)
	}

	if _, err := ReadMIDIFile(filepath.Join(t.TempDir(), "missing.mid")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadMIDIFile(missing) error = %v, want ErrNotExist", err)
	}
}

func TestReadMIDIRejectsOtherData(t *testing.T) {
	if _, err := ReadMIDI([]byte("PK\x03\x04rest")); !errors.Is(err, ErrNotMIDI) {
		t.Errorf("ReadMIDI(zip) error = %v, want ErrNotMIDI", err)
	}
}

func TestMicrosecondsPerQuarter(t *testing.T) {
	tests := []struct {
		bpm  int
		want uint32
	}{
		{120, 500000},
		{85, 705882},
		{115, 521739},
		{60, 1000000},
	}
	for _, tt := range tests {
		if got := MicrosecondsPerQuarter(tt.bpm); got != tt.want {
			t.Errorf("MicrosecondsPerQuarter(%d) = %d, want %d", tt.bpm, got, tt.want)
		}
	}
}

func TestVarLen(t *testing.T) {
	tests := []struct {
		n    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x81, 0x00}},
		{0x3FFF, []byte{0xFF, 0x7F}},
	}
	for _, tt := range tests {
		if got := varLen(tt.n); !bytes.Equal(got, tt.want) {
			t.Errorf("varLen(%d) = % X, want % X", tt.n, got, tt.want)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		expected Format
	}{
		{"Synth_A_Minor_85_Bass(4, 2)_Mel(5, 0.1).mid", FormatMIDI},
		{"test.MIDI", FormatMIDI},
		{"Panek_Synth_Manifest.csv", FormatManifest},
		{"collection.zip", FormatArchive},
		{"test.txt", FormatUnknown},
		{"test", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := DetectFormat(tt.filename); got != tt.expected {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, got, tt.expected)
			}
		})
	}
}

func TestDetectFormatFromContent(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Format
	}{
		{"MIDI file", []byte("MThd\x00\x00\x00\x06"), FormatMIDI},
		{"ZIP archive", []byte("PK\x03\x04\x14\x00"), FormatArchive},
		{"Short data", []byte{0x00, 0x01}, FormatUnknown},
		{"Other", []byte{0x3C, 0x01, 0x3E, 0x02}, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormatFromContent(tt.data); got != tt.expected {
				t.Errorf("DetectFormatFromContent() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// Package generator produces the four note streams of a piece from a
// parameter set using the bass and melody equations.
package generator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidParams is returned when a ParameterSet or Grid cannot drive generation.
var ErrInvalidParams = errors.New("invalid parameters")

// maxTempoMeta is the largest microseconds-per-quarter value a tempo meta event holds
const maxTempoMeta = 0xFFFFFF

// ValidateTempo checks that bpm is positive and that round(60e6/bpm) fits
// the 24-bit tempo meta event without rounding to zero.
func ValidateTempo(bpm int) error {
	if bpm <= 0 {
		return fmt.Errorf("%w: tempo must be positive, got %d", ErrInvalidParams, bpm)
	}
	us := math.Round(60000000.0 / float64(bpm))
	if us < 1 || us > maxTempoMeta {
		return fmt.Errorf("%w: tempo %d BPM cannot be stored in a MIDI tempo event", ErrInvalidParams, bpm)
	}
	return nil
}

// BassFormula is the rectangular pulse i % Period < Duty
type BassFormula struct {
	Period int `json:"period" yaml:"period"`
	Duty   int `json:"duty" yaml:"duty"`
}

// String renders the formula as a tuple, e.g. "(4, 2)"
func (b BassFormula) String() string {
	return fmt.Sprintf("(%d, %d)", b.Period, b.Duty)
}

// MelodyFormula shapes the lead line: Amplitude sets the reachable span of
// scale degrees, Frequency the oscillation speed.
type MelodyFormula struct {
	Amplitude int     `json:"amplitude" yaml:"amplitude"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
}

// String renders the formula as a tuple, e.g. "(5, 0.1)"
func (m MelodyFormula) String() string {
	return fmt.Sprintf("(%d, %s)", m.Amplitude, strconv.FormatFloat(m.Frequency, 'g', -1, 64))
}

// ParameterSet drives exactly one generated piece
type ParameterSet struct {
	KeyName string        `json:"key" yaml:"key"`
	Root    int           `json:"root" yaml:"root"`
	Tempo   int           `json:"tempo" yaml:"tempo"`
	Bass    BassFormula   `json:"bass" yaml:"bass"`
	Melody  MelodyFormula `json:"melody" yaml:"melody"`
}

// Validate checks the formulas and tempo. Pitch range is checked by the
// Generator since it depends on the theory tables.
func (p ParameterSet) Validate() error {
	switch {
	case p.Bass.Period <= 0:
		return fmt.Errorf("%w: bass period must be positive, got %d", ErrInvalidParams, p.Bass.Period)
	case p.Bass.Duty < 0:
		return fmt.Errorf("%w: bass duty must not be negative, got %d", ErrInvalidParams, p.Bass.Duty)
	case p.Melody.Amplitude < 0:
		return fmt.Errorf("%w: melody amplitude must not be negative, got %d", ErrInvalidParams, p.Melody.Amplitude)
	case math.IsNaN(p.Melody.Frequency) || math.IsInf(p.Melody.Frequency, 0):
		return fmt.Errorf("%w: melody frequency must be finite", ErrInvalidParams)
	}
	return ValidateTempo(p.Tempo)
}

// NoteEvent is a single timed note
type NoteEvent struct {
	Pitch    uint8 // MIDI note number (0-127)
	Velocity uint8 // Velocity (0-127)
	Onset    int   // Absolute time in ticks
	Duration int   // Length in ticks
}

// Stream is the ordered note list of one voice
type Stream []NoteEvent

// Voice identifies one of the four instrument streams
type Voice int

const (
	VoiceDrums Voice = iota
	VoiceBass
	VoicePads
	VoiceLead
)

// Voices lists every voice in track order
var Voices = []Voice{VoiceDrums, VoiceBass, VoicePads, VoiceLead}

func (v Voice) String() string {
	switch v {
	case VoiceDrums:
		return "drums"
	case VoiceBass:
		return "bass"
	case VoicePads:
		return "pads"
	case VoiceLead:
		return "lead"
	default:
		return "voice(" + strconv.Itoa(int(v)) + ")"
	}
}

// Piece holds the four streams generated for one ParameterSet
type Piece struct {
	Params ParameterSet
	Drums  Stream
	Bass   Stream
	Pads   Stream
	Lead   Stream
}

// Stream returns the stream for a voice
func (p *Piece) Stream(v Voice) Stream {
	switch v {
	case VoiceDrums:
		return p.Drums
	case VoiceBass:
		return p.Bass
	case VoicePads:
		return p.Pads
	case VoiceLead:
		return p.Lead
	}
	return nil
}

package generator

import (
	"fmt"
	"slices"
)

// Percussion note numbers (General MIDI)
const (
	KickNote  = 36
	SnareNote = 38
)

// MaxTicks is the largest tick value an SMF variable-length quantity can carry
const MaxTicks = 0x0FFFFFFF

// drumCycle is the length of the drum bar in steps, independent of the grid
const drumCycle = 16

// VoiceSpec holds the fixed rendering attributes of a voice
type VoiceSpec struct {
	Pitch    uint8 // only used by fixed-pitch voices
	Velocity uint8
	Duration int   // ticks
	Program  uint8 // General MIDI program, ignored for drums
	Channel  uint8 // zero-based MIDI channel
}

// Theory bundles the read-only musical tables
type Theory struct {
	Progression []int // semitone offsets from the key root, one chord per two bars
	Scale       []int // lead scale as semitone offsets
	PadVoicing  []int // intervals stacked above the chord root

	Kick  VoiceSpec
	Snare VoiceSpec
	Bass  VoiceSpec
	Pads  VoiceSpec
	Lead  VoiceSpec
}

// DefaultTheory returns the i - VI - III - VII progression over an extended
// minor pentatonic scale with an add-9 pad voicing.
func DefaultTheory() Theory {
	return Theory{
		Progression: []int{0, 8, 3, 10},
		Scale:       []int{0, 3, 5, 7, 10, 12, 15, 17, 19, 22, 24},
		PadVoicing:  []int{0, 3, 7, 14},

		Kick:  VoiceSpec{Pitch: KickNote, Velocity: 110, Duration: 100, Channel: 9},
		Snare: VoiceSpec{Pitch: SnareNote, Velocity: 120, Duration: 100, Channel: 9},
		Bass:  VoiceSpec{Velocity: 100, Duration: 200, Program: 38, Channel: 0}, // Synth Bass 1
		Pads:  VoiceSpec{Velocity: 70, Duration: 3800, Program: 89, Channel: 1}, // Warm Pad
		Lead:  VoiceSpec{Velocity: 90, Duration: 200, Program: 81, Channel: 2},  // Sawtooth
	}
}

// Spec returns the rendering attributes for a voice. Drums report the kick spec.
func (t Theory) Spec(v Voice) VoiceSpec {
	switch v {
	case VoiceBass:
		return t.Bass
	case VoicePads:
		return t.Pads
	case VoiceLead:
		return t.Lead
	default:
		return t.Kick
	}
}

func (t Theory) clone() Theory {
	t.Progression = slices.Clone(t.Progression)
	t.Scale = slices.Clone(t.Scale)
	t.PadVoicing = slices.Clone(t.PadVoicing)
	return t
}

func (t Theory) longestDuration() int {
	n := 0
	for _, s := range []VoiceSpec{t.Kick, t.Snare, t.Bass, t.Pads, t.Lead} {
		n = max(n, s.Duration)
	}
	return n
}

// Validate checks the tables are usable
func (t Theory) Validate() error {
	if len(t.Progression) == 0 {
		return fmt.Errorf("%w: empty progression", ErrInvalidParams)
	}
	if len(t.Scale) == 0 {
		return fmt.Errorf("%w: empty scale", ErrInvalidParams)
	}
	for _, s := range []VoiceSpec{t.Kick, t.Snare, t.Bass, t.Pads, t.Lead} {
		if s.Duration <= 0 {
			return fmt.Errorf("%w: voice duration must be positive", ErrInvalidParams)
		}
		if s.Velocity > 127 || s.Pitch > 127 || s.Program > 127 || s.Channel > 15 {
			return fmt.Errorf("%w: voice attributes out of MIDI range", ErrInvalidParams)
		}
	}
	return nil
}

// Grid is the shared time grid of a piece
type Grid struct {
	Bars        int
	StepsPerBar int
	TickUnit    int // ticks per step
}

// DefaultGrid is eight bars of sixteenth notes at 480 ticks per quarter
var DefaultGrid = Grid{Bars: 8, StepsPerBar: 16, TickUnit: 120}

// Steps returns the total number of steps
func (g Grid) Steps() int {
	return g.Bars * g.StepsPerBar
}

// ChordSteps returns how many steps each chord is held
func (g Grid) ChordSteps() int {
	return g.StepsPerBar * 2
}

// Validate rejects empty grids and grids longer than MaxTicks
func (g Grid) Validate() error {
	if g.Bars <= 0 || g.StepsPerBar <= 0 || g.TickUnit <= 0 {
		return fmt.Errorf("%w: grid %d bars x %d steps x %d ticks", ErrInvalidParams, g.Bars, g.StepsPerBar, g.TickUnit)
	}
	return g.fits(0)
}

// fits checks that the grid plus a trailing note of tail ticks stays within MaxTicks
func (g Grid) fits(tail int) error {
	tooLong := fmt.Errorf("%w: grid %d bars x %d steps x %d ticks exceeds %d ticks", ErrInvalidParams, g.Bars, g.StepsPerBar, g.TickUnit, MaxTicks)
	if tail > MaxTicks || g.Bars > MaxTicks/g.StepsPerBar {
		return tooLong
	}
	if g.Steps() > (MaxTicks-tail)/g.TickUnit {
		return tooLong
	}
	return nil
}

package generator

import (
	"fmt"
	"io"
	"math"
)

// Generator turns parameter sets into pieces. It holds no mutable state and
// is safe for concurrent use.
type Generator struct {
	theory Theory
	grid   Grid
}

// New creates a Generator with the given tables and grid
func New(theory Theory, grid Grid) (*Generator, error) {
	if err := theory.Validate(); err != nil {
		return nil, err
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if err := grid.fits(theory.longestDuration()); err != nil {
		return nil, err
	}
	return &Generator{theory: theory.clone(), grid: grid}, nil
}

// Default creates a Generator with DefaultTheory and DefaultGrid
func Default() *Generator {
	return &Generator{theory: DefaultTheory(), grid: DefaultGrid}
}

// Theory returns a copy of the tables the generator was built with
func (g *Generator) Theory() Theory {
	return g.theory.clone()
}

// Grid returns the time grid
func (g *Generator) Grid() Grid {
	return g.grid
}

// Validate checks params and that every pitch the piece can produce fits in 0..127
func (g *Generator) Validate(params ParameterSet) error {
	if err := params.Validate(); err != nil {
		return err
	}
	lo, hi := g.pitchRange(params.Root)
	if lo < 0 || hi > 127 {
		return fmt.Errorf("%w: root %d produces pitches %d..%d outside 0..127", ErrInvalidParams, params.Root, lo, hi)
	}
	return nil
}

func (g *Generator) pitchRange(root int) (lo, hi int) {
	pMin, pMax := minMax(g.theory.Progression)
	sMin, sMax := minMax(g.theory.Scale)
	vMin, vMax := minMax(g.theory.PadVoicing)

	lo = root + pMin - 24
	hi = root + pMax - 24
	if len(g.theory.PadVoicing) > 0 {
		lo = min(lo, root+pMin+vMin)
		hi = max(hi, root+pMax+vMax)
	}
	lo = min(lo, root+pMin+sMin+12)
	hi = max(hi, root+pMax+sMax+12)
	return lo, hi
}

func minMax(xs []int) (lo, hi int) {
	for i, x := range xs {
		if i == 0 || x < lo {
			lo = x
		}
		if i == 0 || x > hi {
			hi = x
		}
	}
	return lo, hi
}

// ChordRoot returns the root pitch of the chord sounding at step
func (g *Generator) ChordRoot(step, root int) int {
	idx := (step / g.grid.ChordSteps()) % len(g.theory.Progression)
	return root + g.theory.Progression[idx]
}

// ScaleIndex evaluates the melody equation at step and clamps the result to
// [0, scaleLen-1].
func ScaleIndex(step int, m MelodyFormula, scaleLen int) int {
	sine := math.Sin(float64(step) * m.Frequency)
	idx := int((sine + 1) * 0.5 * float64(m.Amplitude))
	if idx > scaleLen-1 {
		idx = scaleLen - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// BassGate reports whether the bass equation fires at step
func BassGate(step int, b BassFormula) bool {
	return step%b.Period < b.Duty
}

// Generate produces the drums, bass, pads and lead streams for params
func (g *Generator) Generate(params ParameterSet) (*Piece, error) {
	if err := g.Validate(params); err != nil {
		return nil, err
	}

	th := g.theory
	steps := g.grid.Steps()
	chordSteps := g.grid.ChordSteps()

	piece := &Piece{
		Params: params,
		Drums:  make(Stream, 0, steps/4),
		Bass:   make(Stream, 0, steps),
		Pads:   make(Stream, 0, (steps/chordSteps+1)*len(th.PadVoicing)),
		Lead:   make(Stream, 0, steps/2+1),
	}

	for i := 0; i < steps; i++ {
		t := i * g.grid.TickUnit
		root := g.ChordRoot(i, params.Root)

		// Drums
		beat := i % drumCycle
		if beat%8 == 0 {
			piece.Drums = append(piece.Drums, fixedNote(th.Kick, t))
		}
		if beat == 4 || beat == 12 {
			piece.Drums = append(piece.Drums, fixedNote(th.Snare, t))
		}

		// Bass
		if BassGate(i, params.Bass) {
			piece.Bass = append(piece.Bass, note(th.Bass, root-24, t))
		}

		// Pads
		if i%chordSteps == 0 {
			for _, interval := range th.PadVoicing {
				piece.Pads = append(piece.Pads, note(th.Pads, root+interval, t))
			}
		}

		// Lead on the eighth-note grid
		if i%2 == 0 {
			idx := ScaleIndex(i, params.Melody, len(th.Scale))
			piece.Lead = append(piece.Lead, note(th.Lead, root+th.Scale[idx]+12, t))
		}
	}

	return piece, nil
}

func fixedNote(s VoiceSpec, t int) NoteEvent {
	return NoteEvent{Pitch: s.Pitch, Velocity: s.Velocity, Onset: t, Duration: s.Duration}
}

func note(s VoiceSpec, pitch, t int) NoteEvent {
	return NoteEvent{Pitch: uint8(pitch), Velocity: s.Velocity, Onset: t, Duration: s.Duration}
}

// Dump writes one line per event, "<voice> <onset> <pitch> <velocity> <duration>",
// voices in track order.
func Dump(w io.Writer, p *Piece) error {
	for _, v := range Voices {
		for _, e := range p.Stream(v) {
			if _, err := fmt.Fprintf(w, "%s %d %d %d %d\n", v, e.Onset, e.Pitch, e.Velocity, e.Duration); err != nil {
				return err
			}
		}
	}
	return nil
}

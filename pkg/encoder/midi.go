package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/james-see/neonhorizon/pkg/generator"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// TicksPerQuarter is the container resolution. With the default grid one
// step of 120 ticks is a sixteenth note.
const TicksPerQuarter = 480

// ErrNotMIDI is returned when data does not carry the SMF signature
var ErrNotMIDI = errors.New("not a MIDI file")

// Report summarizes clamp diagnostics for one written piece
type Report struct {
	Clamps [4]int // indexed by generator.Voice
}

// Total returns the number of clamped onsets across all voices
func (r Report) Total() int {
	n := 0
	for _, c := range r.Clamps {
		n += c
	}
	return n
}

// MIDIWriter renders pieces into Standard MIDI Files
type MIDIWriter struct {
	ticksPerQuarter uint16
	theory          generator.Theory
	logger          *slog.Logger
}

// NewMIDIWriter creates a writer using the channel and program assignments of theory
func NewMIDIWriter(theory generator.Theory, logger *slog.Logger) *MIDIWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MIDIWriter{
		ticksPerQuarter: TicksPerQuarter,
		theory:          theory,
		logger:          logger,
	}
}

// Write creates MIDI data from a Piece: one track per voice in the order
// drums, bass, pads, lead. The drum track carries the tempo; the others open
// with a program change.
func (m *MIDIWriter) Write(piece *generator.Piece) ([]byte, Report, error) {
	var report Report
	if piece == nil {
		return nil, report, errors.New("nil piece")
	}
	if err := generator.ValidateTempo(piece.Params.Tempo); err != nil {
		return nil, report, err
	}
	if err := checkTicks(piece); err != nil {
		return nil, report, err
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	for _, voice := range generator.Voices {
		var track smf.Track
		track.Add(0, metaText(0x03, voice.String()))

		if voice == generator.VoiceDrums {
			track.Add(0, tempoMessage(piece.Params.Tempo))
			// 4/4
			track.Add(0, smf.Message([]byte{0xFF, 0x58, 0x04, 0x04, 0x02, 0x18, 0x08}))
		} else {
			spec := m.theory.Spec(voice)
			track.Add(0, midi.ProgramChange(spec.Channel, spec.Program))
		}

		enc := Encode(piece.Stream(voice))
		report.Clamps[voice] = len(enc.Clamps)
		if len(enc.Clamps) > 0 {
			first := enc.Clamps[0]
			m.logger.Debug("onset before previous release, delta clamped to zero",
				"voice", voice.String(),
				"count", len(enc.Clamps),
				"first_onset", first.Onset,
				"last_time", first.LastTime,
			)
		}

		channel := m.channel(voice)
		for _, ev := range enc.Events {
			if ev.Kind == NoteOn {
				track.Add(ev.Delta, midi.NoteOn(channel, ev.Pitch, ev.Velocity))
			} else {
				track.Add(ev.Delta, midi.NoteOff(channel, ev.Pitch))
			}
		}

		track.Close(0)
		if err := s.Add(track); err != nil {
			return nil, report, fmt.Errorf("failed to add %s track: %w", voice, err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, report, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), report, nil
}

// checkTicks rejects notes whose onset or release cannot be stored as a delta
func checkTicks(piece *generator.Piece) error {
	for _, v := range generator.Voices {
		for _, e := range piece.Stream(v) {
			if e.Onset < 0 || e.Duration < 0 || e.Onset > generator.MaxTicks-e.Duration {
				return fmt.Errorf("%w: %s note at tick %d (duration %d) exceeds %d ticks",
					generator.ErrInvalidParams, v, e.Onset, e.Duration, generator.MaxTicks)
			}
		}
	}
	return nil
}

// WriteFile writes MIDI data for piece to filename
func (m *MIDIWriter) WriteFile(piece *generator.Piece, filename string) (Report, error) {
	data, report, err := m.Write(piece)
	if err != nil {
		return report, err
	}
	return report, os.WriteFile(filename, data, 0644)
}

func (m *MIDIWriter) channel(v generator.Voice) uint8 {
	if v == generator.VoiceDrums {
		return m.theory.Kick.Channel
	}
	return m.theory.Spec(v).Channel
}

// MicrosecondsPerQuarter converts beats per minute to the tempo meta value
func MicrosecondsPerQuarter(bpm int) uint32 {
	return uint32(math.Round(60000000.0 / float64(bpm)))
}

func tempoMessage(bpm int) smf.Message {
	us := MicrosecondsPerQuarter(bpm)
	return smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(us >> 16),
		byte(us >> 8),
		byte(us),
	})
}

// metaText builds a text-like meta event (0x01-0x0F)
func metaText(typ byte, text string) smf.Message {
	msg := []byte{0xFF, typ}
	msg = append(msg, varLen(uint32(len(text)))...)
	msg = append(msg, text...)
	return smf.Message(msg)
}

func varLen(n uint32) []byte {
	out := []byte{byte(n & 0x7F)}
	for n >>= 7; n > 0; n >>= 7 {
		out = append([]byte{byte(n&0x7F) | 0x80}, out...)
	}
	return out
}

// DecodedTrack is one track read back from a MIDI file
type DecodedTrack struct {
	Name    string
	Channel int // -1 when the track has no channel messages
	Program int // -1 when the track has no program change
	Notes   generator.Stream
}

// Decoded is a MIDI file read back into absolute note lists
type Decoded struct {
	Resolution             uint16
	MicrosecondsPerQuarter uint32
	Tempo                  float64 // BPM
	Tracks                 []DecodedTrack
}

// ReadMIDIFile reads a MIDI file from disk and decodes it
func ReadMIDIFile(filename string) (*Decoded, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return ReadMIDI(data)
}

// ReadMIDI parses MIDI data into absolute note lists per track. Note-offs are
// matched to the earliest open note-on of the same channel and key.
func ReadMIDI(data []byte) (*Decoded, error) {
	if DetectFormatFromContent(data) != FormatMIDI {
		return nil, ErrNotMIDI
	}

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	dec := &Decoded{}
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		dec.Resolution = mt.Resolution()
	}

	type open struct {
		idx  int
		tick int64
	}

	for _, track := range s.Tracks {
		dt := DecodedTrack{Channel: -1, Program: -1}
		pending := map[[2]uint8][]open{}
		var tick int64

		for _, ev := range track {
			tick += int64(ev.Delta)
			msg := ev.Message

			// Meta: FF type len data
			if len(msg) >= 3 && msg[0] == 0xFF {
				switch {
				case msg[1] == 0x51 && len(msg) >= 6:
					us := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
					if us > 0 {
						dec.MicrosecondsPerQuarter = us
						dec.Tempo = 60000000.0 / float64(us)
					}
				case msg[1] == 0x03:
					dt.Name = string(msg[2+len(varLenPrefix(msg[2:])):])
				}
				continue
			}

			if len(msg) < 2 {
				continue
			}
			status := msg[0] & 0xF0
			ch := msg[0] & 0x0F

			switch {
			// Program change: 0xCn pp
			case status == 0xC0:
				dt.Program = int(msg[1])
				dt.Channel = int(ch)

			// Note on: 0x9n nn vv
			case status == 0x90 && len(msg) >= 3 && msg[2] > 0:
				dt.Channel = int(ch)
				key := [2]uint8{ch, msg[1]}
				pending[key] = append(pending[key], open{idx: len(dt.Notes), tick: tick})
				dt.Notes = append(dt.Notes, generator.NoteEvent{
					Pitch:    msg[1],
					Velocity: msg[2],
					Onset:    int(tick),
				})

			// Note off: 0x8n nn vv or note on with velocity 0
			case (status == 0x80 || status == 0x90) && len(msg) >= 3:
				key := [2]uint8{ch, msg[1]}
				queue := pending[key]
				if len(queue) == 0 {
					continue
				}
				o := queue[0]
				pending[key] = queue[1:]
				dt.Notes[o.idx].Duration = int(tick - o.tick)
			}
		}

		dec.Tracks = append(dec.Tracks, dt)
	}

	return dec, nil
}

// varLenPrefix returns the bytes of the variable-length quantity at the start of b
func varLenPrefix(b []byte) []byte {
	for i, c := range b {
		if c&0x80 == 0 {
			return b[:i+1]
		}
	}
	return b
}

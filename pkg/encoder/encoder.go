// Package encoder turns note streams into delta-time event lists and
// Standard MIDI Files.
package encoder

import (
	"errors"
	"fmt"
	"sort"

	"github.com/james-see/neonhorizon/pkg/generator"
)

// EventKind distinguishes onset and release events
type EventKind uint8

const (
	NoteOn EventKind = iota
	NoteOff
)

func (k EventKind) String() string {
	if k == NoteOn {
		return "note_on"
	}
	return "note_off"
}

// Event is one serialized message with its delta time in ticks
type Event struct {
	Kind     EventKind
	Pitch    uint8
	Velocity uint8
	Delta    uint32
}

// Clamp records an onset that fell before the previous release and had its
// delta floored at zero.
type Clamp struct {
	Index    int // position in the sorted stream
	Onset    int
	LastTime int
}

// Encoding is the result of encoding one stream
type Encoding struct {
	Events []Event
	Clamps []Clamp
}

// Ticks returns the sum of all delta times
func (e Encoding) Ticks() int {
	total := 0
	for _, ev := range e.Events {
		total += int(ev.Delta)
	}
	return total
}

// Encode sorts a copy of the stream by onset (stable, so ties keep emission
// order) and emits a note-on/note-off pair per event. The note-off follows its
// note-on by the event's duration, and each note-on is timed from the previous
// note-off. Onsets that would need a negative delta are emitted at zero and
// reported in Clamps.
func Encode(stream generator.Stream) Encoding {
	sorted := make(generator.Stream, len(stream))
	copy(sorted, stream)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Onset < sorted[j].Onset
	})

	enc := Encoding{Events: make([]Event, 0, len(sorted)*2)}
	last := 0
	for i, e := range sorted {
		delta := e.Onset - last
		if delta < 0 {
			enc.Clamps = append(enc.Clamps, Clamp{Index: i, Onset: e.Onset, LastTime: last})
			delta = 0
		}
		enc.Events = append(enc.Events,
			Event{Kind: NoteOn, Pitch: e.Pitch, Velocity: e.Velocity, Delta: uint32(delta)},
			Event{Kind: NoteOff, Pitch: e.Pitch, Velocity: 0, Delta: uint32(e.Duration)},
		)
		last = e.Onset + e.Duration
	}
	return enc
}

// ErrMalformed is returned by Decode for event lists that are not on/off pairs
var ErrMalformed = errors.New("malformed event list")

// Decode rebuilds absolute onset/duration pairs from an encoded event list.
// It is the exact inverse of Encode when no clamp occurred.
func Decode(events []Event) (generator.Stream, error) {
	if len(events)%2 != 0 {
		return nil, fmt.Errorf("%w: odd event count %d", ErrMalformed, len(events))
	}

	stream := make(generator.Stream, 0, len(events)/2)
	now := 0
	for i := 0; i < len(events); i += 2 {
		on, off := events[i], events[i+1]
		if on.Kind != NoteOn || off.Kind != NoteOff || on.Pitch != off.Pitch {
			return nil, fmt.Errorf("%w: events %d-%d are not a note pair", ErrMalformed, i, i+1)
		}
		now += int(on.Delta)
		stream = append(stream, generator.NoteEvent{
			Pitch:    on.Pitch,
			Velocity: on.Velocity,
			Onset:    now,
			Duration: int(off.Delta),
		})
		now += int(off.Delta)
	}
	return stream, nil
}

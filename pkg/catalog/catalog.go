// Package catalog defines the parameter space of the generated library and
// the file naming scheme that encodes a parameter set.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/james-see/neonhorizon/pkg/generator"
)

var (
	// ErrUnknownFile is returned when a file name does not follow the naming scheme
	ErrUnknownFile = errors.New("file name does not match the catalog naming scheme")
	// ErrNotInCatalog is returned for parameter combinations the catalog does not contain
	ErrNotInCatalog = errors.New("parameters not in catalog")
)

// Key is a named tonal center
type Key struct {
	Name string `yaml:"name" json:"name"`
	Root int    `yaml:"root" json:"root"`
}

// TempoRange is an inclusive range of tempi
type TempoRange struct {
	From int `yaml:"from" json:"from"`
	To   int `yaml:"to" json:"to"`
	Step int `yaml:"step" json:"step"`
}

// Values expands the range
func (r TempoRange) Values() []int {
	if r.Step <= 0 {
		return nil
	}
	var out []int
	for bpm := r.From; bpm <= r.To; bpm += r.Step {
		out = append(out, bpm)
	}
	return out
}

// Catalog is the Cartesian product of keys, tempi, bass and melody formulas
type Catalog struct {
	Keys   []Key                     `yaml:"keys" json:"keys"`
	Tempi  TempoRange                `yaml:"tempi" json:"tempi"`
	Bass   []generator.BassFormula   `yaml:"bass" json:"bass"`
	Melody []generator.MelodyFormula `yaml:"melody" json:"melody"`
}

// Default returns the stock catalog of 2,400 pieces
func Default() *Catalog {
	return &Catalog{
		Keys: []Key{
			{"A_Minor", 57}, {"C_Minor", 60}, {"D_Minor", 62},
			{"E_Minor", 64}, {"F_Minor", 65}, {"G_Minor", 67},
		},
		Tempi: TempoRange{From: 85, To: 115, Step: 2},
		Bass: []generator.BassFormula{
			{Period: 4, Duty: 2},  // Driving 8ths
			{Period: 8, Duty: 3},  // Tresillo
			{Period: 16, Duty: 4}, // Sparse
			{Period: 6, Duty: 3},  // Rolling triplets
			{Period: 8, Duty: 5},  // Heavy syncopation
		},
		Melody: []generator.MelodyFormula{
			{Amplitude: 5, Frequency: 0.1},   // Slow arp
			{Amplitude: 7, Frequency: 0.2},   // Fast run
			{Amplitude: 12, Frequency: 0.05}, // Wide sweep
			{Amplitude: 3, Frequency: 0.4},   // Rapid trill
			{Amplitude: 9, Frequency: 0.15},  // Complex meander
		},
	}
}

// Load reads a YAML catalog from path. Sections left out of the file keep
// their default values.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog over the defaults and validates it
func Parse(data []byte) (*Catalog, error) {
	var override Catalog
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := Default()
	if len(override.Keys) > 0 {
		c.Keys = override.Keys
	}
	if override.Tempi != (TempoRange{}) {
		c.Tempi = override.Tempi
	}
	if len(override.Bass) > 0 {
		c.Bass = override.Bass
	}
	if len(override.Melody) > 0 {
		c.Melody = override.Melody
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every dimension is non-empty, key names and formulas are
// unique, and every tempo and formula is usable.
func (c *Catalog) Validate() error {
	if len(c.Keys) == 0 || len(c.Tempi.Values()) == 0 || len(c.Bass) == 0 || len(c.Melody) == 0 {
		return fmt.Errorf("%w: catalog has an empty dimension", generator.ErrInvalidParams)
	}
	seen := map[string]bool{}
	for _, k := range c.Keys {
		if !keyName.MatchString(k.Name) {
			return fmt.Errorf("%w: key name %q", generator.ErrInvalidParams, k.Name)
		}
		if seen[k.Name] {
			return fmt.Errorf("%w: duplicate key %q", generator.ErrInvalidParams, k.Name)
		}
		seen[k.Name] = true
	}
	for _, bpm := range c.Tempi.Values() {
		if err := generator.ValidateTempo(bpm); err != nil {
			return err
		}
	}

	// Every combination must map to its own file name
	ps := generator.ParameterSet{Root: c.Keys[0].Root, Tempo: c.Tempi.Values()[0], Melody: c.Melody[0]}
	bass := map[generator.BassFormula]bool{}
	for _, b := range c.Bass {
		ps.Bass = b
		if err := ps.Validate(); err != nil {
			return err
		}
		if bass[b] {
			return fmt.Errorf("%w: duplicate bass formula %s", generator.ErrInvalidParams, b)
		}
		bass[b] = true
	}
	melody := map[string]bool{}
	for _, m := range c.Melody {
		ps.Melody = m
		if err := ps.Validate(); err != nil {
			return err
		}
		if melody[m.String()] {
			return fmt.Errorf("%w: duplicate melody formula %s", generator.ErrInvalidParams, m)
		}
		melody[m.String()] = true
	}
	return nil
}

// Size returns the number of parameter sets in the catalog
func (c *Catalog) Size() int {
	return len(c.Keys) * len(c.Tempi.Values()) * len(c.Bass) * len(c.Melody)
}

// Enumerate lists every parameter set, nesting key, tempo, bass, melody
func (c *Catalog) Enumerate() []generator.ParameterSet {
	tempi := c.Tempi.Values()
	out := make([]generator.ParameterSet, 0, c.Size())
	for _, k := range c.Keys {
		for _, bpm := range tempi {
			for _, b := range c.Bass {
				for _, m := range c.Melody {
					out = append(out, generator.ParameterSet{
						KeyName: k.Name,
						Root:    k.Root,
						Tempo:   bpm,
						Bass:    b,
						Melody:  m,
					})
				}
			}
		}
	}
	return out
}

// Key looks up a key by name
func (c *Catalog) Key(name string) (Key, bool) {
	for _, k := range c.Keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}

// Lookup returns the parameter set for a combination if the catalog contains it
func (c *Catalog) Lookup(key string, tempo int, bass generator.BassFormula, melody generator.MelodyFormula) (generator.ParameterSet, error) {
	k, ok := c.Key(key)
	if !ok {
		return generator.ParameterSet{}, fmt.Errorf("%w: key %q", ErrNotInCatalog, key)
	}
	if !slices.Contains(c.Tempi.Values(), tempo) {
		return generator.ParameterSet{}, fmt.Errorf("%w: tempo %d", ErrNotInCatalog, tempo)
	}
	if !slices.Contains(c.Bass, bass) {
		return generator.ParameterSet{}, fmt.Errorf("%w: bass %s", ErrNotInCatalog, bass)
	}
	if !slices.Contains(c.Melody, melody) {
		return generator.ParameterSet{}, fmt.Errorf("%w: melody %s", ErrNotInCatalog, melody)
	}
	return generator.ParameterSet{KeyName: k.Name, Root: k.Root, Tempo: tempo, Bass: bass, Melody: melody}, nil
}

var keyName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9#]*(_[A-Za-z0-9#]+)*$`)

// Filename encodes a parameter set, e.g. "Synth_A_Minor_85_Bass(4, 2)_Mel(5, 0.1).mid"
func Filename(p generator.ParameterSet) string {
	return fmt.Sprintf("Synth_%s_%d_Bass%s_Mel%s.mid", p.KeyName, p.Tempo, p.Bass, p.Melody)
}

var filenamePattern = regexp.MustCompile(`^Synth_(.+)_(\d+)_Bass\((-?\d+), (-?\d+)\)_Mel\((-?\d+), ([-+0-9.eE]+)\)\.mid$`)

// ParseFilename decodes a file name produced by Filename back into the
// catalog's parameter set.
func (c *Catalog) ParseFilename(name string) (generator.ParameterSet, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return generator.ParameterSet{}, fmt.Errorf("%w: %q", ErrUnknownFile, name)
	}

	ints := make([]int, 0, 4)
	for _, s := range []string{m[2], m[3], m[4], m[5]} {
		n, err := strconv.Atoi(s)
		if err != nil {
			return generator.ParameterSet{}, fmt.Errorf("%w: %q", ErrUnknownFile, name)
		}
		ints = append(ints, n)
	}
	freq, err := strconv.ParseFloat(m[6], 64)
	if err != nil {
		return generator.ParameterSet{}, fmt.Errorf("%w: %q", ErrUnknownFile, name)
	}

	return c.Lookup(m[1], ints[0],
		generator.BassFormula{Period: ints[1], Duty: ints[2]},
		generator.MelodyFormula{Amplitude: ints[3], Frequency: freq},
	)
}

package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/james-see/neonhorizon/pkg/generator"
)

// splitPair accepts "4,2", "4, 2" and "(4, 2)"
func splitPair(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: expected two comma separated values, got %q", generator.ErrInvalidParams, s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// ParseBass parses a "period,duty" pair
func ParseBass(s string) (generator.BassFormula, error) {
	a, b, err := splitPair(s)
	if err != nil {
		return generator.BassFormula{}, err
	}
	period, err := strconv.Atoi(a)
	if err != nil {
		return generator.BassFormula{}, fmt.Errorf("%w: bass period %q", generator.ErrInvalidParams, a)
	}
	duty, err := strconv.Atoi(b)
	if err != nil {
		return generator.BassFormula{}, fmt.Errorf("%w: bass duty %q", generator.ErrInvalidParams, b)
	}
	return generator.BassFormula{Period: period, Duty: duty}, nil
}

// ParseMelody parses an "amplitude,frequency" pair
func ParseMelody(s string) (generator.MelodyFormula, error) {
	a, b, err := splitPair(s)
	if err != nil {
		return generator.MelodyFormula{}, err
	}
	amp, err := strconv.Atoi(a)
	if err != nil {
		return generator.MelodyFormula{}, fmt.Errorf("%w: melody amplitude %q", generator.ErrInvalidParams, a)
	}
	freq, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return generator.MelodyFormula{}, fmt.Errorf("%w: melody frequency %q", generator.ErrInvalidParams, b)
	}
	return generator.MelodyFormula{Amplitude: amp, Frequency: freq}, nil
}

package encoder

import (
	"path/filepath"
	"strings"
)

// Format represents a file format produced by the catalog
type Format string

const (
	FormatMIDI     Format = "midi"
	FormatManifest Format = "csv"
	FormatArchive  Format = "zip"
	FormatUnknown  Format = "unknown"
)

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mid", ".midi":
		return FormatMIDI
	case ".csv":
		return FormatManifest
	case ".zip":
		return FormatArchive
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	// MIDI file signature "MThd"
	if string(data[:4]) == "MThd" {
		return FormatMIDI
	}

	// ZIP local file header "PK\x03\x04"
	if string(data[:4]) == "PK\x03\x04" {
		return FormatArchive
	}

	return FormatUnknown
}

package batch

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// ManifestHeader is the first row of the manifest
var ManifestHeader = []string{"Filename", "Key", "BPM", "BassMath", "MelodyMath", "Author"}

// ManifestRow renders one entry as a manifest row
func ManifestRow(e Entry, author string) []string {
	return []string{
		e.Filename,
		e.Params.KeyName,
		strconv.Itoa(e.Params.Tempo),
		e.Params.Bass.String(),
		e.Params.Melody.String(),
		author,
	}
}

// WriteManifest writes the CSV manifest for entries
func WriteManifest(path string, entries []Entry, author string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(ManifestHeader); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	for _, e := range entries {
		if err := w.Write(ManifestRow(e, author)); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write manifest: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return f.Close()
}

// WriteArchive packs the manifest (if any) and every entry into a deflated
// ZIP. Entries are stored under their base names.
func WriteArchive(path, manifest string, entries []Entry, runID string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(f)
	if runID != "" {
		if err := zw.SetComment("neonhorizon run " + runID); err != nil {
			return err
		}
	}

	if manifest != "" {
		if err := addFile(zw, manifest); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := addFile(zw, e.Path); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", path, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := zw.CreateHeader(&zip.FileHeader{
		Name:   filepath.Base(path),
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", path, err)
	}
	return nil
}

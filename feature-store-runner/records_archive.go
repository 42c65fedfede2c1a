package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// resolveRecordsFile returns a plain CSV path for the given records file,
// extracting it first when it is a 7z archive. The returned cleanup
// removes whatever was extracted.
func resolveRecordsFile(path string) (string, func(), error) {
	packed, err := is7z(path)
	if err != nil {
		return "", nil, err
	}
	if !packed {
		return path, func() {}, nil
	}

	dest, err := os.MkdirTemp("", "records-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create extraction dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dest) }

	csvPath, err := extractRecordsCSV(path, dest)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return csvPath, cleanup, nil
}

// extractRecordsCSV unpacks the archive into dest and returns the path of
// the single CSV file it must contain.
func extractRecordsCSV(src, dest string) (string, error) {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return "", fmt.Errorf("open 7z: %w", err)
	}
	defer r.Close()

	var csvPath string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			continue
		}
		if csvPath != "" {
			return "", fmt.Errorf("archive %q contains more than one CSV file", src)
		}

		target := filepath.Join(dest, filepath.Base(f.Name))
		if err := extractFile(f, target); err != nil {
			return "", err
		}
		csvPath = target
	}

	if csvPath == "" {
		return "", fmt.Errorf("archive %q contains no CSV file", src)
	}
	return csvPath, nil
}

func extractFile(f *sevenzip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %q: %w", target, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %q: %w", f.Name, err)
	}
	return out.Close()
}

// is7z checks whether the file at path appears to be a 7z archive by
// reading its magic number (first 6 bytes).
func is7z(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	magic := make([]byte, 6)
	n, err := f.Read(magic)
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read magic: %w", err)
	}
	if n < 6 {
		return false, nil // too short to be a valid 7z file
	}

	return hex.EncodeToString(magic) == "377abcaf271c", nil
}

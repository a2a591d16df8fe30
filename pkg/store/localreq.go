package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteLocalRequirements writes a requirements file listing every wheel in
// s, one "./<relative path>" per line, relative to the directory holding
// path. The file is replaced on every call. It returns the number of
// entries written.
func WriteLocalRequirements(path string, s Store) (int, error) {
	artifacts, err := s.Artifacts()
	if err != nil {
		return 0, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", path, err)
	}
	base := filepath.Dir(absPath)

	var buf bytes.Buffer
	n := 0
	for _, a := range artifacts {
		if a.Kind != KindWheel {
			continue
		}
		rel, err := filepath.Rel(base, a.Path)
		if err != nil {
			return 0, fmt.Errorf("relativising %s: %w", a.Path, err)
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, "../") {
			rel = "./" + rel
		}
		buf.WriteString(rel + "\n")
		n++
	}

	if err := os.WriteFile(absPath, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return n, nil
}

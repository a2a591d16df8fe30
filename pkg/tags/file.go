package tags

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pipfetch/pipfetch/pkg/errdefs"
)

// DefaultFile is the tags file name used when none is given.
const DefaultFile = "system.tags"

const filePerms = 0o644

// LineError describes a tags-file line that could not be used.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

// File is a tags file loaded from disk.
type File struct {
	Path    string
	Tags    []Tag
	Skipped []LineError
}

// WriteFile writes one tag per line to path, replacing any existing file.
func WriteFile(path string, ts []Tag) error {
	var buf bytes.Buffer
	if err := Write(&buf, ts); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), filePerms); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Write serialises tags, one per line, no header.
func Write(w io.Writer, ts []Tag) error {
	bw := bufio.NewWriter(w)
	for _, t := range ts {
		if _, err := bw.WriteString(t.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadFile loads the tags at path in file order. A missing file or one
// without any usable tag is an errdefs.ErrFileFormat error. Lines that are
// not tags, or whose interpreter is neither cp nor py, are reported in
// Skipped.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errdefs.FileFormat("reading tags", path, fmt.Errorf("tags file not found, run with -i first to generate it: %w", err))
		}
		return nil, errdefs.FileFormat("reading tags", path, err)
	}
	defer f.Close()

	ts, skipped, err := Read(f)
	if err != nil {
		return nil, errdefs.FileFormat("reading tags", path, err)
	}
	if len(ts) == 0 {
		if len(skipped) > 0 {
			return nil, errdefs.FileFormat("reading tags", path, fmt.Errorf("no valid tags: %w", skipped[0]))
		}
		return nil, errdefs.FileFormat("reading tags", path, errors.New("file is empty"))
	}

	return &File{Path: path, Tags: ts, Skipped: skipped}, nil
}

// Read parses tags from r, one per non-empty line.
func Read(r io.Reader) ([]Tag, []LineError, error) {
	sc := bufio.NewScanner(r)

	var (
		ts      []Tag
		skipped []LineError
		n       int
	)
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		t, err := Parse(text)
		if err == nil {
			_, err = t.PythonVersion()
		}
		if err != nil {
			skipped = append(skipped, LineError{Line: n, Text: text, Err: err})
			continue
		}
		ts = append(ts, t)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return ts, skipped, nil
}

// Package tags models Python compatibility tags, enumerates the ones the
// local package manager accepts, and persists them to a flat tags file.
package tags

import (
	"fmt"
	"strings"
)

// Tag is one interpreter-abi-platform triple, e.g.
// cp310-cp310-manylinux_2_17_x86_64.
type Tag struct {
	Interpreter string
	ABI         string
	Platform    string
}

// Parse splits s into its three dash-separated parts.
func Parse(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return Tag{}, fmt.Errorf("tag %q: want interpreter-abi-platform", s)
	}
	for _, p := range parts {
		if p == "" {
			return Tag{}, fmt.Errorf("tag %q: empty component", s)
		}
	}
	return Tag{Interpreter: parts[0], ABI: parts[1], Platform: parts[2]}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Tag {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Tag) String() string {
	return t.Interpreter + "-" + t.ABI + "-" + t.Platform
}

// PythonVersion returns the version token pip accepts for
// --python-version: the interpreter with its cp or py prefix removed
// ("cp310" -> "310", "py3" -> "3").
func (t Tag) PythonVersion() (string, error) {
	for _, prefix := range []string{"cp", "py"} {
		if v, ok := strings.CutPrefix(t.Interpreter, prefix); ok {
			if v == "" {
				break
			}
			return v, nil
		}
	}
	return "", fmt.Errorf("unexpected interpreter format: %s", t.Interpreter)
}

// Strings renders tags back to their textual form.
func Strings(ts []Tag) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

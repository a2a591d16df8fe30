package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	dirPerm    = 0o755
	hashPrefix = "sha256:"
)

// Kind classifies a distribution file.
type Kind string

const (
	KindWheel Kind = "wheel"
	KindSdist Kind = "sdist"
)

var sdistSuffixes = []string{".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".zip"}

// Artifact is one distribution file in the download directory.
type Artifact struct {
	Name string // base name, e.g. requests-2.31.0-py3-none-any.whl
	Kind Kind
	Path string // absolute path
}

// Store is the download directory that accumulates artifacts across runs.
type Store interface {
	// Root returns the directory the store manages.
	Root() string
	// Path returns the filesystem path for the given segments joined under
	// the store root. Does not create or verify the path.
	Path(segments ...string) string
	// EnsureDir creates the directory at segments (starting at store root),
	// including parents.
	EnsureDir(segments ...string) error
	// Artifacts lists the wheels and source distributions directly under
	// the root, sorted by name. Other files are ignored.
	Artifacts() ([]Artifact, error)
	// HashFile computes a "sha256:<hex>" integrity hash of one file.
	HashFile(segments ...string) (string, error)
}

// New returns a store rooted at root. A relative root is resolved against
// the working directory so artifact paths stay valid after a chdir.
func New(root string) (Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	return &store{root: abs}, nil
}

type store struct {
	root string
}

var _ Store = &store{}

func (s *store) Root() string {
	return s.root
}

func (s *store) Path(segments ...string) string {
	return filepath.Join(append([]string{s.root}, segments...)...)
}

func (s *store) EnsureDir(segments ...string) error {
	path := s.Path(segments...)
	if err := os.MkdirAll(path, dirPerm); err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return nil
}

func (s *store) Artifacts() ([]Artifact, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.root, err)
	}

	var out []Artifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		kind, ok := KindOf(e.Name())
		if !ok {
			continue
		}
		out = append(out, Artifact{Name: e.Name(), Kind: kind, Path: s.Path(e.Name())})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *store) HashFile(segments ...string) (string, error) {
	f, err := os.Open(s.Path(segments...))
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hashPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// KindOf classifies a file name as a wheel or source distribution.
func KindOf(name string) (Kind, bool) {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".whl") {
		return KindWheel, true
	}
	for _, suffix := range sdistSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return KindSdist, true
		}
	}
	return "", false
}

package fetch

import (
	"fmt"

	"github.com/pipfetch/pipfetch/pkg/config"
	"github.com/pipfetch/pipfetch/pkg/store"
	"github.com/pipfetch/pipfetch/pkg/tags"
)

// BuildLockFile describes every artifact currently in s, hashed, for the
// run in report.
func BuildLockFile(s store.Store, report *Report, tagsFile string, ts []tags.Tag) (*config.LockFile, error) {
	artifacts, err := s.Artifacts()
	if err != nil {
		return nil, err
	}

	lf := config.NewLockFile(report.RunID, report.Finished)
	lf.TagsFile = tagsFile
	lf.Tags = tags.Strings(ts)

	for _, a := range artifacts {
		integrity, err := s.HashFile(a.Name)
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", a.Name, err)
		}
		lf.Artifacts = append(lf.Artifacts, config.ArtifactLockEntry{
			File:      a.Name,
			Kind:      string(a.Kind),
			Integrity: integrity,
		})
	}
	return lf, nil
}

// WriteLockFile builds the lock file and saves it as name inside s.
func WriteLockFile(s store.Store, name string, report *Report, tagsFile string, ts []tags.Tag) (*config.LockFile, error) {
	lf, err := BuildLockFile(s, report, tagsFile, ts)
	if err != nil {
		return nil, err
	}
	if err := config.SaveLockFile(s.Path(name), lf); err != nil {
		return nil, err
	}
	return lf, nil
}

// Package storage holds the on-disk work queue: an inbox of videos waiting
// to be published and the done and failed directories they are moved to.
package storage

import "errors"

var ErrRelocate = errors.New("relocate failed")

type Queue interface {
	ListCandidates(limit int) ([]string, error)
	Relocate(path, targetDir string) (string, error)
	DoneDir() string
	FailedDir() string
}

// Package entities defines core domain models and data structures.
package entities

import "path/filepath"

// MIME types recorded for release artifacts
const (
	MimeTypeEgg       = "application/octet-stream"
	MimeTypeTarball   = "application/x-tar"
	MimeTypeText      = "text/plain"
	MimeTypeSignature = "application/pgp-signature"
)

// Artifact represents a built distributable file
type Artifact struct {
	Path     string
	MimeType string
}

// Name returns the artifact's base filename
func (a Artifact) Name() string {
	return filepath.Base(a.Path)
}

// BuildList is the ordered record of artifacts produced by a release run.
// Entries are only ever appended; order is build order.
type BuildList struct {
	artifacts []Artifact
}

// NewBuildList creates an empty build list
func NewBuildList() *BuildList {
	return &BuildList{}
}

// Add appends an artifact to the list
func (l *BuildList) Add(path, mimeType string) {
	l.artifacts = append(l.artifacts, Artifact{Path: path, MimeType: mimeType})
}

// Artifacts returns a copy of the recorded artifacts in build order
func (l *BuildList) Artifacts() []Artifact {
	out := make([]Artifact, len(l.artifacts))
	copy(out, l.artifacts)
	return out
}

// Len returns the number of recorded artifacts
func (l *BuildList) Len() int {
	return len(l.artifacts)
}

// Names returns the base filenames in build order
func (l *BuildList) Names() []string {
	names := make([]string, len(l.artifacts))
	for i, a := range l.artifacts {
		names[i] = a.Name()
	}
	return names
}

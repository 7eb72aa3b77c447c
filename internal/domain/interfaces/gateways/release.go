// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
)

// VCSGateway defines the version-control operations a release needs
type VCSGateway interface {
	// CloneTree clones the committed state of sourceDir into a new temporary
	// directory and returns that directory
	CloneTree(ctx context.Context, sourceDir string) (string, error)

	// Head returns the commit checked out in dir
	Head(ctx context.Context, dir string) (string, error)

	// Tag creates a lightweight tag in dir pointing at revision
	Tag(ctx context.Context, dir, name, revision string) error

	// RevParse resolves a ref in dir to a commit hash
	RevParse(ctx context.Context, dir, ref string) (string, error)
}

// PackagingGateway defines operations of the external packaging tool
type PackagingGateway interface {
	// BuildArtifacts builds one binary distribution per interpreter version and
	// then a source distribution, in that order
	BuildArtifacts(ctx context.Context, dir string, project *entities.Project, version entities.VersionInfo) (*entities.BuildList, error)

	// Register registers the package with the packaging index
	Register(ctx context.Context, dir string, project *entities.Project) error
}

// ObjectStore defines the object-storage operations used to publish artifacts
type ObjectStore interface {
	// Upload stores a local file at key, publicly readable, with its MIME type
	Upload(ctx context.Context, localPath, key, mimeType string) error

	// UploadDirectoryIndex regenerates the browsable index at prefix
	UploadDirectoryIndex(ctx context.Context, prefix string) error
}

// RegistrationResult is the outcome of posting a release to the website API
type RegistrationResult struct {
	StatusCode int
	Body       string
}

// OK reports whether the API accepted the release
func (r *RegistrationResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ReleaseRegistry defines the release-registration API
type ReleaseRegistry interface {
	// RegisterRelease posts release metadata. A non-2xx response is returned
	// as a result, not an error; err is reserved for transport failures.
	RegisterRelease(ctx context.Context, metadata entities.ReleaseMetadata) (*RegistrationResult, error)
}

// ManifestSigner produces a detached signature for the checksum manifest
type ManifestSigner interface {
	// SignFile writes an armored detached signature next to path and returns its path
	SignFile(path string) (string, error)
}

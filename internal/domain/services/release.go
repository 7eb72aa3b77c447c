// Package services holds the release rules: preconditions, artifact naming,
// storage layout and release validation.
package services

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
)

// ReleaseStatus represents the readiness status of a build list for upload
type ReleaseStatus string

// Release validation statuses
const (
	StatusReady             ReleaseStatus = "ready"
	StatusNoArtifacts       ReleaseStatus = "no_artifacts"
	StatusMissingArtifacts  ReleaseStatus = "missing_artifacts"
	StatusUnexpectedFiles   ReleaseStatus = "unexpected_files"
	StatusMissingChecksums  ReleaseStatus = "missing_checksums"
	StatusOutOfOrderEntries ReleaseStatus = "out_of_order"
)

// ReleaseValidation contains the validation result for a build list
type ReleaseValidation struct {
	Status     ReleaseStatus
	Expected   []string
	Available  []string
	Missing    []string
	Unexpected []string
}

// IsReady returns true if the build list can be published
func (rv *ReleaseValidation) IsReady() bool {
	return rv.Status == StatusReady
}

// ErrorMessage returns a human-readable error message if not ready
func (rv *ReleaseValidation) ErrorMessage() string {
	switch rv.Status {
	case StatusReady:
		return ""
	case StatusNoArtifacts:
		return fmt.Sprintf("No artifacts built (expected: %d)", len(rv.Expected))
	case StatusMissingArtifacts:
		return fmt.Sprintf("Missing artifacts: %s", strings.Join(rv.Missing, ", "))
	case StatusUnexpectedFiles:
		return fmt.Sprintf("Unexpected artifacts: %s", strings.Join(rv.Unexpected, ", "))
	case StatusMissingChecksums:
		return "Checksum manifest is not the last recorded artifact"
	case StatusOutOfOrderEntries:
		return fmt.Sprintf("Artifacts recorded out of build order: %s", strings.Join(rv.Available, ", "))
	default:
		return "Unknown status"
	}
}

// ReleaseService handles release naming and validation logic
type ReleaseService struct{}

// NewReleaseService creates a new release service
func NewReleaseService() *ReleaseService {
	return &ReleaseService{}
}

// EggName returns the binary distribution filename for an interpreter version
func (s *ReleaseService) EggName(project *entities.Project, version entities.VersionInfo, pyver string) string {
	return fmt.Sprintf("%s-%s-py%s.egg", project.Name, version.PackageVersion(), pyver)
}

// SdistName returns the source distribution filename
func (s *ReleaseService) SdistName(project *entities.Project, version entities.VersionInfo) string {
	return fmt.Sprintf("%s-%s.tar.gz", project.Name, version.PackageVersion())
}

// ManifestName returns the checksum manifest filename
func (s *ReleaseService) ManifestName(project *entities.Project, version entities.VersionInfo) string {
	return fmt.Sprintf("%s-%s.sha256sum", project.Name, version.PackageVersion())
}

// DistPath joins a filename onto the project's build output directory
func (s *ReleaseService) DistPath(project *entities.Project, name string) string {
	return filepath.Join(project.DistDir, name)
}

// ExpectedArtifacts returns the built artifact names in build order:
// one egg per interpreter, then the source tarball
func (s *ReleaseService) ExpectedArtifacts(project *entities.Project, version entities.VersionInfo) []string {
	names := make([]string, 0, len(project.PythonVersions)+1)
	for _, pyver := range project.PythonVersions {
		names = append(names, s.EggName(project, version, pyver))
	}
	return append(names, s.SdistName(project, version))
}

// StoragePrefix returns the version-scoped key prefix, e.g. "ReviewBoard/1.2/"
func (s *ReleaseService) StoragePrefix(project *entities.Project, version entities.VersionInfo) string {
	return project.Name + "/" + version.SeriesVersion() + "/"
}

// ParentPrefix returns the product-level prefix above a version prefix
func (s *ReleaseService) ParentPrefix(prefix string) string {
	parent := path.Dir(strings.TrimSuffix(prefix, "/"))
	if parent == "." || parent == "/" {
		return ""
	}
	return parent + "/"
}

// StorageKey returns the object key for an artifact under prefix
func (s *ReleaseService) StorageKey(prefix string, artifact entities.Artifact) string {
	return prefix + artifact.Name()
}

// VersionSource reads the version marker of a project tree
type VersionSource interface {
	ReadVersion(root string, project *entities.Project) (entities.VersionInfo, error)
}

// CheckPreconditions verifies that root is the project root and that its
// version marker flags a release build. It returns the version read.
func (s *ReleaseService) CheckPreconditions(root string, project *entities.Project, versions VersionSource) (entities.VersionInfo, error) {
	entry := filepath.Join(root, project.EntryPoint)
	if _, err := os.Stat(entry); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entities.VersionInfo{}, fmt.Errorf("%w: %s not found in %s", ErrNotProjectRoot, project.EntryPoint, root)
		}
		return entities.VersionInfo{}, fmt.Errorf("failed to stat %s: %w", entry, err)
	}

	version, err := versions.ReadVersion(root, project)
	if err != nil {
		return entities.VersionInfo{}, err
	}

	if err := s.CheckReleasable(version); err != nil {
		return version, err
	}
	return version, nil
}

// CheckReleasable fails unless the version marker flags a release build
func (s *ReleaseService) CheckReleasable(version entities.VersionInfo) error {
	if !version.IsRelease {
		return fmt.Errorf("%w: %s", ErrNotRelease, version.PackageVersion())
	}
	return nil
}

// ValidateRelease checks that the build list holds exactly the expected
// artifacts in build order, followed by the checksum manifest and any
// signature of it
func (s *ReleaseService) ValidateRelease(project *entities.Project, version entities.VersionInfo, list *entities.BuildList) *ReleaseValidation {
	validation := &ReleaseValidation{
		Expected:  s.ExpectedArtifacts(project, version),
		Available: list.Names(),
	}

	manifest := s.ManifestName(project, version)
	extras := map[string]bool{
		manifest:          true,
		manifest + ".asc": true,
	}

	built := make([]string, 0, len(validation.Available))
	for _, name := range validation.Available {
		if !extras[name] {
			built = append(built, name)
		}
	}

	validation.Missing = difference(validation.Expected, built)
	validation.Unexpected = difference(built, validation.Expected)

	switch {
	case len(validation.Available) == 0:
		validation.Status = StatusNoArtifacts
	case len(validation.Missing) > 0:
		validation.Status = StatusMissingArtifacts
	case len(validation.Unexpected) > 0:
		validation.Status = StatusUnexpectedFiles
	case !sameOrder(validation.Expected, validation.Available):
		validation.Status = StatusOutOfOrderEntries
	case len(validation.Available) < len(validation.Expected)+1 ||
		validation.Available[len(validation.Expected)] != manifest:
		validation.Status = StatusMissingChecksums
	default:
		validation.Status = StatusReady
	}

	return validation
}

// difference returns entries of a that are not in b, keeping a's order
func difference(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, name := range b {
		set[name] = true
	}

	var out []string
	for _, name := range a {
		if !set[name] {
			out = append(out, name)
		}
	}
	return out
}

// sameOrder reports whether available starts with expected
func sameOrder(expected, available []string) bool {
	if len(available) < len(expected) {
		return false
	}
	for i := range expected {
		if available[i] != expected[i] {
			return false
		}
	}
	return true
}

package gateways

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
	"github.com/reviewboard/rbrelease/internal/domain/services"
)

// ArtifactFinder locates release artifacts that are already on disk
type ArtifactFinder struct {
	service *services.ReleaseService
}

// NewArtifactFinder creates a new artifact finder
func NewArtifactFinder() *ArtifactFinder {
	return &ArtifactFinder{service: services.NewReleaseService()}
}

// MimeTypeFor returns the upload MIME type for an artifact file name
func MimeTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".egg"):
		return entities.MimeTypeEgg
	case strings.HasSuffix(name, ".tar.gz"):
		return entities.MimeTypeTarball
	case strings.HasSuffix(name, ".asc"):
		return entities.MimeTypeSignature
	default:
		return entities.MimeTypeText
	}
}

// FindDist collects the files in distDir that belong to version, in release
// order: expected artifacts, the manifest, its signature, then any other
// file named for this exact package version, sorted by name
func (f *ArtifactFinder) FindDist(distDir string, project *entities.Project, version entities.VersionInfo) (*entities.BuildList, error) {
	entries, err := os.ReadDir(distDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("dist directory does not exist: %s", distDir)
		}
		return nil, fmt.Errorf("failed to read dist directory: %w", err)
	}

	prefix := fmt.Sprintf("%s-%s", project.Name, version.PackageVersion())
	present := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() || !belongsToVersion(entry.Name(), prefix) {
			continue
		}
		present[entry.Name()] = true
	}

	manifest := f.service.ManifestName(project, version)
	ordered := append(f.service.ExpectedArtifacts(project, version), manifest, manifest+".asc")

	list := entities.NewBuildList()
	for _, name := range ordered {
		if present[name] {
			list.Add(filepath.Join(distDir, name), MimeTypeFor(name))
			delete(present, name)
		}
	}

	extras := make([]string, 0, len(present))
	for name := range present {
		extras = append(extras, name)
	}
	sort.Strings(extras)
	for _, name := range extras {
		list.Add(filepath.Join(distDir, name), MimeTypeFor(name))
	}

	return list, nil
}

// belongsToVersion reports whether name starts with prefix followed by a "-"
// or a "." that does not continue the version number, so 1.2 does not claim
// 1.2.1 or 1.2rc1 files
func belongsToVersion(name, prefix string) bool {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || len(rest) < 2 {
		return false
	}
	switch rest[0] {
	case '-':
		return true
	case '.':
		return rest[1] < '0' || rest[1] > '9'
	default:
		return false
	}
}

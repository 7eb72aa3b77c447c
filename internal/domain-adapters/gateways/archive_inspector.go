package gateways

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
)

// ArchiveInspector opens built distributions and checks their layout
type ArchiveInspector struct{}

// NewArchiveInspector creates a new archive inspector
func NewArchiveInspector() *ArchiveInspector {
	return &ArchiveInspector{}
}

// InspectionProblem is one defect found in an artifact
type InspectionProblem struct {
	Artifact string
	Problem  string
}

func (p InspectionProblem) String() string {
	return p.Artifact + ": " + p.Problem
}

// Inspect checks every egg and source tarball in list. Other artifacts are
// skipped.
func (i *ArchiveInspector) Inspect(list *entities.BuildList, project *entities.Project, version entities.VersionInfo) []InspectionProblem {
	root := fmt.Sprintf("%s-%s/", project.Name, version.PackageVersion())

	var problems []InspectionProblem
	for _, artifact := range list.Artifacts() {
		var err error
		switch artifact.MimeType {
		case entities.MimeTypeEgg:
			err = i.InspectEgg(artifact.Path)
		case entities.MimeTypeTarball:
			err = i.InspectSdist(artifact.Path, root, project.EntryPoint)
		default:
			continue
		}
		if err != nil {
			problems = append(problems, InspectionProblem{Artifact: artifact.Name(), Problem: err.Error()})
		}
	}
	return problems
}

// InspectSdist checks that a source tarball is readable, keeps every entry
// under root and ships PKG-INFO and the build entry point
func (i *ArchiveInspector) InspectSdist(tarPath, root, entryPoint string) error {
	//nolint:gosec // G304: tarPath is a built artifact
	file, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("failed to open tar.gz: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	//nolint:errcheck // Defer close on gzip reader
	defer gzr.Close()

	required := map[string]bool{
		root + "PKG-INFO": false,
		root + entryPoint: false,
	}

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		name := path.Clean(header.Name)
		if header.Typeflag == tar.TypeDir {
			name += "/"
		}
		if !strings.HasPrefix(name, root) && name+"/" != root {
			return fmt.Errorf("entry outside %s: %s", root, header.Name)
		}
		if _, ok := required[name]; ok {
			required[name] = true
		}
	}

	for name, found := range required {
		if !found {
			return fmt.Errorf("missing %s", name)
		}
	}
	return nil
}

// InspectEgg checks that an egg is a readable zip carrying EGG-INFO/PKG-INFO
func (i *ArchiveInspector) InspectEgg(eggPath string) error {
	zr, err := zip.OpenReader(eggPath)
	if err != nil {
		return fmt.Errorf("failed to open egg: %w", err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == "EGG-INFO/PKG-INFO" {
			return nil
		}
	}
	return fmt.Errorf("missing EGG-INFO/PKG-INFO")
}

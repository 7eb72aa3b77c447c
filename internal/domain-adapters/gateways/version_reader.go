package gateways

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
)

// versionTuplePattern matches the in-tree marker, e.g.
//
//	VERSION = (1, 7, 3, 0, 'final', 0, True)
var versionTuplePattern = regexp.MustCompile(`(?m)^VERSION\s*=\s*\(([^)]*)\)`)

// VersionReader reads the version marker from a project tree
type VersionReader struct{}

// NewVersionReader creates a new version reader
func NewVersionReader() *VersionReader {
	return &VersionReader{}
}

// ReadVersion reads the marker from project.VersionFile under root
func (vr *VersionReader) ReadVersion(root string, project *entities.Project) (entities.VersionInfo, error) {
	path := filepath.Join(root, project.VersionFile)
	//nolint:gosec // G304: version file path comes from the project definition
	data, err := os.ReadFile(path)
	if err != nil {
		return entities.VersionInfo{}, fmt.Errorf("failed to read version file %s: %w", path, err)
	}

	version, err := vr.ParseVersion(string(data))
	if err != nil {
		return entities.VersionInfo{}, fmt.Errorf("%s: %w", path, err)
	}
	return version, nil
}

// ParseVersion extracts the VERSION tuple from source text
func (vr *VersionReader) ParseVersion(source string) (entities.VersionInfo, error) {
	match := versionTuplePattern.FindStringSubmatch(source)
	if match == nil {
		return entities.VersionInfo{}, fmt.Errorf("no VERSION tuple found")
	}

	parts := splitTuple(match[1])
	if len(parts) != 7 {
		return entities.VersionInfo{}, fmt.Errorf("VERSION tuple has %d fields, want 7", len(parts))
	}

	var numbers [4]int
	for i := 0; i < 4; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return entities.VersionInfo{}, fmt.Errorf("VERSION field %d is not a number: %q", i, parts[i])
		}
		numbers[i] = n
	}

	releaseType, err := unquote(parts[4])
	if err != nil {
		return entities.VersionInfo{}, fmt.Errorf("VERSION release type: %w", err)
	}
	switch releaseType {
	case entities.ReleaseTypeAlpha, entities.ReleaseTypeBeta, entities.ReleaseTypeRC, entities.ReleaseTypeFinal:
	default:
		return entities.VersionInfo{}, fmt.Errorf("unknown release type %q", releaseType)
	}

	releaseNum, err := strconv.Atoi(parts[5])
	if err != nil {
		return entities.VersionInfo{}, fmt.Errorf("VERSION release number is not a number: %q", parts[5])
	}

	var isRelease bool
	switch parts[6] {
	case "True":
		isRelease = true
	case "False":
		isRelease = false
	default:
		return entities.VersionInfo{}, fmt.Errorf("VERSION release flag must be True or False, got %q", parts[6])
	}

	return entities.VersionInfo{
		Major:       numbers[0],
		Minor:       numbers[1],
		Micro:       numbers[2],
		Patch:       numbers[3],
		ReleaseType: releaseType,
		ReleaseNum:  releaseNum,
		IsRelease:   isRelease,
	}, nil
}

// splitTuple splits tuple contents on commas, dropping a trailing empty field
func splitTuple(body string) []string {
	raw := strings.Split(body, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts = append(parts, p)
	}
	return parts
}

func unquote(s string) (string, error) {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], nil
	}
	return "", fmt.Errorf("expected quoted string, got %s", s)
}

// Package yaml provides YAML-based project definition parsing and repository implementations.
package yaml

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
)

// yamlProject represents the raw YAML structure of release.yml
type yamlProject struct {
	Name           string      `yaml:"name"`
	Product        string      `yaml:"product"`
	PythonVersions []string    `yaml:"python_versions"`
	VersionFile    string      `yaml:"version_file"`
	EntryPoint     string      `yaml:"entry_point"`
	SettingsFile   string      `yaml:"settings_file"`
	DistDir        string      `yaml:"dist_dir"`
	Storage        yamlStorage `yaml:"storage"`
	API            yamlAPI     `yaml:"api"`
}

type yamlStorage struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
}

type yamlAPI struct {
	BaseURL string `yaml:"base_url"`
}

// ProjectParser parses YAML project definitions. Fields left out of the
// document keep the values of the default Review Board definition.
type ProjectParser struct{}

// NewProjectParser creates a new YAML parser
func NewProjectParser() *ProjectParser {
	return &ProjectParser{}
}

// ParseFile parses a YAML project file into a Project entity
func (p *ProjectParser) ParseFile(filePath string) (*entities.Project, error) {
	//nolint:gosec // G304: filePath is the project definition in the release tree
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes into a Project entity
func (p *ProjectParser) Parse(data []byte) (*entities.Project, error) {
	var raw yamlProject
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	project := entities.DefaultProject()
	overlay(&project.Name, raw.Name)
	overlay(&project.Product, raw.Product)
	overlay(&project.VersionFile, raw.VersionFile)
	overlay(&project.EntryPoint, raw.EntryPoint)
	overlay(&project.SettingsFile, raw.SettingsFile)
	overlay(&project.DistDir, raw.DistDir)
	overlay(&project.Storage.Bucket, raw.Storage.Bucket)
	overlay(&project.Storage.Region, raw.Storage.Region)
	overlay(&project.API.BaseURL, raw.API.BaseURL)
	if len(raw.PythonVersions) > 0 {
		project.PythonVersions = raw.PythonVersions
	}

	if !strings.HasSuffix(project.API.BaseURL, "/") {
		project.API.BaseURL += "/"
	}

	if err := validateProject(project); err != nil {
		return nil, err
	}

	return project, nil
}

func overlay(dst *string, value string) {
	if strings.TrimSpace(value) != "" {
		*dst = strings.TrimSpace(value)
	}
}

func validateProject(project *entities.Project) error {
	for _, pyver := range project.PythonVersions {
		if strings.TrimSpace(pyver) == "" {
			return fmt.Errorf("python_versions must not contain empty entries")
		}
		if strings.ContainsAny(pyver, " /\\") {
			return fmt.Errorf("invalid python version %q", pyver)
		}
	}
	if strings.ContainsAny(project.Name, " /") {
		return fmt.Errorf("invalid project name %q", project.Name)
	}
	if !strings.HasPrefix(project.API.BaseURL, "http://") && !strings.HasPrefix(project.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", project.API.BaseURL)
	}
	return nil
}

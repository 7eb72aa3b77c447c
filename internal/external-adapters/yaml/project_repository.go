package yaml

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
)

// DefaultProjectFile is the definition file looked up at the project root
const DefaultProjectFile = "release.yml"

// ProjectRepository implements repositories.ProjectRepository using a YAML file
type ProjectRepository struct {
	fileName string
	parser   *ProjectParser
}

// NewProjectRepository creates a repository reading fileName relative to the
// project root. An absolute fileName is used as is.
func NewProjectRepository(fileName string) *ProjectRepository {
	if fileName == "" {
		fileName = DefaultProjectFile
	}
	return &ProjectRepository{
		fileName: fileName,
		parser:   NewProjectParser(),
	}
}

// GetProject loads the definition for the project at root, falling back to
// the default definition when no file exists
func (r *ProjectRepository) GetProject(root string) (*entities.Project, error) {
	filePath := r.fileName
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(root, filePath)
	}

	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entities.DefaultProject(), nil
		}
		return nil, fmt.Errorf("stat project definition: %w", err)
	}

	return r.parser.ParseFile(filePath)
}

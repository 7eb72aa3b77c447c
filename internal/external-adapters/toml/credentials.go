// Package toml loads operator credentials from the rc file.
//
// The rc file holds two assignments:
//
//	USERNAME = '<username>'
//	PASSWORD = '<password>'
//
// which is valid TOML, so it is decoded with go-toml.
package toml

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
	"github.com/reviewboard/rbrelease/internal/domain/services"
)

// DefaultFileName is the rc file looked up in the operator's home directory
const DefaultFileName = ".rbwebsiterc"

type rcFile struct {
	Username string `toml:"USERNAME"`
	Password string `toml:"PASSWORD"`
}

// CredentialsLoader implements repositories.CredentialsRepository
type CredentialsLoader struct {
	path string
}

// NewCredentialsLoader creates a loader for path
func NewCredentialsLoader(path string) *CredentialsLoader {
	return &CredentialsLoader{path: path}
}

// DefaultPath returns ~/.rbwebsiterc
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultFileName), nil
}

// Path returns the file the loader reads
func (l *CredentialsLoader) Path() string {
	return l.path
}

// LoadCredentials reads and validates the rc file. Errors wrap
// services.ErrConfigNotFound or services.ErrConfigInvalid.
func (l *CredentialsLoader) LoadCredentials() (entities.Credentials, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entities.Credentials{}, fmt.Errorf("%w: %s", services.ErrConfigNotFound, l.path)
		}
		return entities.Credentials{}, fmt.Errorf("read config %s: %w", l.path, err)
	}

	var rc rcFile
	if err := toml.Unmarshal(data, &rc); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return entities.Credentials{}, fmt.Errorf("%w: syntax error in config file: %s\nLine %d offset %d",
				services.ErrConfigInvalid, l.path, row, col)
		}
		return entities.Credentials{}, fmt.Errorf("%w: %s: %v", services.ErrConfigInvalid, l.path, err)
	}

	creds := entities.Credentials{Username: rc.Username, Password: rc.Password}
	if !creds.Complete() {
		return entities.Credentials{}, fmt.Errorf("%w: %s must define USERNAME and PASSWORD",
			services.ErrConfigInvalid, l.path)
	}

	return creds, nil
}

// Guidance is printed when the rc file is missing or unusable
func Guidance(path string) string {
	return fmt.Sprintf("A %s file must exist in the form of:\n\n"+
		"USERNAME = '<username>'\n"+
		"PASSWORD = '<password>'\n", path)
}

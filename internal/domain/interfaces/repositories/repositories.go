// Package repositories defines interfaces for data access layers.
package repositories

import (
	"time"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
)

// ProjectRepository defines the interface for loading a project's release definition
type ProjectRepository interface {
	// GetProject loads the release definition for the project rooted at root.
	// A project without a definition file gets the default definition.
	GetProject(root string) (*entities.Project, error)
}

// CredentialsRepository defines the interface for loading operator credentials
type CredentialsRepository interface {
	// LoadCredentials reads the operator's API credentials
	LoadCredentials() (entities.Credentials, error)
}

// ReleaseJournal records release runs and the outcome of each step
type ReleaseJournal interface {
	// StartRun records a run that began at startedAt
	StartRun(runID, version string, startedAt time.Time) error

	// RecordStep records the outcome of a single pipeline step
	RecordStep(runID, step, status, message string) error

	// FinishRun records the final status of a run and when it ended
	FinishRun(runID, status string, finishedAt time.Time) error
}

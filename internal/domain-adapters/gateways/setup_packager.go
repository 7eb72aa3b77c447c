package gateways

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
	"github.com/reviewboard/rbrelease/internal/domain/services"
)

// SetupPackager builds distributions by driving the project's setup.py with
// each supported interpreter
type SetupPackager struct {
	executor *CommandExecutor
	release  *services.ReleaseService
}

// NewSetupPackager creates a new setup.py packager
func NewSetupPackager(executor *CommandExecutor) *SetupPackager {
	return &SetupPackager{
		executor: executor,
		release:  services.NewReleaseService(),
	}
}

// PythonCommand returns the interpreter executable for a version
func PythonCommand(pyver string) string {
	return "python" + pyver
}

// runSetup runs "python{pyver} ./setup.py release {target}" in dir
func (p *SetupPackager) runSetup(ctx context.Context, dir, pyver, target string) error {
	_, err := p.executor.Run(ctx, dir, PythonCommand(pyver), "./setup.py", "release", target)
	return err
}

// BuildArtifacts builds one egg per interpreter version and then the source
// tarball with the newest interpreter. The first failing build stops the run;
// artifacts are recorded in build order with absolute paths.
func (p *SetupPackager) BuildArtifacts(
	ctx context.Context,
	dir string,
	project *entities.Project,
	version entities.VersionInfo,
) (*entities.BuildList, error) {
	if len(project.PythonVersions) == 0 {
		return nil, fmt.Errorf("project %s has no python versions configured", project.Name)
	}

	list := entities.NewBuildList()
	distDir := filepath.Join(dir, project.DistDir)

	for _, pyver := range project.PythonVersions {
		if err := p.runSetup(ctx, dir, pyver, "bdist_egg"); err != nil {
			return list, fmt.Errorf("bdist_egg for python %s failed: %w", pyver, err)
		}
		list.Add(filepath.Join(distDir, p.release.EggName(project, version, pyver)), entities.MimeTypeEgg)
	}

	if err := p.runSetup(ctx, dir, project.LatestPythonVersion(), "sdist"); err != nil {
		return list, fmt.Errorf("sdist failed: %w", err)
	}
	list.Add(filepath.Join(distDir, p.release.SdistName(project, version)), entities.MimeTypeTarball)

	return list, nil
}

// Register registers the package with the packaging index
func (p *SetupPackager) Register(ctx context.Context, dir string, project *entities.Project) error {
	if err := p.runSetup(ctx, dir, project.LatestPythonVersion(), "register"); err != nil {
		return fmt.Errorf("register failed: %w", err)
	}
	return nil
}

// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
	"github.com/reviewboard/rbrelease/internal/domain/interfaces"
	"github.com/reviewboard/rbrelease/internal/domain/interfaces/gateways"
	"github.com/reviewboard/rbrelease/internal/domain/interfaces/repositories"
	"github.com/reviewboard/rbrelease/internal/domain/services"
)

// KeepClonePolicy decides whether the temporary clone survives the run
type KeepClonePolicy string

// Clone retention policies
const (
	KeepCloneOnFailure KeepClonePolicy = "on-failure"
	KeepCloneAlways    KeepClonePolicy = "always"
	KeepCloneNever     KeepClonePolicy = "never"
)

// ParseKeepClonePolicy parses a --keep-clone value
func ParseKeepClonePolicy(value string) (KeepClonePolicy, error) {
	switch policy := KeepClonePolicy(value); policy {
	case KeepCloneOnFailure, KeepCloneAlways, KeepCloneNever:
		return policy, nil
	case "":
		return KeepCloneOnFailure, nil
	default:
		return "", fmt.Errorf("invalid keep-clone policy %q (want on-failure, always or never)", value)
	}
}

// keep reports whether a clone is retained given the run outcome
func (p KeepClonePolicy) keep(failed bool) bool {
	switch p {
	case KeepCloneAlways:
		return true
	case KeepCloneNever:
		return false
	default:
		return failed
	}
}

// SettingsGenerator writes the local settings file into a tree
type SettingsGenerator interface {
	Write(dir, name string) (string, error)
}

// ManifestBuilder writes the checksum manifest for a build list and appends it
type ManifestBuilder interface {
	BuildManifest(list *entities.BuildList, manifestPath string) (entities.Artifact, error)
	CalculateChecksum(filePath string) (string, error)
}

// ReleaseLock guards against concurrent releases
type ReleaseLock interface {
	Acquire() error
	Release() error
}

// LockFactory returns the lock guarding releases of a project
type LockFactory func(project *entities.Project) ReleaseLock

// StoreFactory opens the object store a project publishes to
type StoreFactory func(ctx context.Context, project *entities.Project) (gateways.ObjectStore, error)

// RegistryFactory creates a registration client authenticated with creds
type RegistryFactory func(project *entities.Project, creds entities.Credentials) gateways.ReleaseRegistry

// ReleaseDependencies are the collaborators of a release run. Signer, Lock
// and Journal are optional.
type ReleaseDependencies struct {
	Credentials repositories.CredentialsRepository
	Projects    repositories.ProjectRepository
	Versions    services.VersionSource
	VCS         gateways.VCSGateway
	Settings    SettingsGenerator
	Packager    gateways.PackagingGateway
	Checksums   ManifestBuilder
	Signer      gateways.ManifestSigner
	Store       StoreFactory
	Registry    RegistryFactory
	Lock        LockFactory
	Journal     repositories.ReleaseJournal
	Logger      interfaces.Logger
}

// ReleaseOrchestratorConfig holds configuration for the orchestrator
type ReleaseOrchestratorConfig struct {
	SourceDir string // project root; defaults to the working directory
	KeepClone KeepClonePolicy
	DryRun    bool // stop after checksum and signing
}

// ReleaseOrchestrator runs the release pipeline
type ReleaseOrchestrator struct {
	deps     ReleaseDependencies
	service  *services.ReleaseService
	logger   interfaces.Logger
	config   ReleaseOrchestratorConfig
	newRunID func() string
}

// NewReleaseOrchestrator creates a new release orchestrator
func NewReleaseOrchestrator(deps ReleaseDependencies, config ReleaseOrchestratorConfig) *ReleaseOrchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if config.KeepClone == "" {
		config.KeepClone = KeepCloneOnFailure
	}

	return &ReleaseOrchestrator{
		deps:     deps,
		service:  services.NewReleaseService(),
		logger:   logger,
		config:   config,
		newRunID: uuid.NewString,
	}
}

// ArtifactSummary describes one artifact of a release as it was published
type ArtifactSummary struct {
	Name     string
	MimeType string
	Size     int64
	SHA256   string
	Key      string
}

// ReleaseResult contains the result of a release run
type ReleaseResult struct {
	RunID         string
	StartedAt     time.Time
	Project       *entities.Project
	Version       entities.VersionInfo
	CloneDir      string
	CloneKept     bool
	Artifacts     []entities.Artifact
	Summary       []ArtifactSummary
	Uploaded      []string
	Tag           string
	Revision      string
	Registration  *gateways.RegistrationResult
	Steps         []services.StepResult
	DryRun        bool
	TotalDuration time.Duration
	Success       bool
	Error         error
}

// Status returns the overall outcome: fatal, warning or success
func (r *ReleaseResult) Status() services.StepStatus {
	if !r.Success {
		return services.StepFatal
	}
	if len(r.Warnings()) > 0 {
		return services.StepWarning
	}
	return services.StepSuccess
}

// Warnings returns the steps that completed with a warning
func (r *ReleaseResult) Warnings() []services.StepResult {
	var warnings []services.StepResult
	for _, step := range r.Steps {
		if step.Status == services.StepWarning {
			warnings = append(warnings, step)
		}
	}
	return warnings
}

// Step returns the recorded result of a named step
func (r *ReleaseResult) Step(name string) (services.StepResult, bool) {
	for _, step := range r.Steps {
		if step.Step == name {
			return step, true
		}
	}
	return services.StepResult{}, false
}

// GetReleaseSummary returns a human-readable summary of the run
func (r *ReleaseResult) GetReleaseSummary() string {
	if !r.Success {
		summary := fmt.Sprintf("Release failed: %v", r.Error)
		if r.CloneKept && r.CloneDir != "" {
			summary += fmt.Sprintf("\nClone kept at %s", r.CloneDir)
		}
		return summary
	}

	verb := "Released"
	if r.DryRun {
		verb = "Built (dry run)"
	}
	summary := fmt.Sprintf("%s %s %s\nArtifacts: %d\nTotal: %v",
		verb, r.Project.Name, r.Version.PackageVersion(), len(r.Artifacts), r.TotalDuration)
	if r.Tag != "" {
		summary += fmt.Sprintf("\nTag: %s (%s)", r.Tag, r.Revision)
	}
	for _, warning := range r.Warnings() {
		summary += fmt.Sprintf("\nWarning [%s]: %s", warning.Step, warning.Summary())
	}
	if r.CloneKept && r.CloneDir != "" {
		summary += fmt.Sprintf("\nClone kept at %s", r.CloneDir)
	}
	return summary
}

// release carries the state threaded between steps of one run
type release struct {
	result      *ReleaseResult
	sourceDir   string
	credentials entities.Credentials
	list        *entities.BuildList
	lock        ReleaseLock
}

// Run executes the release pipeline. Steps run strictly in sequence and the
// first fatal step ends the run; cleanup always runs once a clone exists.
func (o *ReleaseOrchestrator) Run(ctx context.Context) (*ReleaseResult, error) {
	startTime := time.Now()
	rel := &release{
		result: &ReleaseResult{RunID: o.newRunID(), StartedAt: startTime, DryRun: o.config.DryRun},
	}
	result := rel.result

	err := o.run(ctx, rel)
	result.Error = err
	result.Success = err == nil

	if result.CloneDir != "" {
		o.cleanup(rel, err != nil)
	}

	result.TotalDuration = time.Since(startTime)
	o.journal(result)

	if err != nil {
		o.logger.Error("release failed", interfaces.F("run_id", result.RunID), interfaces.F("error", err.Error()))
		return result, err
	}
	o.logger.Info("release finished",
		interfaces.F("run_id", result.RunID),
		interfaces.F("status", string(result.Status())),
		interfaces.F("duration", result.TotalDuration.Round(time.Millisecond)))
	return result, nil
}

func (o *ReleaseOrchestrator) run(ctx context.Context, rel *release) error {
	result := rel.result
	defer o.releaseLock(rel)

	// Step 1: Load operator credentials
	if err := o.runStep(rel, services.StepLoadConfig, func(_ *services.StepResult) error {
		creds, err := o.deps.Credentials.LoadCredentials()
		if err != nil {
			return err
		}
		rel.credentials = creds
		return nil
	}); err != nil {
		return err
	}

	// Step 2: Project root, release marker and the release lock
	if err := o.runStep(rel, services.StepPreconditions, func(step *services.StepResult) error {
		if err := o.checkPreconditions(rel, step); err != nil {
			return err
		}
		if o.deps.Lock == nil {
			return nil
		}
		lock := o.deps.Lock(rel.result.Project)
		if err := lock.Acquire(); err != nil {
			return err
		}
		rel.lock = lock
		return nil
	}); err != nil {
		return err
	}

	project, version := result.Project, result.Version
	o.logger.Info("starting release",
		interfaces.F("run_id", result.RunID),
		interfaces.F("package", project.Name),
		interfaces.F("version", version.PackageVersion()))

	// Step 3: Clone the committed tree
	if err := o.runStep(rel, services.StepClone, func(step *services.StepResult) error {
		dir, err := o.deps.VCS.CloneTree(ctx, rel.sourceDir)
		result.CloneDir = dir
		step.Message = dir
		return err
	}); err != nil {
		return err
	}

	// Step 4: Local settings
	if err := o.runStep(rel, services.StepSettings, func(step *services.StepResult) error {
		path, err := o.deps.Settings.Write(result.CloneDir, project.SettingsFile)
		step.Message = path
		return err
	}); err != nil {
		return err
	}

	// Step 5: Build artifacts
	if err := o.runStep(rel, services.StepBuild, func(step *services.StepResult) error {
		list, err := o.deps.Packager.BuildArtifacts(ctx, result.CloneDir, project, version)
		if list != nil {
			rel.list = list
			result.Artifacts = list.Artifacts()
		}
		if err != nil {
			return err
		}
		step.Message = fmt.Sprintf("%d artifacts", list.Len())
		return nil
	}); err != nil {
		return err
	}

	// Step 6: Checksum manifest
	if err := o.runStep(rel, services.StepChecksum, func(step *services.StepResult) error {
		manifestPath := filepath.Join(result.CloneDir, o.service.DistPath(project, o.service.ManifestName(project, version)))
		manifest, err := o.deps.Checksums.BuildManifest(rel.list, manifestPath)
		if err != nil {
			return err
		}
		result.Artifacts = rel.list.Artifacts()
		step.Message = manifest.Name()
		return nil
	}); err != nil {
		return err
	}

	if err := o.sign(rel); err != nil {
		return err
	}

	if err := o.runStep(rel, services.StepValidate, func(_ *services.StepResult) error {
		validation := o.service.ValidateRelease(project, version, rel.list)
		if !validation.IsReady() {
			return fmt.Errorf("%w: %s", services.ErrNotReady, validation.ErrorMessage())
		}
		return o.describeArtifacts(rel)
	}); err != nil {
		return err
	}

	if o.config.DryRun {
		for _, name := range []string{services.StepUpload, services.StepTag, services.StepRegister} {
			o.recordStep(rel, services.StepResult{Step: name, Status: services.StepSkipped, Message: "dry run"})
		}
		return nil
	}

	// Step 7: Upload
	if err := o.runStep(rel, services.StepUpload, func(step *services.StepResult) error {
		return o.upload(ctx, rel, step)
	}); err != nil {
		return err
	}

	// Step 8: Tag the release commit
	if err := o.runStep(rel, services.StepTag, func(step *services.StepResult) error {
		revision, err := o.deps.VCS.Head(ctx, result.CloneDir)
		if err != nil {
			return err
		}
		tag := version.TagName()
		if err := o.deps.VCS.Tag(ctx, rel.sourceDir, tag, revision); err != nil {
			return err
		}
		result.Tag = tag
		step.Message = tag
		return nil
	}); err != nil {
		return err
	}

	// Step 9: Register the release
	return o.runStep(rel, services.StepRegister, func(step *services.StepResult) error {
		return o.register(ctx, rel, step)
	})
}

func (o *ReleaseOrchestrator) checkPreconditions(rel *release, step *services.StepResult) error {
	sourceDir := o.config.SourceDir
	if sourceDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		sourceDir = wd
	}
	rel.sourceDir = sourceDir

	project, err := o.deps.Projects.GetProject(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to load project definition: %w", err)
	}
	rel.result.Project = project

	version, err := o.service.CheckPreconditions(sourceDir, project, o.deps.Versions)
	rel.result.Version = version
	if err != nil {
		return err
	}
	step.Message = version.PackageVersion()
	return nil
}

func (o *ReleaseOrchestrator) releaseLock(rel *release) {
	if rel.lock == nil {
		return
	}
	if err := rel.lock.Release(); err != nil {
		o.logger.Warn("failed to release lock", interfaces.F("error", err.Error()))
	}
	rel.lock = nil
}

func (o *ReleaseOrchestrator) sign(rel *release) error {
	if o.deps.Signer == nil {
		o.recordStep(rel, services.StepResult{Step: services.StepSign, Status: services.StepSkipped, Message: "no signing key"})
		return nil
	}

	return o.runStep(rel, services.StepSign, func(step *services.StepResult) error {
		artifacts := rel.list.Artifacts()
		manifest := artifacts[len(artifacts)-1]
		sigPath, err := o.deps.Signer.SignFile(manifest.Path)
		if err != nil {
			return fmt.Errorf("failed to sign %s: %w", manifest.Name(), err)
		}
		rel.list.Add(sigPath, entities.MimeTypeSignature)
		rel.result.Artifacts = rel.list.Artifacts()
		step.Message = filepath.Base(sigPath)
		return nil
	})
}

// describeArtifacts records size, digest and destination of every artifact
// while the clone still exists
func (o *ReleaseOrchestrator) describeArtifacts(rel *release) error {
	result := rel.result
	prefix := o.service.StoragePrefix(result.Project, result.Version)

	result.Summary = result.Summary[:0]
	for _, artifact := range rel.list.Artifacts() {
		info, err := os.Stat(artifact.Path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", artifact.Name(), err)
		}
		digest, err := o.deps.Checksums.CalculateChecksum(artifact.Path)
		if err != nil {
			return err
		}
		result.Summary = append(result.Summary, ArtifactSummary{
			Name:     artifact.Name(),
			MimeType: artifact.MimeType,
			Size:     info.Size(),
			SHA256:   digest,
			Key:      o.service.StorageKey(prefix, artifact),
		})
	}
	return nil
}

func (o *ReleaseOrchestrator) upload(ctx context.Context, rel *release, step *services.StepResult) error {
	result := rel.result
	store, err := o.deps.Store(ctx, result.Project)
	if err != nil {
		return fmt.Errorf("failed to open object store: %w", err)
	}

	prefix := o.service.StoragePrefix(result.Project, result.Version)
	for _, artifact := range rel.list.Artifacts() {
		key := o.service.StorageKey(prefix, artifact)
		o.logger.Info("uploading", interfaces.F("file", artifact.Name()), interfaces.F("key", key))
		if err := store.Upload(ctx, artifact.Path, key, artifact.MimeType); err != nil {
			return err
		}
		result.Uploaded = append(result.Uploaded, key)
	}

	if err := store.UploadDirectoryIndex(ctx, prefix); err != nil {
		return err
	}
	// The version directory may be new, so the product index is rebuilt too.
	if err := store.UploadDirectoryIndex(ctx, o.service.ParentPrefix(prefix)); err != nil {
		return err
	}

	step.Message = fmt.Sprintf("%d files to %s", len(result.Uploaded), prefix)
	return nil
}

func (o *ReleaseOrchestrator) register(ctx context.Context, rel *release, step *services.StepResult) error {
	result := rel.result
	if result.Version.IsFinal() {
		if err := o.deps.Packager.Register(ctx, result.CloneDir, result.Project); err != nil {
			return err
		}
	}

	revision, err := o.deps.VCS.RevParse(ctx, rel.sourceDir, result.Tag)
	if err != nil {
		return err
	}
	result.Revision = revision

	o.logger.Info("posting release", interfaces.F("url", result.Project.ReleasesURL()))
	registry := o.deps.Registry(result.Project, rel.credentials)
	response, err := registry.RegisterRelease(ctx, entities.ReleaseMetadata{
		Version:     result.Version,
		SCMRevision: revision,
	})
	if err != nil {
		step.Status = services.StepWarning
		step.Err = err
		o.logger.Warn("error registering release", interfaces.F("error", err.Error()))
		return nil
	}

	result.Registration = response
	if !response.OK() {
		step.Status = services.StepWarning
		step.Message = fmt.Sprintf("HTTP %d: %s", response.StatusCode, strings.TrimSpace(response.Body))
		o.logger.Warn("error registering release",
			interfaces.F("status", response.StatusCode),
			interfaces.F("body", strings.TrimSpace(response.Body)))
		return nil
	}

	step.Message = fmt.Sprintf("HTTP %d", response.StatusCode)
	return nil
}

// cleanup removes the temporary clone unless the keep-clone policy retains it
func (o *ReleaseOrchestrator) cleanup(rel *release, failed bool) {
	result := rel.result
	start := time.Now()

	if o.config.KeepClone.keep(failed) {
		result.CloneKept = true
		o.logger.Info("keeping clone", interfaces.F("dir", result.CloneDir))
		o.recordStep(rel, services.StepResult{
			Step:     services.StepCleanup,
			Status:   services.StepSkipped,
			Message:  "kept " + result.CloneDir,
			Duration: time.Since(start),
		})
		return
	}

	step := services.StepResult{Step: services.StepCleanup, Status: services.StepSuccess, Message: result.CloneDir}
	if err := os.RemoveAll(result.CloneDir); err != nil {
		step.Status = services.StepWarning
		step.Err = fmt.Errorf("failed to remove clone: %w", err)
		result.CloneKept = true
		o.logger.Warn("failed to remove clone", interfaces.F("dir", result.CloneDir), interfaces.F("error", err.Error()))
	}
	step.Duration = time.Since(start)
	o.recordStep(rel, step)
}

// runStep times fn and records its outcome. An error from fn is fatal; fn
// may downgrade the step to a warning by setting its status.
func (o *ReleaseOrchestrator) runStep(rel *release, name string, fn func(step *services.StepResult) error) error {
	start := time.Now()
	o.logger.Debug("step started", interfaces.F("step", name))

	step := services.StepResult{Step: name, Status: services.StepSuccess}
	if err := fn(&step); err != nil {
		step.Status = services.StepFatal
		step.Err = err
	}
	step.Duration = time.Since(start)
	o.recordStep(rel, step)

	if step.Failed() {
		return fmt.Errorf("%s: %w", name, step.Err)
	}
	return nil
}

func (o *ReleaseOrchestrator) recordStep(rel *release, step services.StepResult) {
	rel.result.Steps = append(rel.result.Steps, step)
	o.logger.Debug("step finished",
		interfaces.F("step", step.Step),
		interfaces.F("status", string(step.Status)),
		interfaces.F("duration", step.Duration.Round(time.Millisecond)))
}

// journal writes the run and its steps to the release journal. Journal
// failures never change the outcome of the run.
func (o *ReleaseOrchestrator) journal(result *ReleaseResult) {
	if o.deps.Journal == nil {
		return
	}

	version := ""
	if result.Project != nil {
		version = result.Version.PackageVersion()
	}

	err := o.deps.Journal.StartRun(result.RunID, version, result.StartedAt)
	for _, step := range result.Steps {
		if err != nil {
			break
		}
		err = o.deps.Journal.RecordStep(result.RunID, step.Step, string(step.Status), step.Summary())
	}
	if err == nil {
		err = o.deps.Journal.FinishRun(result.RunID, string(result.Status()), result.StartedAt.Add(result.TotalDuration))
	}
	if err != nil {
		o.logger.Warn("failed to record release in journal", interfaces.F("error", err.Error()))
	}
}

// IsConfigError reports whether err came from loading operator credentials
func IsConfigError(err error) bool {
	return errors.Is(err, services.ErrConfigNotFound) || errors.Is(err, services.ErrConfigInvalid)
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reviewboard/rbrelease/internal/domain-adapters/gateways"
	orchestrators "github.com/reviewboard/rbrelease/internal/domain-orchestrators"
	"github.com/reviewboard/rbrelease/internal/domain/entities"
	"github.com/reviewboard/rbrelease/internal/domain/interfaces"
	ports "github.com/reviewboard/rbrelease/internal/domain/interfaces/gateways"
	"github.com/reviewboard/rbrelease/internal/external-adapters/flock"
	"github.com/reviewboard/rbrelease/internal/external-adapters/gpg"
	"github.com/reviewboard/rbrelease/internal/external-adapters/s3"
	"github.com/reviewboard/rbrelease/internal/external-adapters/sqlite"
	"github.com/reviewboard/rbrelease/internal/external-adapters/toml"
	"github.com/reviewboard/rbrelease/internal/external-adapters/yaml"
)

const (
	// cloneTempPrefix names the temporary clone directories
	cloneTempPrefix = "reviewboard-release."

	// passphraseEnvDefault holds the signing key passphrase unless overridden
	passphraseEnvDefault = "RBRELEASE_SIGN_PASSPHRASE"
)

type releaseOptions struct {
	configPath    string
	sourceDir     string
	keepClone     string
	dryRun        bool
	signKey       string
	passphraseEnv string
	noJournal     bool
}

func addReleaseFlags(cmd *cobra.Command, opts *releaseOptions) {
	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Credentials file (default ~/.rbwebsiterc)")
	flags.StringVar(&opts.sourceDir, "source", "", "Project root to release (default current directory)")
	flags.StringVar(&opts.keepClone, "keep-clone", string(orchestrators.KeepCloneOnFailure), "Keep the temporary clone: on-failure, always or never")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Build and checksum only; do not upload, tag or register")
	flags.StringVar(&opts.signKey, "sign-key", "", "Armored private key used to sign the checksum manifest")
	flags.StringVar(&opts.passphraseEnv, "sign-passphrase-env", passphraseEnvDefault, "Environment variable holding the signing key passphrase")
	flags.BoolVar(&opts.noJournal, "no-journal", false, "Do not record the run in the release history")
}

func newReleaseCommand(global *globalOptions) *cobra.Command {
	opts := &releaseOptions{}
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Run the release pipeline (same as running rbrelease with no command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRelease(cmd, global, opts)
		},
	}
	addReleaseFlags(cmd, opts)
	return cmd
}

func runRelease(cmd *cobra.Command, global *globalOptions, opts *releaseOptions) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	policy, err := orchestrators.ParseKeepClonePolicy(opts.keepClone)
	if err != nil {
		return err
	}

	configPath := opts.configPath
	if configPath == "" {
		if configPath, err = toml.DefaultPath(); err != nil {
			return err
		}
	}

	logger := interfaces.NewConsoleLogger(stderr, global.verbose)
	executor := gateways.NewCommandExecutorWithOutput(stdout, stderr)

	deps := orchestrators.ReleaseDependencies{
		Credentials: toml.NewCredentialsLoader(configPath),
		Projects:    yaml.NewProjectRepository(global.projectFile),
		Versions:    gateways.NewVersionReader(),
		VCS:         gateways.NewGitGateway(executor, cloneTempPrefix),
		Settings:    gateways.NewSettingsWriter(),
		Packager:    gateways.NewSetupPackager(executor),
		Checksums:   gateways.NewChecksumBuilder(),
		Store:       openBucket,
		Registry:    newRegistry,
		Lock: func(project *entities.Project) orchestrators.ReleaseLock {
			return flock.New(flock.DefaultPath(project.Name))
		},
		Logger: logger,
	}

	if opts.signKey != "" {
		signer, err := gpg.NewSignerFromFile(opts.signKey, []byte(os.Getenv(opts.passphraseEnv)))
		if err != nil {
			return err
		}
		deps.Signer = signer
	}

	if !opts.noJournal {
		journal, err := openJournal(global.journalPath)
		if err != nil {
			logger.Warn("release history disabled", interfaces.F("error", err.Error()))
		} else {
			//nolint:errcheck // Defer close
			defer journal.Close()
			deps.Journal = journal
		}
	}

	orchestrator := orchestrators.NewReleaseOrchestrator(deps, orchestrators.ReleaseOrchestratorConfig{
		SourceDir: opts.sourceDir,
		KeepClone: policy,
		DryRun:    opts.dryRun,
	})

	result, err := orchestrator.Run(ctx)
	if result != nil {
		printReleaseReport(stdout, result)
	}
	if err != nil {
		if orchestrators.IsConfigError(err) {
			fmt.Fprint(stderr, toml.Guidance(configPath))
		}
		return err
	}
	return nil
}

func openBucket(ctx context.Context, project *entities.Project) (ports.ObjectStore, error) {
	bucket, err := s3.NewBucketFromEnvironment(ctx, project.Storage.Bucket, project.Storage.Region)
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

func newRegistry(project *entities.Project, creds entities.Credentials) ports.ReleaseRegistry {
	return gateways.NewReleaseAPIGateway(gateways.ReleaseAPIConfig{
		ReleasesURL: project.ReleasesURL(),
		Credentials: creds,
	})
}

func openJournal(path string) (*sqlite.Journal, error) {
	if path == "" {
		var err error
		if path, err = sqlite.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return sqlite.Open(path)
}

// printReleaseReport writes the step and artifact tables followed by the
// one-paragraph summary
func printReleaseReport(out io.Writer, result *orchestrators.ReleaseResult) {
	rows := make([][]string, 0, len(result.Steps))
	for _, step := range result.Steps {
		rows = append(rows, []string{step.Step, statusLabel(step.Status), formatDuration(step.Duration), step.Summary()})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]string{"Step", "Status", "Duration", "Detail"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))

	if len(result.Summary) > 0 {
		rows = rows[:0]
		for _, artifact := range result.Summary {
			rows = append(rows, []string{artifact.Name, artifact.MimeType, formatSize(artifact.Size), artifact.SHA256})
		}
		fmt.Fprintln(out, renderTable([]string{"Artifact", "Type", "Size", "SHA-256"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	}

	fmt.Fprintln(out, result.GetReleaseSummary())
	if result.Registration != nil {
		fmt.Fprintln(out, "Registration: HTTP "+strconv.Itoa(result.Registration.StatusCode))
	}
}

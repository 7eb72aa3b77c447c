package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reviewboard/rbrelease/internal/domain-adapters/gateways"
	"github.com/reviewboard/rbrelease/internal/domain/services"
	"github.com/reviewboard/rbrelease/internal/external-adapters/toml"
	"github.com/reviewboard/rbrelease/internal/external-adapters/yaml"
)

type validateOptions struct {
	configPath string
	sourceDir  string
	distDir    string
	inspect    bool
	quiet      bool
}

func newValidateCommand(global *globalOptions) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that a release can be started from this tree",
		Long: `Run the release preconditions without cloning or building: the credentials
file must be readable, the project root must hold the build entry point and
the version marker must flag a release.

With --dist, also check that a directory of built artifacts holds exactly
the expected files in release order. --inspect additionally opens every egg
and source tarball and checks their layout.`,
		Example: `  rbrelease validate
  rbrelease validate --dist ./dist
  rbrelease validate --dist ./dist --inspect
  rbrelease validate --quiet && echo ready`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Credentials file (default ~/.rbwebsiterc)")
	cmd.Flags().StringVar(&opts.sourceDir, "source", "", "Project root (default current directory)")
	cmd.Flags().StringVar(&opts.distDir, "dist", "", "Directory of built artifacts to validate")
	cmd.Flags().BoolVar(&opts.inspect, "inspect", false, "Open eggs and source tarballs found with --dist and check their contents")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only report errors (exit code indicates success/failure)")
	return cmd
}

func runValidate(cmd *cobra.Command, global *globalOptions, opts *validateOptions) error {
	out := cmd.OutOrStdout()
	say := func(format string, args ...any) {
		if !opts.quiet {
			fmt.Fprintf(out, format, args...)
		}
	}

	sourceDir := opts.sourceDir
	if sourceDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		sourceDir = wd
	}

	configPath := opts.configPath
	if configPath == "" {
		var err error
		if configPath, err = toml.DefaultPath(); err != nil {
			return err
		}
	}
	if _, err := toml.NewCredentialsLoader(configPath).LoadCredentials(); err != nil {
		if !opts.quiet {
			fmt.Fprint(cmd.ErrOrStderr(), toml.Guidance(configPath))
		}
		return err
	}
	say("✅ Credentials: %s\n", configPath)

	project, err := yaml.NewProjectRepository(global.projectFile).GetProject(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to load project definition: %w", err)
	}

	releaseService := services.NewReleaseService()
	version, err := releaseService.CheckPreconditions(sourceDir, project, gateways.NewVersionReader())
	if err != nil {
		return err
	}

	prefix := releaseService.StoragePrefix(project, version)
	say("✅ %s %s is a release\n", project.Name, version.PackageVersion())
	say("   Tag:      %s\n", version.TagName())
	say("   Upload:   s3://%s/%s\n", project.Storage.Bucket, prefix)
	say("   Register: %s\n", project.ReleasesURL())

	if opts.distDir == "" {
		return nil
	}

	distDir := opts.distDir
	if !filepath.IsAbs(distDir) {
		distDir = filepath.Join(sourceDir, distDir)
	}
	list, err := gateways.NewArtifactFinder().FindDist(distDir, project, version)
	if err != nil {
		return err
	}

	validation := releaseService.ValidateRelease(project, version, list)
	if !opts.quiet {
		present := make(map[string]bool, len(validation.Available))
		for _, name := range validation.Available {
			present[name] = true
		}
		rows := make([][]string, 0, len(validation.Expected)+len(validation.Unexpected))
		for _, name := range validation.Expected {
			state := "missing"
			if present[name] {
				state = "present"
			}
			rows = append(rows, []string{name, state})
		}
		for _, name := range validation.Unexpected {
			rows = append(rows, []string{name, "unexpected"})
		}
		fmt.Fprintln(out, renderTable([]string{"Artifact", "State"}, rows, nil))
	}

	if !validation.IsReady() {
		return fmt.Errorf("%w: %s", services.ErrNotReady, validation.ErrorMessage())
	}

	if opts.inspect {
		problems := gateways.NewArchiveInspector().Inspect(list, project, version)
		for _, problem := range problems {
			fmt.Fprintf(cmd.ErrOrStderr(), "❌ %s\n", problem)
		}
		if len(problems) > 0 {
			return fmt.Errorf("%w: %d artifact(s) failed inspection", services.ErrNotReady, len(problems))
		}
		say("✅ Archives inspected\n")
	}
	say("✅ READY: %d artifacts and checksum manifest present\n", len(validation.Expected))
	return nil
}

package main

import (
	"github.com/spf13/cobra"
)

// globalOptions are flags shared by every command
type globalOptions struct {
	verbose     bool
	noColor     bool
	projectFile string
	journalPath string
}

func newRootCommand() *cobra.Command {
	global := &globalOptions{}
	release := &releaseOptions{}

	rootCmd := &cobra.Command{
		Use:   "rbrelease",
		Short: "Build, publish and register a Review Board release",
		Long: `rbrelease clones the committed project tree into a temporary directory,
builds an egg per supported Python version and a source tarball, writes a
SHA-256 manifest, uploads everything to the downloads bucket, tags the
release and registers it with the website API.

Run it from the root of the source tree. Credentials for the website API
are read from ~/.rbwebsiterc.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			configureColor(cmd.OutOrStdout(), global.noColor)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRelease(cmd, global, release)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&global.verbose, "verbose", "v", false, "Show debug output")
	rootCmd.PersistentFlags().BoolVar(&global.noColor, "no-color", false, "Disable coloured output")
	rootCmd.PersistentFlags().StringVar(&global.projectFile, "project", "", "Project definition file (default release.yml at the project root)")
	rootCmd.PersistentFlags().StringVar(&global.journalPath, "journal", "", "Release history database (default in the user config dir)")
	addReleaseFlags(rootCmd, release)

	rootCmd.AddCommand(newReleaseCommand(global))
	rootCmd.AddCommand(newValidateCommand(global))
	rootCmd.AddCommand(newChecksumCommand())
	rootCmd.AddCommand(newVerifyCommand())
	rootCmd.AddCommand(newHistoryCommand(global))

	return rootCmd
}

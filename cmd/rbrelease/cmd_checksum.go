package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reviewboard/rbrelease/internal/domain-adapters/gateways"
	"github.com/reviewboard/rbrelease/internal/domain/entities"
	"github.com/reviewboard/rbrelease/internal/external-adapters/gpg"
)

func newChecksumCommand() *cobra.Command {
	var (
		output        string
		signKey       string
		passphraseEnv string
	)

	cmd := &cobra.Command{
		Use:   "checksum <file>...",
		Short: "Write a SHA-256 manifest for files",
		Long: `Compute the SHA-256 digest of each file and write one "{digest}  {name}"
line per file, in argument order. Without --output the lines go to stdout.

The passphrase of an encrypted signing key is read from the environment
variable named by --sign-passphrase-env.`,
		Example: `  rbrelease checksum dist/*.egg dist/*.tar.gz
  rbrelease checksum -o dist/ReviewBoard-1.2.3.sha256sum dist/ReviewBoard-1.2.3*
  rbrelease checksum -o SHA256SUMS --sign-key release.key *.tar.gz`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checksums := gateways.NewChecksumBuilder()
			out := cmd.OutOrStdout()

			if output == "" {
				if signKey != "" {
					return fmt.Errorf("--sign-key requires --output")
				}
				for _, path := range args {
					digest, err := checksums.CalculateChecksum(path)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s  %s\n", digest, entities.Artifact{Path: path}.Name())
				}
				return nil
			}

			list := entities.NewBuildList()
			for _, path := range args {
				list.Add(path, gateways.MimeTypeFor(path))
			}
			manifest, err := checksums.BuildManifest(list, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "📋 Wrote %s (%d files)\n", manifest.Path, len(args))

			if signKey != "" {
				signer, err := gpg.NewSignerFromFile(signKey, []byte(os.Getenv(passphraseEnv)))
				if err != nil {
					return err
				}
				sigPath, err := signer.SignFile(manifest.Path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "🔐 Wrote %s\n", sigPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Manifest file to write")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "Armored private key used to sign the manifest")
	cmd.Flags().StringVar(&passphraseEnv, "sign-passphrase-env", passphraseEnvDefault, "Environment variable holding the signing key passphrase")
	return cmd
}

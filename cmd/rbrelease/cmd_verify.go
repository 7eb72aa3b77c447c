package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reviewboard/rbrelease/internal/domain-adapters/gateways"
)

func newVerifyCommand() *cobra.Command {
	var (
		keys      []string
		signature string
	)

	cmd := &cobra.Command{
		Use:   "verify <manifest>",
		Short: "Verify files against a SHA-256 manifest and its signature",
		Long: `Re-hash every file listed in a manifest. Files are looked up in the
manifest's directory. With --key, the manifest's detached signature
(<manifest>.asc unless --signature is given) is checked as well.`,
		Example: `  rbrelease verify ReviewBoard-1.2.3.sha256sum
  rbrelease verify ReviewBoard-1.2.3.sha256sum --key release.pub`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			manifest := args[0]
			failed := 0

			fmt.Fprintf(out, "🔍 Verifying %s\n\n", manifest)

			checks, err := gateways.NewChecksumBuilder().VerifyManifest(cmd.Context(), manifest)
			if err != nil {
				return err
			}
			for _, check := range checks {
				if check.Err != nil {
					fmt.Fprintf(out, "❌ %s: %v\n", check.Entry.Filename, check.Err)
					failed++
					continue
				}
				fmt.Fprintf(out, "✅ %s\n", check.Entry.Filename)
			}

			if len(keys) > 0 {
				verifier := gateways.NewSignatureVerifier()
				if err := verifier.Trust(keys...); err != nil {
					return err
				}

				sigPath := signature
				if sigPath == "" {
					sigPath = gateways.SignaturePath(manifest)
				}
				if _, err := os.Stat(sigPath); err != nil {
					fmt.Fprintf(out, "❌ signature %s: %v\n", sigPath, err)
					failed++
				} else if signer, err := verifier.VerifyDetached(manifest, sigPath); err != nil {
					fmt.Fprintf(out, "❌ signature: %v\n", err)
					failed++
				} else {
					fmt.Fprintf(out, "🔐 signature by %s verified (%d trusted keys)\n", signer, verifier.KeyCount())
				}
			}

			fmt.Fprintln(out)
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(checks)+boolToInt(len(keys) > 0))
			}
			fmt.Fprintf(out, "All %d files verified\n", len(checks))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&keys, "key", nil, "Trusted public key file (repeatable)")
	cmd.Flags().StringVar(&signature, "signature", "", "Detached signature file (default <manifest>.asc)")
	return cmd
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

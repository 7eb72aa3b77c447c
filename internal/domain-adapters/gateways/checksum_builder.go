package gateways

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
)

// ManifestEntry is one line of a checksum manifest
type ManifestEntry struct {
	Digest   string
	Filename string
}

// ChecksumBuilder computes SHA-256 digests and reads and writes sha256sum
// style manifests
type ChecksumBuilder struct{}

// NewChecksumBuilder creates a new checksum builder
func NewChecksumBuilder() *ChecksumBuilder {
	return &ChecksumBuilder{}
}

// CalculateChecksum calculates the SHA256 checksum of a file
func (b *ChecksumBuilder) CalculateChecksum(filePath string) (string, error) {
	//nolint:gosec // G304: File path is a recorded build artifact
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum verifies a file's SHA256 checksum
func (b *ChecksumBuilder) VerifyChecksum(_ context.Context, filePath, expectedSum string) error {
	actualSum, err := b.CalculateChecksum(filePath)
	if err != nil {
		return err
	}

	if actualSum != expectedSum {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expectedSum, actualSum)
	}

	return nil
}

// BuildManifest hashes every artifact recorded in list so far and writes one
// "{digest}  {basename}" line per artifact, in list order, to manifestPath.
// The manifest is then appended to list. Nothing is written if any artifact
// cannot be read.
func (b *ChecksumBuilder) BuildManifest(list *entities.BuildList, manifestPath string) (entities.Artifact, error) {
	var sb strings.Builder

	for _, artifact := range list.Artifacts() {
		digest, err := b.CalculateChecksum(artifact.Path)
		if err != nil {
			return entities.Artifact{}, fmt.Errorf("checksum of %s: %w", artifact.Path, err)
		}
		fmt.Fprintf(&sb, "%s  %s\n", digest, artifact.Name())
	}

	if err := os.MkdirAll(filepath.Dir(manifestPath), 0750); err != nil {
		return entities.Artifact{}, fmt.Errorf("failed to create manifest directory: %w", err)
	}
	//nolint:gosec // G306: manifest is published publicly
	if err := os.WriteFile(manifestPath, []byte(sb.String()), 0644); err != nil {
		return entities.Artifact{}, fmt.Errorf("failed to write manifest: %w", err)
	}

	list.Add(manifestPath, entities.MimeTypeText)
	return entities.Artifact{Path: manifestPath, MimeType: entities.MimeTypeText}, nil
}

// ParseManifest reads the entries of a manifest file
func (b *ChecksumBuilder) ParseManifest(manifestPath string) ([]ManifestEntry, error) {
	//nolint:gosec // G304: manifest path is user-provided for verification
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	var entries []ManifestEntry
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		digest, filename, ok := strings.Cut(line, "  ")
		if !ok || len(digest) != sha256.Size*2 || filename == "" {
			return nil, fmt.Errorf("%s:%d: malformed manifest line", manifestPath, lineNo)
		}
		if _, err := hex.DecodeString(digest); err != nil {
			return nil, fmt.Errorf("%s:%d: digest is not hex", manifestPath, lineNo)
		}
		entries = append(entries, ManifestEntry{Digest: digest, Filename: filename})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return entries, nil
}

// ManifestCheck is the verification outcome for one manifest entry
type ManifestCheck struct {
	Entry ManifestEntry
	Err   error
}

// VerifyManifest re-hashes every file listed in the manifest. Files are looked
// up next to the manifest; entries naming any other location fail unread.
func (b *ChecksumBuilder) VerifyManifest(ctx context.Context, manifestPath string) ([]ManifestCheck, error) {
	entries, err := b.ParseManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(manifestPath)
	checks := make([]ManifestCheck, 0, len(entries))
	for _, entry := range entries {
		if !isPlainFilename(entry.Filename) {
			checks = append(checks, ManifestCheck{
				Entry: entry,
				Err:   fmt.Errorf("manifest entry %q is not a file name in %s", entry.Filename, dir),
			})
			continue
		}
		err := b.VerifyChecksum(ctx, filepath.Join(dir, entry.Filename), entry.Digest)
		checks = append(checks, ManifestCheck{Entry: entry, Err: err})
	}
	return checks, nil
}

func isPlainFilename(name string) bool {
	return name != "." && name != ".." && !strings.ContainsAny(name, `/\`) && !filepath.IsAbs(name)
}

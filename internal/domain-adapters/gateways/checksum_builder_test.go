package gateways

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
)

// TestVerifyChecksum tests SHA256 checksum verification
func TestVerifyChecksum(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")

	content := []byte("Hello, World! This is a test file for checksum verification.")
	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	builder := NewChecksumBuilder()

	actualSum, err := builder.CalculateChecksum(testFile)
	if err != nil {
		t.Fatalf("CalculateChecksum() error = %v", err)
	}

	if len(actualSum) != 64 {
		t.Errorf("CalculateChecksum() returned checksum length = %d, want 64 (SHA256 hex)", len(actualSum))
	}

	t.Run("valid checksum", func(t *testing.T) {
		if err := builder.VerifyChecksum(context.Background(), testFile, actualSum); err != nil {
			t.Errorf("VerifyChecksum() with valid checksum error = %v", err)
		}
	})

	t.Run("invalid checksum", func(t *testing.T) {
		invalidSum := strings.Repeat("0", 64)
		if err := builder.VerifyChecksum(context.Background(), testFile, invalidSum); err == nil {
			t.Error("VerifyChecksum() with invalid checksum should return error")
		}
	})

	t.Run("non-existent file", func(t *testing.T) {
		if err := builder.VerifyChecksum(context.Background(), "/nonexistent/file.txt", actualSum); err == nil {
			t.Error("VerifyChecksum() with non-existent file should return error")
		}
	})
}

// TestCalculateChecksum tests SHA256 checksum calculation
func TestCalculateChecksum(t *testing.T) {
	tests := []struct {
		name         string
		content      []byte
		wantChecksum string
	}{
		{
			name:         "empty file",
			content:      []byte(""),
			wantChecksum: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:         "simple content",
			content:      []byte("Hello, World!"),
			wantChecksum: "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testFile := filepath.Join(t.TempDir(), "test.txt")
			if err := os.WriteFile(testFile, tt.content, 0600); err != nil {
				t.Fatalf("Failed to create test file: %v", err)
			}

			checksum, err := NewChecksumBuilder().CalculateChecksum(testFile)
			if err != nil {
				t.Fatalf("CalculateChecksum() error = %v", err)
			}

			if checksum != tt.wantChecksum {
				t.Errorf("CalculateChecksum() = %v, want %v", checksum, tt.wantChecksum)
			}
		})
	}
}

// writeArtifacts creates files in dir/dist and records them in a build list
func writeArtifacts(t *testing.T, dir string, files map[string]string, order []string) *entities.BuildList {
	t.Helper()

	distDir := filepath.Join(dir, "dist")
	if err := os.MkdirAll(distDir, 0750); err != nil {
		t.Fatal(err)
	}

	list := entities.NewBuildList()
	for _, name := range order {
		path := filepath.Join(distDir, name)
		if content, ok := files[name]; ok {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				t.Fatal(err)
			}
		}
		list.Add(path, entities.MimeTypeEgg)
	}
	return list
}

func TestBuildManifest(t *testing.T) {
	dir := t.TempDir()
	order := []string{
		"ReviewBoard-1.2.3-py2.6.egg",
		"ReviewBoard-1.2.3-py2.7.egg",
		"ReviewBoard-1.2.3.tar.gz",
	}
	list := writeArtifacts(t, dir, map[string]string{
		"ReviewBoard-1.2.3-py2.6.egg": "egg 2.6",
		"ReviewBoard-1.2.3-py2.7.egg": "egg 2.7",
		"ReviewBoard-1.2.3.tar.gz":    "Hello, World!",
	}, order)

	builder := NewChecksumBuilder()
	manifestPath := filepath.Join(dir, "dist", "ReviewBoard-1.2.3.sha256sum")

	manifest, err := builder.BuildManifest(list, manifestPath)
	if err != nil {
		t.Fatalf("BuildManifest() error = %v", err)
	}

	if manifest.MimeType != entities.MimeTypeText {
		t.Errorf("manifest MIME = %s, want %s", manifest.MimeType, entities.MimeTypeText)
	}

	// Manifest is appended after the artifacts it covers
	if list.Len() != 4 {
		t.Fatalf("build list length = %d, want 4", list.Len())
	}
	if last := list.Names()[3]; last != "ReviewBoard-1.2.3.sha256sum" {
		t.Errorf("last artifact = %s, want the manifest", last)
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("manifest has %d lines, want 3:\n%s", len(lines), data)
	}

	linePattern := regexp.MustCompile(`^[0-9a-f]{64}  (\S+)$`)
	for i, line := range lines {
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			t.Errorf("line %d malformed: %q", i, line)
			continue
		}
		if m[1] != order[i] {
			t.Errorf("line %d file = %s, want %s", i, m[1], order[i])
		}
	}

	if !strings.HasPrefix(lines[2], "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f  ") {
		t.Errorf("tarball digest line = %q", lines[2])
	}

	checks, err := builder.VerifyManifest(context.Background(), manifestPath)
	if err != nil {
		t.Fatalf("VerifyManifest() error = %v", err)
	}
	for _, check := range checks {
		if check.Err != nil {
			t.Errorf("VerifyManifest() %s: %v", check.Entry.Filename, check.Err)
		}
	}
}

func TestBuildManifest_MissingArtifact(t *testing.T) {
	dir := t.TempDir()
	list := writeArtifacts(t, dir, map[string]string{
		"ReviewBoard-1.2.3-py2.6.egg": "egg",
	}, []string{"ReviewBoard-1.2.3-py2.6.egg", "ReviewBoard-1.2.3.tar.gz"})

	manifestPath := filepath.Join(dir, "dist", "ReviewBoard-1.2.3.sha256sum")
	if _, err := NewChecksumBuilder().BuildManifest(list, manifestPath); err == nil {
		t.Fatal("BuildManifest() should fail when an artifact is missing")
	}

	if list.Len() != 2 {
		t.Errorf("build list must not grow on failure, got %v", list.Names())
	}
	if _, err := os.Stat(manifestPath); !os.IsNotExist(err) {
		t.Error("no manifest should be written on failure")
	}
}

func TestVerifyManifest_DetectsTampering(t *testing.T) {
	dir := t.TempDir()
	list := writeArtifacts(t, dir, map[string]string{
		"a.egg": "original",
	}, []string{"a.egg"})

	builder := NewChecksumBuilder()
	manifestPath := filepath.Join(dir, "dist", "a.sha256sum")
	if _, err := builder.BuildManifest(list, manifestPath); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "dist", "a.egg"), []byte("tampered"), 0600); err != nil {
		t.Fatal(err)
	}

	checks, err := builder.VerifyManifest(context.Background(), manifestPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(checks) != 1 || checks[0].Err == nil {
		t.Errorf("VerifyManifest() should report a mismatch, got %+v", checks)
	}
}

func TestVerifyManifest_RejectsPathsOutsideManifestDir(t *testing.T) {
	root := t.TempDir()
	dist := filepath.Join(root, "dist")
	if err := os.MkdirAll(dist, 0o750); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(root, "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dist, "a.egg"), []byte("egg"), 0600); err != nil {
		t.Fatal(err)
	}

	builder := NewChecksumBuilder()
	secretSum, err := builder.CalculateChecksum(outside)
	if err != nil {
		t.Fatal(err)
	}
	eggSum, err := builder.CalculateChecksum(filepath.Join(dist, "a.egg"))
	if err != nil {
		t.Fatal(err)
	}

	manifest := filepath.Join(dist, "a.sha256sum")
	content := eggSum + "  a.egg\n" +
		secretSum + "  ../secret.txt\n" +
		secretSum + "  " + outside + "\n" +
		secretSum + "  ..\n"
	if err := os.WriteFile(manifest, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	checks, err := builder.VerifyManifest(context.Background(), manifest)
	if err != nil {
		t.Fatal(err)
	}
	if len(checks) != 4 {
		t.Fatalf("VerifyManifest() returned %d checks, want 4", len(checks))
	}
	if checks[0].Err != nil {
		t.Errorf("a.egg: unexpected error %v", checks[0].Err)
	}
	for _, check := range checks[1:] {
		if check.Err == nil || !strings.Contains(check.Err.Error(), "is not a file name") {
			t.Errorf("%s: error = %v, want rejection", check.Entry.Filename, check.Err)
		}
	}
}

func TestParseManifest_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"single space", strings.Repeat("a", 64) + " file.egg\n"},
		{"short digest", "abc  file.egg\n"},
		{"not hex", strings.Repeat("z", 64) + "  file.egg\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "m.sha256sum")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := NewChecksumBuilder().ParseManifest(path); err == nil {
				t.Error("ParseManifest() should reject malformed line")
			}
		})
	}
}

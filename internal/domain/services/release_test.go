package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/reviewboard/rbrelease/internal/domain/entities"
)

func testVersion() entities.VersionInfo {
	return entities.VersionInfo{
		Major:       1,
		Minor:       2,
		Micro:       3,
		ReleaseType: entities.ReleaseTypeFinal,
		IsRelease:   true,
	}
}

func buildList(names ...string) *entities.BuildList {
	list := entities.NewBuildList()
	for _, name := range names {
		list.Add("dist/"+name, entities.MimeTypeEgg)
	}
	return list
}

func TestValidateRelease(t *testing.T) {
	tests := []struct {
		name            string
		artifacts       []string
		expectedStatus  ReleaseStatus
		expectedReady   bool
		expectedMissing int
	}{
		{
			name: "all artifacts and manifest - ready",
			artifacts: []string{
				"ReviewBoard-1.2.3-py2.6.egg",
				"ReviewBoard-1.2.3-py2.7.egg",
				"ReviewBoard-1.2.3.tar.gz",
				"ReviewBoard-1.2.3.sha256sum",
			},
			expectedStatus: StatusReady,
			expectedReady:  true,
		},
		{
			name: "signed manifest - ready",
			artifacts: []string{
				"ReviewBoard-1.2.3-py2.6.egg",
				"ReviewBoard-1.2.3-py2.7.egg",
				"ReviewBoard-1.2.3.tar.gz",
				"ReviewBoard-1.2.3.sha256sum",
				"ReviewBoard-1.2.3.sha256sum.asc",
			},
			expectedStatus: StatusReady,
			expectedReady:  true,
		},
		{
			name:            "no artifacts - error",
			artifacts:       nil,
			expectedStatus:  StatusNoArtifacts,
			expectedMissing: 3,
		},
		{
			name: "missing egg - error",
			artifacts: []string{
				"ReviewBoard-1.2.3-py2.7.egg",
				"ReviewBoard-1.2.3.tar.gz",
				"ReviewBoard-1.2.3.sha256sum",
			},
			expectedStatus:  StatusMissingArtifacts,
			expectedMissing: 1,
		},
		{
			name: "extra egg - error",
			artifacts: []string{
				"ReviewBoard-1.2.3-py2.5.egg",
				"ReviewBoard-1.2.3-py2.6.egg",
				"ReviewBoard-1.2.3-py2.7.egg",
				"ReviewBoard-1.2.3.tar.gz",
				"ReviewBoard-1.2.3.sha256sum",
			},
			expectedStatus: StatusUnexpectedFiles,
		},
		{
			name: "sdist before eggs - error",
			artifacts: []string{
				"ReviewBoard-1.2.3.tar.gz",
				"ReviewBoard-1.2.3-py2.6.egg",
				"ReviewBoard-1.2.3-py2.7.egg",
				"ReviewBoard-1.2.3.sha256sum",
			},
			expectedStatus: StatusOutOfOrderEntries,
		},
		{
			name: "no manifest - error",
			artifacts: []string{
				"ReviewBoard-1.2.3-py2.6.egg",
				"ReviewBoard-1.2.3-py2.7.egg",
				"ReviewBoard-1.2.3.tar.gz",
			},
			expectedStatus: StatusMissingChecksums,
		},
	}

	service := NewReleaseService()
	project := entities.DefaultProject()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validation := service.ValidateRelease(project, testVersion(), buildList(tt.artifacts...))

			if validation.Status != tt.expectedStatus {
				t.Errorf("Status = %v, want %v", validation.Status, tt.expectedStatus)
			}

			if validation.IsReady() != tt.expectedReady {
				t.Errorf("IsReady() = %v, want %v", validation.IsReady(), tt.expectedReady)
			}

			if len(validation.Missing) != tt.expectedMissing {
				t.Errorf("Missing count = %d, want %d (%v)",
					len(validation.Missing), tt.expectedMissing, validation.Missing)
			}

			if tt.expectedStatus != StatusReady && validation.ErrorMessage() == "" {
				t.Error("Expected error message but got empty string")
			}
		})
	}
}

func TestExpectedArtifacts(t *testing.T) {
	service := NewReleaseService()
	project := entities.DefaultProject()

	got := service.ExpectedArtifacts(project, testVersion())
	want := []string{
		"ReviewBoard-1.2.3-py2.6.egg",
		"ReviewBoard-1.2.3-py2.7.egg",
		"ReviewBoard-1.2.3.tar.gz",
	}

	if len(got) != len(want) {
		t.Fatalf("ExpectedArtifacts() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ExpectedArtifacts()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if name := service.ManifestName(project, testVersion()); name != "ReviewBoard-1.2.3.sha256sum" {
		t.Errorf("ManifestName() = %q", name)
	}
}

func TestStoragePrefixes(t *testing.T) {
	service := NewReleaseService()
	project := entities.DefaultProject()

	prefix := service.StoragePrefix(project, testVersion())
	if prefix != "ReviewBoard/1.2/" {
		t.Errorf("StoragePrefix() = %q, want %q", prefix, "ReviewBoard/1.2/")
	}

	tests := []struct {
		prefix string
		want   string
	}{
		{"ReviewBoard/1.2/", "ReviewBoard/"},
		{"ReviewBoard/", ""},
		{"a/b/c/", "a/b/"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := service.ParentPrefix(tt.prefix); got != tt.want {
				t.Errorf("ParentPrefix(%q) = %q, want %q", tt.prefix, got, tt.want)
			}
		})
	}

	key := service.StorageKey(prefix, entities.Artifact{Path: "dist/ReviewBoard-1.2.3.tar.gz"})
	if key != "ReviewBoard/1.2/ReviewBoard-1.2.3.tar.gz" {
		t.Errorf("StorageKey() = %q", key)
	}
}

func TestCheckReleasable(t *testing.T) {
	service := NewReleaseService()

	if err := service.CheckReleasable(testVersion()); err != nil {
		t.Errorf("CheckReleasable() on release error = %v", err)
	}

	dev := testVersion()
	dev.IsRelease = false
	err := service.CheckReleasable(dev)
	if !errors.Is(err, ErrNotRelease) {
		t.Errorf("CheckReleasable() on dev build = %v, want ErrNotRelease", err)
	}
}

type stubVersions struct {
	version entities.VersionInfo
	err     error
	calls   int
}

func (s *stubVersions) ReadVersion(_ string, _ *entities.Project) (entities.VersionInfo, error) {
	s.calls++
	return s.version, s.err
}

func TestCheckPreconditions(t *testing.T) {
	project := entities.DefaultProject()
	notRelease := testVersion()
	notRelease.IsRelease = false

	tests := []struct {
		name       string
		entryPoint bool
		versions   *stubVersions
		wantErr    error
		wantReads  int
	}{
		{
			name:       "release tree",
			entryPoint: true,
			versions:   &stubVersions{version: testVersion()},
			wantReads:  1,
		},
		{
			name:      "missing entry point",
			versions:  &stubVersions{version: testVersion()},
			wantErr:   ErrNotProjectRoot,
			wantReads: 0,
		},
		{
			name:       "not a release",
			entryPoint: true,
			versions:   &stubVersions{version: notRelease},
			wantErr:    ErrNotRelease,
			wantReads:  1,
		},
		{
			name:       "unreadable marker",
			entryPoint: true,
			versions:   &stubVersions{err: os.ErrNotExist},
			wantErr:    os.ErrNotExist,
			wantReads:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if tt.entryPoint {
				if err := os.WriteFile(filepath.Join(root, project.EntryPoint), nil, 0o600); err != nil {
					t.Fatal(err)
				}
			}

			version, err := NewReleaseService().CheckPreconditions(root, project, tt.versions)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CheckPreconditions() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("CheckPreconditions() unexpected error = %v", err)
			} else if version.PackageVersion() != "1.2.3" {
				t.Errorf("CheckPreconditions() version = %s, want 1.2.3", version.PackageVersion())
			}

			if tt.versions.calls != tt.wantReads {
				t.Errorf("ReadVersion calls = %d, want %d", tt.versions.calls, tt.wantReads)
			}
		})
	}
}

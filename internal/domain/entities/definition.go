package entities

import "fmt"

// Project describes the package being released and where its release goes
type Project struct {
	Name           string   // distribution name used in artifact filenames
	Product        string   // product path on the website API
	PythonVersions []string // interpreters to build eggs for, oldest first
	VersionFile    string   // file holding the VERSION tuple, relative to the root
	EntryPoint     string   // build entry point that marks the project root
	SettingsFile   string   // local settings written before building
	DistDir        string   // build output directory, relative to the root
	Storage        ProjectStorage
	API            ProjectAPI
}

// ProjectStorage represents the object-storage destination
type ProjectStorage struct {
	Bucket string
	Region string
}

// ProjectAPI represents the release-registration API endpoint
type ProjectAPI struct {
	BaseURL string
}

// LatestPythonVersion returns the newest configured interpreter version
func (p *Project) LatestPythonVersion() string {
	if len(p.PythonVersions) == 0 {
		return ""
	}
	return p.PythonVersions[len(p.PythonVersions)-1]
}

// ReleasesURL returns the endpoint releases are posted to
func (p *Project) ReleasesURL() string {
	return fmt.Sprintf("%sproducts/%s/releases/", p.API.BaseURL, p.Product)
}

// DefaultProject returns the Review Board release definition
func DefaultProject() *Project {
	return &Project{
		Name:           "ReviewBoard",
		Product:        "reviewboard",
		PythonVersions: []string{"2.6", "2.7"},
		VersionFile:    "reviewboard/__init__.py",
		EntryPoint:     "setup.py",
		SettingsFile:   "settings_local.py",
		DistDir:        "dist",
		Storage: ProjectStorage{
			Bucket: "downloads.reviewboard.org",
			Region: "us-east-1",
		},
		API: ProjectAPI{
			BaseURL: "http://www.reviewboard.org/api/",
		},
	}
}

package entities

import "strconv"

// ReleaseMetadata is the record posted to the release-registration API
type ReleaseMetadata struct {
	Version     VersionInfo
	SCMRevision string
}

// FormField is a single ordered multipart form field
type FormField struct {
	Name  string
	Value string
}

// FormFields returns the metadata as ordered form fields
func (m ReleaseMetadata) FormFields() []FormField {
	return []FormField{
		{Name: "major_version", Value: strconv.Itoa(m.Version.Major)},
		{Name: "minor_version", Value: strconv.Itoa(m.Version.Minor)},
		{Name: "micro_version", Value: strconv.Itoa(m.Version.Micro)},
		{Name: "patch_version", Value: strconv.Itoa(m.Version.Patch)},
		{Name: "release_type", Value: m.Version.ReleaseType},
		{Name: "release_num", Value: strconv.Itoa(m.Version.ReleaseNum)},
		{Name: "scm_revision", Value: m.SCMRevision},
	}
}

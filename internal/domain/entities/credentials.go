package entities

// Credentials are the operator's login for the release-registration API.
// They are held in memory for the lifetime of a run and never written out.
type Credentials struct {
	Username string
	Password string
}

// Complete reports whether both fields are set
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

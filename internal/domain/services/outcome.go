package services

import "time"

// StepStatus is the outcome class of a pipeline step
type StepStatus string

// Step outcomes. Fatal stops the pipeline; Warning is reported and the
// pipeline continues.
const (
	StepSuccess StepStatus = "success"
	StepWarning StepStatus = "warning"
	StepFatal   StepStatus = "fatal"
	StepSkipped StepStatus = "skipped"
)

// Pipeline step names
const (
	StepLoadConfig    = "load-config"
	StepPreconditions = "preconditions"
	StepClone         = "clone"
	StepSettings      = "settings"
	StepBuild         = "build"
	StepChecksum      = "checksum"
	StepSign          = "sign"
	StepValidate      = "validate"
	StepUpload        = "upload"
	StepTag           = "tag"
	StepRegister      = "register"
	StepCleanup       = "cleanup"
)

// StepResult records the outcome of one pipeline step
type StepResult struct {
	Step     string
	Status   StepStatus
	Err      error
	Message  string
	Duration time.Duration
}

// Failed reports whether the step stopped the pipeline
func (r StepResult) Failed() bool {
	return r.Status == StepFatal
}

// Summary returns the error or message text of the step
func (r StepResult) Summary() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Message
}

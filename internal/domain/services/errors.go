package services

import "errors"

// Sentinel errors shared by the release pipeline
var (
	ErrNotProjectRoot = errors.New("this must be run from the root of the project tree")
	ErrNotRelease     = errors.New("this version is not listed as a release")
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrConfigInvalid  = errors.New("configuration file is invalid")
	ErrCommandFailed  = errors.New("error invoking command")
	ErrReleaseLocked  = errors.New("another release is already running")
	ErrNotReady       = errors.New("build output is not ready for release")
)

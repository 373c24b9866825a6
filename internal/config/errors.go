package config

import "errors"

var (
	// ErrConfigNotFound is returned when the configuration file does not
	// exist at the given path.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrMalformedConfig is returned when the configuration file is not
	// valid YAML or does not match the expected shape.
	ErrMalformedConfig = errors.New("malformed config")

	// ErrTargetNotFound is returned when a requested target name has no
	// definition in the configuration.
	ErrTargetNotFound = errors.New("target not found")

	// ErrInvalidTarget is returned when a target definition fails
	// validation.
	ErrInvalidTarget = errors.New("invalid target")
)

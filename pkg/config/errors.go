package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoMountPoint is returned when the mount point is empty.
	ErrNoMountPoint = errors.New("no mount point specified")

	// ErrInvalidPollTimeout is returned when the poll timeout is <= 0.
	ErrInvalidPollTimeout = errors.New("invalid poll timeout: must be > 0")

	// ErrInvalidEventBufferSize is returned when the event buffer size is <= 0.
	ErrInvalidEventBufferSize = errors.New("invalid event buffer size: must be > 0")

	// ErrInvalidKinds is returned when the default kind list does not parse.
	ErrInvalidKinds = errors.New("invalid event kinds: must be a comma-separated list of create, delete, modify, overflow")

	// ErrNoServerAddr is returned when the server listen address is empty.
	ErrNoServerAddr = errors.New("no server listen address specified")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)

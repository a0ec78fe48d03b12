package config

import "errors"

// Sentinels returned by Build and WithConfigFile. Callers match them with
// errors.Is; the wrapped message carries the offending field or path.
var (
	ErrFileDoesNotExist  = errors.New("config file does not exist")
	ErrReadConfigFail    = errors.New("failed to read config file")
	ErrConfigParsingFail = errors.New("failed to parse config file")
	ErrInvalidConfig     = errors.New("invalid config")
)

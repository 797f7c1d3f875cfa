package config

import "errors"

var (
	// ErrEmptyDatabasePath is returned when database path is empty
	ErrEmptyDatabasePath = errors.New("database_path cannot be empty")
	// ErrInvalidFetchTimeout is returned when the download timeout is not greater than 0
	ErrInvalidFetchTimeout = errors.New("fetch.timeout must be greater than 0")
	// ErrInvalidConcurrency is returned when check concurrency is not greater than 0
	ErrInvalidConcurrency = errors.New("check.concurrency must be greater than 0")
	// ErrInvalidTimeout is returned when the probe timeout is not greater than 0
	ErrInvalidTimeout = errors.New("check.timeout must be greater than 0")
	// ErrInvalidBatchLimit is returned when the batch limit is not greater than 0
	ErrInvalidBatchLimit = errors.New("check.batch_limit must be greater than 0")
	// ErrInvalidBatchFraction is returned when the batch fraction is outside [0, 1]
	ErrInvalidBatchFraction = errors.New("check.batch_fraction must be between 0 and 1")
	// ErrInvalidResultLimit is returned when the result limit is not greater than 0
	ErrInvalidResultLimit = errors.New("search.result_limit must be greater than 0")
	// ErrInvalidLogFormat is returned for log formats other than json and text
	ErrInvalidLogFormat = errors.New("log.format must be json or text")
)

package storage

import (
	"fmt"

	"github.com/rohmanhakim/wayback-robots/internal/metadata"
	"github.com/rohmanhakim/wayback-robots/pkg/failure"
)

type StorageErrorCause string

const (
	ErrCauseDiskFull              StorageErrorCause = "disk is full"
	ErrCauseWriteFailure          StorageErrorCause = "write failed"
	ErrCausePathError             StorageErrorCause = "output path error"
	ErrCauseHashComputationFailed StorageErrorCause = "hash computation failed"
)

// StorageError reports why the path list could not be persisted.
// Path is the directory or file involved, empty when none was touched.
type StorageError struct {
	Message   string
	Retryable bool
	Cause     StorageErrorCause
	Path      string
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage error: %s: %s", e.Cause, e.Message)
	}
	return fmt.Sprintf("storage error: %s (%s): %s", e.Cause, e.Path, e.Message)
}

func (e *StorageError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapStorageErrorToMetadataCause is observational only.
func mapStorageErrorToMetadataCause(err *StorageError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseDiskFull, ErrCauseWriteFailure, ErrCausePathError:
		return metadata.CauseStorageFailure
	case ErrCauseHashComputationFailed:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}

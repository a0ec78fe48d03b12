package robots

import (
	"fmt"

	"github.com/rohmanhakim/wayback-robots/internal/metadata"
	"github.com/rohmanhakim/wayback-robots/pkg/failure"
)

type RobotsErrorCause string

const (
	ErrCauseInvalidSnapshotURL RobotsErrorCause = "invalid snapshot url"
	ErrCauseSnapshotFetch      RobotsErrorCause = "snapshot fetch failed"
	ErrCauseDocumentParse      RobotsErrorCause = "unreadable snapshot document"
)

type RobotsError struct {
	Message   string
	Retryable bool
	Cause     RobotsErrorCause
	Err       error
}

func (e *RobotsError) Error() string {
	return fmt.Sprintf("robots error: %s: %s", e.Cause, e.Message)
}

func (e *RobotsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *RobotsError) IsRetryable() bool {
	return e.Retryable
}

func (e *RobotsError) Unwrap() error {
	return e.Err
}

// mapRobotsErrorToMetadataCause maps robots-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapRobotsErrorToMetadataCause(err *RobotsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseSnapshotFetch:
		return metadata.CauseNetworkFailure
	case ErrCauseDocumentParse:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}

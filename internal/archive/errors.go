package archive

import (
	"fmt"

	"github.com/rohmanhakim/wayback-robots/internal/metadata"
	"github.com/rohmanhakim/wayback-robots/pkg/failure"
)

type ArchiveErrorCause string

const (
	ErrCauseInvalidQuery  ArchiveErrorCause = "invalid cdx query"
	ErrCauseListFailure   ArchiveErrorCause = "cdx request failed"
	ErrCauseSiteExcluded  ArchiveErrorCause = "site excluded from the archive"
	ErrCauseDecodeFailure ArchiveErrorCause = "undecodable cdx response"
)

type ArchiveError struct {
	Message   string
	Retryable bool
	Cause     ArchiveErrorCause
	Err       error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive error: %s: %s", e.Cause, e.Message)
}

func (e *ArchiveError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *ArchiveError) IsRetryable() bool {
	return e.Retryable
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// mapArchiveErrorToMetadataCause maps archive-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapArchiveErrorToMetadataCause(err *ArchiveError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseListFailure:
		return metadata.CauseNetworkFailure
	case ErrCauseSiteExcluded:
		return metadata.CausePolicyDisallow
	case ErrCauseDecodeFailure:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}

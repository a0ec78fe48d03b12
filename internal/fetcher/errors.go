package fetcher

import (
	"fmt"

	"github.com/rohmanhakim/wayback-robots/internal/metadata"
	"github.com/rohmanhakim/wayback-robots/pkg/failure"
)

type FetchErrorCause string

const (
	ErrCauseNetworkFailure        FetchErrorCause = "network issues"
	ErrCauseReadResponseBodyError FetchErrorCause = "failed to read response body"
	ErrCauseBodyTooLarge          FetchErrorCause = "response body too large"
	ErrCauseRedirectLimitExceeded FetchErrorCause = "reached redirect limit"
	ErrCauseRequestPageForbidden  FetchErrorCause = "forbidden"
	ErrCauseSiteExcluded          FetchErrorCause = "site excluded from the archive"
	ErrCauseRequestTooMany        FetchErrorCause = "too many requests"
	ErrCauseRequest4xx            FetchErrorCause = "4xx"
	ErrCauseRequest5xx            FetchErrorCause = "5xx"
)

type FetchError struct {
	Message    string
	Retryable  bool
	Cause      FetchErrorCause
	StatusCode int
}

func (e *FetchError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("fetcher error: %s", e.Cause)
	}
	return fmt.Sprintf("fetcher error: %s: %s", e.Cause, e.Message)
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable returns whether this error is retryable
func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

// IsThrottle reports whether the archive asked us to slow down.
func (e *FetchError) IsThrottle() bool {
	return e.Cause == ErrCauseRequestTooMany || e.Cause == ErrCauseRequest5xx
}

// mapFetchErrorToMetadataCause maps fetcher-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapFetchErrorToMetadataCause(err *FetchError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseNetworkFailure, ErrCauseRequest5xx, ErrCauseReadResponseBodyError:
		return metadata.CauseNetworkFailure
	case ErrCauseRequestTooMany, ErrCauseRequestPageForbidden, ErrCauseSiteExcluded:
		return metadata.CausePolicyDisallow
	case ErrCauseBodyTooLarge:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}

package metadata

import (
	"time"
)

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, metrics, reporting).

	Rules:
	 - ErrorCause MUST NOT influence control flow.
	 - ErrorCause MUST NOT be used for retry, continuation, or abort decisions.
	 - Pipeline packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown
  - The failure does not map cleanly to any known category.

# CauseNetworkFailure
  - Transport failure or remote unavailability (timeouts, DNS, resets, 5xx).

# CausePolicyDisallow
  - The archive refused to serve the request (403, 429, excluded sites).

# CauseContentInvalid
  - The archive answered but the payload could not be used (undecodable CDX JSON).

# CauseStorageFailure
  - Failure while persisting the path list (disk full, permissions).

# CauseRetryFailure
  - Retries were exhausted or interrupted.
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CausePolicyDisallow
	CauseContentInvalid
	CauseStorageFailure
	CauseRetryFailure
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseRetryFailure:
		return "retry_failure"
	default:
		return "unknown"
	}
}

// FetchKind tells the two archive endpoints apart.
type FetchKind string

const (
	FetchKindCDX      FetchKind = "cdx"
	FetchKindSnapshot FetchKind = "snapshot"
)

type ArtifactKind string

const (
	ArtifactPathList ArtifactKind = "path_list"
	ArtifactMetrics  ArtifactKind = "metrics"
)

/*
runStats
  - Terminal, derived summary of a completed run
  - Computed by the scheduler after the snapshot loop ends
  - Recorded exactly once
*/
type runStats struct {
	snapshots   int
	processed   int
	failed      int
	uniquePaths int
	durationMs  int64
}

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrTime        AttributeKey = "time"
	AttrURL         AttributeKey = "url"
	AttrHost        AttributeKey = "host"
	AttrTimestamp   AttributeKey = "timestamp"
	AttrHTTPStatus  AttributeKey = "http_status"
	AttrWritePath   AttributeKey = "write_path"
	AttrDigest      AttributeKey = "digest"
	AttrContentHash AttributeKey = "content_hash"
	AttrMessage     AttributeKey = "message"
	AttrCount       AttributeKey = "count"
)

// attrsToKeyvals flattens attributes into the alternating key/value form
// structured loggers expect.
func attrsToKeyvals(observedAt time.Time, attrs []Attribute) []interface{} {
	keyvals := make([]interface{}, 0, 2*len(attrs)+2)
	if !observedAt.IsZero() {
		keyvals = append(keyvals, string(AttrTime), observedAt.Format(time.RFC3339))
	}
	for _, attr := range attrs {
		keyvals = append(keyvals, string(attr.Key), attr.Value)
	}
	return keyvals
}

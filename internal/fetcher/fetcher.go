package fetcher

import (
	"context"

	"github.com/rohmanhakim/wayback-robots/pkg/failure"
	"github.com/rohmanhakim/wayback-robots/pkg/retry"
)

// Fetcher performs one logical GET against the archive, retrying transient
// failures according to retryParam. Both the CDX lister and the snapshot
// extractor go through it, so every archive request is counted once in the
// fetch metrics no matter how many attempts it took.
type Fetcher interface {
	Fetch(
		ctx context.Context,
		fetchParam FetchParam,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}

var _ Fetcher = (*ArchiveFetcher)(nil)

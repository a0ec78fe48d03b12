package robots

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rohmanhakim/wayback-robots/internal/archive"
	"github.com/rohmanhakim/wayback-robots/internal/fetcher"
	"github.com/rohmanhakim/wayback-robots/internal/metadata"
	"github.com/rohmanhakim/wayback-robots/internal/robots/cache"
	"github.com/rohmanhakim/wayback-robots/pkg/failure"
	"github.com/rohmanhakim/wayback-robots/pkg/hashutil"
	"github.com/rohmanhakim/wayback-robots/pkg/retry"
)

/*
PathExtractor

Responsibilities:
- Build the replay URL of a snapshot and fetch it as text
- Apply the configured document mode
- Collect the value of every Disallow directive
- Cache results per snapshot; captures are immutable

It does not pace requests and does not decide what a failure means for the run.
*/

type Extractor interface {
	Extract(ctx context.Context, snapshot archive.Snapshot) ([]string, failure.ClassifiedError)
}

type ExtractParam struct {
	archiveBase url.URL
	userAgent   string
	mode        DocumentMode
	trimPaths   bool
}

func NewExtractParam(archiveBase url.URL, userAgent string, mode DocumentMode, trimPaths bool) ExtractParam {
	return ExtractParam{
		archiveBase: archiveBase,
		userAgent:   userAgent,
		mode:        mode,
		trimPaths:   trimPaths,
	}
}

type PathExtractor struct {
	metadataSink metadata.MetadataSink
	logger       *log.Logger
	fetcher      fetcher.Fetcher
	cache        cache.Cache
	param        ExtractParam
	retryParam   retry.RetryParam
}

// NewPathExtractor wires an extractor. The cache is optional; nil disables it.
func NewPathExtractor(
	metadataSink metadata.MetadataSink,
	logger *log.Logger,
	f fetcher.Fetcher,
	c cache.Cache,
	param ExtractParam,
	retryParam retry.RetryParam,
) *PathExtractor {
	return &PathExtractor{
		metadataSink: metadataSink,
		logger:       logger,
		fetcher:      f,
		cache:        c,
		param:        param,
		retryParam:   retryParam,
	}
}

func (p *PathExtractor) Extract(ctx context.Context, snapshot archive.Snapshot) ([]string, failure.ClassifiedError) {
	snapshotURL, err := snapshot.URL(p.param.archiveBase)
	if err != nil {
		robotsErr := &RobotsError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseInvalidSnapshotURL,
			Err:       err,
		}
		p.recordError(snapshot, robotsErr)
		return nil, robotsErr
	}
	target := snapshotURL.String()

	if entry, ok := p.lookup(ctx, snapshot); ok {
		p.logger.Debug("using cached extraction", "url", target, "digest", entry.Digest)
		p.logResult(target, entry.Paths, entry.Scanned)
		return entry.Paths, nil
	}

	p.logger.Info(fmt.Sprintf("Fetching %s", target))

	result, fetchErr := p.fetcher.Fetch(
		ctx,
		fetcher.NewFetchParam(snapshotURL, p.param.userAgent, metadata.FetchKindSnapshot),
		p.retryParam,
	)
	if fetchErr != nil {
		robotsErr := &RobotsError{
			Message:   fetchErr.Error(),
			Retryable: fetchErr.Severity() == failure.SeverityRecoverable,
			Cause:     ErrCauseSnapshotFetch,
			Err:       fetchErr,
		}
		p.recordError(snapshot, robotsErr)
		return nil, robotsErr
	}

	text, ok, parseErr := prepareDocument(decodeCapture(result.Body(), result.ContentType()), p.param.mode)
	if parseErr != nil {
		robotsErr := &RobotsError{
			Message:   parseErr.Error(),
			Retryable: false,
			Cause:     ErrCauseDocumentParse,
			Err:       parseErr,
		}
		p.recordError(snapshot, robotsErr)
		return nil, robotsErr
	}

	paths := []string{}
	scanned := false
	if ok {
		paths, scanned = ExtractDisallowPaths(text, p.param.trimPaths)
	} else {
		p.logger.Debug("ignoring non-text capture", "url", target, "mode", p.param.mode, "media_type", result.MediaType())
	}
	p.logResult(target, paths, scanned)

	p.store(ctx, snapshot, result, paths, scanned)
	return paths, nil
}

func (p *PathExtractor) logResult(target string, paths []string, scanned bool) {
	if scanned {
		p.logger.Info(fmt.Sprintf("Found %d paths in %s", len(paths), target))
		return
	}
	p.logger.Info(fmt.Sprintf("No Disallow directives found in %s", target))
}

func (p *PathExtractor) lookup(ctx context.Context, snapshot archive.Snapshot) (cachedExtraction, bool) {
	if p.cache == nil {
		return cachedExtraction{}, false
	}
	data, found := p.cache.Get(ctx, CacheKey(snapshot))
	if !found {
		return cachedExtraction{}, false
	}
	entry, err := deserializeExtraction(data)
	if err != nil || entry.Mode != p.param.mode || entry.Trim != p.param.trimPaths {
		return cachedExtraction{}, false
	}
	if entry.Paths == nil {
		entry.Paths = []string{}
	}
	return entry, true
}

func (p *PathExtractor) store(
	ctx context.Context,
	snapshot archive.Snapshot,
	result fetcher.FetchResult,
	paths []string,
	scanned bool,
) {
	if p.cache == nil {
		return
	}
	digest, err := hashutil.HashBytes(result.Body(), hashutil.HashAlgoBLAKE3)
	if err != nil {
		return
	}
	data, err := serializeExtraction(cachedExtraction{
		Paths:     paths,
		Scanned:   scanned,
		Digest:    digest,
		FetchedAt: time.Now().UTC(),
		Status:    result.Code(),
		Mode:      p.param.mode,
		Trim:      p.param.trimPaths,
	})
	if err != nil {
		return
	}
	p.cache.Put(ctx, CacheKey(snapshot), data)
}

func (p *PathExtractor) recordError(snapshot archive.Snapshot, err *RobotsError) {
	p.metadataSink.RecordError(
		time.Now(),
		"robots",
		"PathExtractor.Extract",
		mapRobotsErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrTimestamp, snapshot.Timestamp),
			metadata.NewAttr(metadata.AttrURL, snapshot.Original),
		},
	)
}

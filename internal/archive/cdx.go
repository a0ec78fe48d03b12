package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rohmanhakim/wayback-robots/internal/fetcher"
	"github.com/rohmanhakim/wayback-robots/internal/metadata"
	"github.com/rohmanhakim/wayback-robots/pkg/failure"
	"github.com/rohmanhakim/wayback-robots/pkg/retry"
)

/*
CDXLister

Responsibilities:
- Ask the CDX index for every 200 capture of <host>/robots.txt, collapsed by digest
- Drop the header row and malformed rows
- Apply the optional snapshot cap

An empty listing is not an error. Failures are classified and returned;
deciding what to do about them is the scheduler's business.
*/

type Lister interface {
	List(ctx context.Context, host string) ([]Snapshot, failure.ClassifiedError)
}

type CDXLister struct {
	metadataSink metadata.MetadataSink
	logger       *log.Logger
	fetcher      fetcher.Fetcher
	listParam    ListParam
	retryParam   retry.RetryParam
}

func NewCDXLister(
	metadataSink metadata.MetadataSink,
	logger *log.Logger,
	f fetcher.Fetcher,
	listParam ListParam,
	retryParam retry.RetryParam,
) *CDXLister {
	return &CDXLister{
		metadataSink: metadataSink,
		logger:       logger,
		fetcher:      f,
		listParam:    listParam,
		retryParam:   retryParam,
	}
}

func (c *CDXLister) List(ctx context.Context, host string) ([]Snapshot, failure.ClassifiedError) {
	queryURL, err := BuildCDXQueryURL(c.listParam.archiveBase, host, c.listParam.from, c.listParam.to)
	if err != nil {
		archiveErr := &ArchiveError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseInvalidQuery,
			Err:       err,
		}
		c.recordError(host, archiveErr)
		return nil, archiveErr
	}

	c.logger.Info(fmt.Sprintf("Fetching robots.txt snapshots from %s", queryURL.String()))

	result, fetchErr := c.fetcher.Fetch(
		ctx,
		fetcher.NewFetchParam(queryURL, c.listParam.userAgent, metadata.FetchKindCDX),
		c.retryParam,
	)
	if fetchErr != nil {
		cause := ErrCauseListFailure
		var fe *fetcher.FetchError
		if errors.As(fetchErr, &fe) && fe.Cause == fetcher.ErrCauseSiteExcluded {
			cause = ErrCauseSiteExcluded
		}
		archiveErr := &ArchiveError{
			Message:   fetchErr.Error(),
			Retryable: fetchErr.Severity() == failure.SeverityRecoverable,
			Cause:     cause,
			Err:       fetchErr,
		}
		c.recordError(host, archiveErr)
		return nil, archiveErr
	}

	snapshots, decodeErr := decodeCDXRows(result.Body())
	if decodeErr != nil {
		archiveErr := &ArchiveError{
			Message:   decodeErr.Error(),
			Retryable: false,
			Cause:     ErrCauseDecodeFailure,
			Err:       decodeErr,
		}
		c.recordError(host, archiveErr)
		return nil, archiveErr
	}

	if max := c.listParam.maxSnapshots; max > 0 && len(snapshots) > max {
		snapshots = snapshots[:max]
	}
	return snapshots, nil
}

// decodeCDXRows turns the CDX JSON table into snapshots. The first row is
// the field header. An empty body or an empty table yields no snapshots.
func decodeCDXRows(body []byte) ([]Snapshot, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return []Snapshot{}, nil
	}

	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []Snapshot{}, nil
	}

	snapshots := make([]Snapshot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		snapshots = append(snapshots, Snapshot{Timestamp: row[0], Original: row[1]})
	}
	return snapshots, nil
}

func (c *CDXLister) recordError(host string, err *ArchiveError) {
	c.metadataSink.RecordError(
		time.Now(),
		"archive",
		"CDXLister.List",
		mapArchiveErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrHost, host),
		},
	)
}

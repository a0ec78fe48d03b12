package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rohmanhakim/wayback-robots/internal/metadata"
	"github.com/rohmanhakim/wayback-robots/pkg/failure"
	"github.com/rohmanhakim/wayback-robots/pkg/retry"
)

/*
Responsibilities

- Perform HTTP requests against the web archive
- Apply headers and timeouts
- Follow redirects (the archive redirects to the nearest capture)
- Classify responses

Fetch Semantics

- Only 2xx responses carry a body back to the caller
- Bodies are capped at MaxBodyBytes
- A 403 carrying the archive's blocked-site marker means the domain is excluded
- Every request is recorded with metadata

The fetcher never parses content; it only returns bytes and metadata.
*/

const (
	DefaultUserAgent = "wayback-robots/1.0"
	acceptHeader     = "text/plain,application/json,*/*"

	// MaxBodyBytes bounds how much of a single archive response is read.
	MaxBodyBytes = 10 << 20

	// 403 bodies are only sniffed for the exclusion marker.
	forbiddenSniffBytes = 64 << 10
)

var blockedSiteMarkers = [][]byte{
	[]byte("AdministrativeAccessControlException"),
	[]byte("Blocked Site Error"),
}

type ArchiveFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
}

// NewArchiveFetcher builds a fetcher whose client gives up after timeout.
// A zero timeout means no client-side limit.
func NewArchiveFetcher(
	metadataSink metadata.MetadataSink,
	timeout time.Duration,
) ArchiveFetcher {
	return ArchiveFetcher{
		metadataSink: metadataSink,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (a *ArchiveFetcher) Fetch(
	ctx context.Context,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "ArchiveFetcher.Fetch"
	startTime := time.Now()

	res := retry.Retry(ctx, retryParam, func() (FetchResult, failure.ClassifiedError) {
		return a.performFetch(ctx, fetchParam.fetchUrl, fetchParam.userAgent)
	})

	duration := time.Since(startTime)
	err := res.Err()

	var statusCode int
	var contentType string
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			statusCode = fetchErr.StatusCode
		}
	} else {
		result := res.Value()
		statusCode = result.Code()
		contentType = result.ContentType()
	}

	a.metadataSink.RecordFetch(
		fetchParam.fetchUrl.String(),
		statusCode,
		duration,
		contentType,
		res.Attempts(),
		fetchParam.kind,
	)

	if err != nil {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			a.recordRetryError(callerMethod, fetchParam.fetchUrl, retryErr)
		} else {
			a.recordFetchError(callerMethod, fetchParam.fetchUrl, err)
		}
		return FetchResult{}, err
	}

	result := res.Value()
	result.attempts = res.Attempts()
	return result, nil
}

func (a *ArchiveFetcher) recordFetchError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		a.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			callerMethod,
			mapFetchErrorToMetadataCause(fetchError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
				metadata.NewAttr(metadata.AttrHTTPStatus, fmt.Sprintf("%d", fetchError.StatusCode)),
			},
		)
	}
}

func (a *ArchiveFetcher) recordRetryError(callerMethod string, fetchUrl url.URL, retryError *retry.RetryError) {
	a.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		callerMethod,
		metadata.CauseRetryFailure,
		retryError.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrMessage, retryError.Message),
			metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
		},
	)
}

func (a *ArchiveFetcher) performFetch(ctx context.Context, fetchUrl url.URL, userAgent string) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	for key, value := range requestHeaders(userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		// a cancelled run must not be retried
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: ctx.Err() == nil,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable:  true,
			Cause:      ErrCauseRequest5xx,
			StatusCode: resp.StatusCode,
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return FetchResult{}, &FetchError{
			Message:    "rate limited (429)",
			Retryable:  true,
			Cause:      ErrCauseRequestTooMany,
			StatusCode: resp.StatusCode,
		}

	case resp.StatusCode == http.StatusForbidden:
		sniff, _ := io.ReadAll(io.LimitReader(resp.Body, forbiddenSniffBytes))
		if isBlockedSite(sniff) {
			return FetchResult{}, &FetchError{
				Message:    fmt.Sprintf("%s is excluded by the archive", fetchUrl.String()),
				Retryable:  false,
				Cause:      ErrCauseSiteExcluded,
				StatusCode: resp.StatusCode,
			}
		}
		return FetchResult{}, &FetchError{
			Message:    "access forbidden (403)",
			Retryable:  false,
			Cause:      ErrCauseRequestPageForbidden,
			StatusCode: resp.StatusCode,
		}

	case resp.StatusCode >= 400:
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable:  false,
			Cause:      ErrCauseRequest4xx,
			StatusCode: resp.StatusCode,
		}

	case resp.StatusCode >= 300:
		// http.Client follows redirects; landing here means the chain was cut short
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("redirect error: %d", resp.StatusCode),
			Retryable:  false,
			Cause:      ErrCauseRedirectLimitExceeded,
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Retryable:  true,
			Cause:      ErrCauseReadResponseBodyError,
			StatusCode: resp.StatusCode,
		}
	}
	if len(body) > MaxBodyBytes {
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("body exceeds %d bytes", MaxBodyBytes),
			Retryable:  false,
			Cause:      ErrCauseBodyTooLarge,
			StatusCode: resp.StatusCode,
		}
	}

	return FetchResult{
		url:         fetchUrl,
		body:        body,
		statusCode:  resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
	}, nil
}

func isBlockedSite(body []byte) bool {
	for _, marker := range blockedSiteMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func requestHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return map[string]string{
		"User-Agent": userAgent,
		"Accept":     acceptHeader,
	}
}

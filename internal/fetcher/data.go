package fetcher

import (
	"mime"
	"net/url"

	"github.com/rohmanhakim/wayback-robots/internal/metadata"
)

// FetchParam names one archive request: the CDX index or a snapshot replay.
type FetchParam struct {
	fetchUrl  url.URL
	userAgent string
	kind      metadata.FetchKind
}

func NewFetchParam(fetchUrl url.URL, userAgent string, kind metadata.FetchKind) FetchParam {
	return FetchParam{
		fetchUrl:  fetchUrl,
		userAgent: userAgent,
		kind:      kind,
	}
}

func (f FetchParam) URL() url.URL {
	return f.fetchUrl
}

func (f FetchParam) Kind() metadata.FetchKind {
	return f.kind
}

// FetchResult is a successful (2xx) archive response with its body fully read.
type FetchResult struct {
	url         url.URL
	body        []byte
	statusCode  int
	contentType string
	attempts    int
}

func (f *FetchResult) URL() url.URL {
	return f.url
}

func (f *FetchResult) Body() []byte {
	return f.body
}

func (f *FetchResult) Code() int {
	return f.statusCode
}

// ContentType is the raw Content-Type header, parameters included.
func (f *FetchResult) ContentType() string {
	return f.contentType
}

// MediaType is ContentType without parameters, lowercased. It is empty when
// the header is missing or malformed.
func (f *FetchResult) MediaType() string {
	mediaType, _, err := mime.ParseMediaType(f.contentType)
	if err != nil {
		return ""
	}
	return mediaType
}

// Attempts is the number of requests it took to obtain the result.
func (f *FetchResult) Attempts() int {
	return f.attempts
}

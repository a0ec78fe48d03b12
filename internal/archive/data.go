package archive

import (
	"fmt"
	"net/url"

	"github.com/rohmanhakim/wayback-robots/pkg/urlutil"
)

// Snapshot identifies one archived capture of a robots.txt file.
type Snapshot struct {
	Timestamp string
	Original  string
}

func (s Snapshot) String() string {
	return s.Timestamp + "/" + s.Original
}

// URL returns the replay address of the capture under archiveBase:
// <archive>/web/<timestamp>/<original>.
func (s Snapshot) URL(archiveBase url.URL) (url.URL, error) {
	raw := urlutil.JoinBase(archiveBase, fmt.Sprintf("/web/%s/%s", s.Timestamp, s.Original))
	u, err := url.Parse(raw)
	if err != nil {
		return url.URL{}, err
	}
	return *u, nil
}

// ListParam bounds a CDX listing.
type ListParam struct {
	archiveBase  url.URL
	userAgent    string
	from         string
	to           string
	maxSnapshots int
}

func NewListParam(
	archiveBase url.URL,
	userAgent string,
	from string,
	to string,
	maxSnapshots int,
) ListParam {
	return ListParam{
		archiveBase:  archiveBase,
		userAgent:    userAgent,
		from:         from,
		to:           to,
		maxSnapshots: maxSnapshots,
	}
}

func (p ListParam) ArchiveBase() url.URL {
	return p.archiveBase
}

func (p ListParam) From() string {
	return p.from
}

func (p ListParam) To() string {
	return p.to
}

// MaxSnapshots is the listing cap; zero means unlimited.
func (p ListParam) MaxSnapshots() int {
	return p.maxSnapshots
}

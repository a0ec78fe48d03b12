package archive

import (
	"net/url"
	"strings"

	"github.com/rohmanhakim/wayback-robots/pkg/urlutil"
)

const DefaultArchiveURL = "https://web.archive.org"

// BuildCDXQueryURL renders the CDX search request for <host>/robots.txt.
// The host is used verbatim, it is neither validated nor escaped.
func BuildCDXQueryURL(archiveBase url.URL, host string, from string, to string) (url.URL, error) {
	var query strings.Builder
	query.WriteString("url=")
	query.WriteString(host)
	query.WriteString("/robots.txt&output=json&fl=timestamp,original&filter=statuscode:200&collapse=digest")
	if from != "" {
		query.WriteString("&from=")
		query.WriteString(from)
	}
	if to != "" {
		query.WriteString("&to=")
		query.WriteString(to)
	}

	u, err := url.Parse(urlutil.JoinBase(archiveBase, "/cdx/search/cdx"))
	if err != nil {
		return url.URL{}, err
	}
	u.RawQuery = query.String()
	return *u, nil
}

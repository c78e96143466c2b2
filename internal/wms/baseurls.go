package wms

import (
	"bytes"
	"context"
	"encoding/xml"
	"regexp"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// onlineResourceExpr selects OnlineResource elements below any HTTP DCP
// block, whatever the operation and whatever the namespace.
const onlineResourceExpr = `//*[local-name()='HTTP']//*[local-name()='OnlineResource']`

const sessionIDMarker = ";jsessionid="

// The session value ends at the query string or at the next path segment.
var sessionIDPattern = regexp.MustCompile(`;jsessionid=[^?/]*`)

// BaseURLSet is an unordered set of base URLs.
type BaseURLSet map[string]struct{}

func (s BaseURLSet) Add(u string) {
	s[u] = struct{}{}
}

func (s BaseURLSet) Contains(u string) bool {
	_, ok := s[u]
	return ok
}

// Sorted returns the members in lexical order.
func (s BaseURLSet) Sorted() []string {
	urls := make([]string, 0, len(s))
	for u := range s {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	return urls
}

// Join renders the set the way catalog extras store it.
func (s BaseURLSet) Join() string {
	return strings.Join(s.Sorted(), " ")
}

// StripSessionID removes a jsessionid value, keeping the marker so distinct
// sessions collapse to one string, and drops the query string. Path segments
// after the session token are kept.
func StripSessionID(u string) string {
	u = sessionIDPattern.ReplaceAllLiteralString(u, sessionIDMarker)
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}

	return u
}

// ExtractBaseURLs collects every HTTP OnlineResource endpoint advertised by
// the server's default capabilities document. Failures of any kind yield an
// empty set.
func (p *Probe) ExtractBaseURLs(ctx context.Context, rawURL string) BaseURLSet {
	set := BaseURLSet{}

	outcome := p.fetcher.Fetch(ctx, BuildCapabilitiesURL(rawURL, nil))
	if outcome.Kind != FetchSuccess {
		return set
	}

	hrefs, err := onlineResources(outcome.Body)
	if err != nil {
		p.logger.Debug("capabilities not parseable for base urls", zap.String("url", rawURL), zap.Error(err))
		return set
	}

	for _, href := range hrefs {
		set.Add(StripSessionID(href))
	}

	return set
}

// onlineResources decodes as leniently as the parsers do, so a document they
// accept also yields its endpoints.
func onlineResources(body []byte) ([]string, error) {
	doc, err := xmlquery.ParseWithOptions(bytes.NewReader(body), xmlquery.ParserOptions{
		Decoder: &xmlquery.DecoderOptions{
			Strict:        false,
			Entity:        xml.HTMLEntity,
			CharsetReader: charset.NewReaderLabel,
		},
	})
	if err != nil {
		return nil, err
	}

	if !strings.Contains(strings.ToLower(doc.OutputXML(true)), "wms") {
		return nil, nil
	}

	nodes, err := xmlquery.QueryAll(doc, onlineResourceExpr)
	if err != nil {
		return nil, err
	}

	var hrefs []string
	for _, n := range nodes {
		for _, attr := range n.Attr {
			if attr.Name.Local != "href" {
				continue
			}
			if href := strings.TrimSpace(attr.Value); href != "" {
				hrefs = append(hrefs, href)
			}
		}
	}

	return hrefs, nil
}

package wms

import (
	"net/url"
	"strings"
)

const (
	paramService = "service"
	paramRequest = "request"
	paramVersion = "version"
)

type queryParam struct {
	Key   string
	Value string
}

// queryParams is an ordered query string. Lookups on the OWS keys are
// case-insensitive, every other key is kept as the caller wrote it.
type queryParams []queryParam

func parseQuery(rawQuery string) queryParams {
	var params queryParams

	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}

		key, value, _ := strings.Cut(part, "=")
		params = append(params, queryParam{Key: unescape(key), Value: unescape(value)})
	}

	return params
}

func unescape(s string) string {
	unescaped, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}

	return unescaped
}

func (q queryParams) has(key string) bool {
	for _, p := range q {
		if strings.EqualFold(p.Key, key) {
			return true
		}
	}

	return false
}

func (q queryParams) without(key string) queryParams {
	kept := q[:0:0]
	for _, p := range q {
		if !strings.EqualFold(p.Key, key) {
			kept = append(kept, p)
		}
	}

	return kept
}

func (q queryParams) encode() string {
	var b strings.Builder
	for i, p := range q {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}

	return b.String()
}

// BuildCapabilitiesURL turns an arbitrary resource URL into a GetCapabilities
// request. service and request are only added when no parameter of that name
// exists in any casing. A nil version drops any version parameter so the
// server answers with its default; otherwise the version is forced to the
// given value.
func BuildCapabilitiesURL(rawURL string, version *string) string {
	base, fragment, hasFragment := strings.Cut(rawURL, "#")
	base, rawQuery, _ := strings.Cut(base, "?")

	params := parseQuery(rawQuery)
	if !params.has(paramService) {
		params = append(params, queryParam{Key: paramService, Value: "WMS"})
	}
	if !params.has(paramRequest) {
		params = append(params, queryParam{Key: paramRequest, Value: "GetCapabilities"})
	}

	params = params.without(paramVersion)
	if version != nil {
		params = append(params, queryParam{Key: paramVersion, Value: *version})
	}

	result := base + "?" + params.encode()
	if hasFragment {
		result += "#" + fragment
	}

	return result
}

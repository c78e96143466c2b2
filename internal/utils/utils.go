package utils

import (
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var envPattern = regexp.MustCompile(`\${([^}]+)}`)

// QueryParamsContainMultipleKeys reports whether a key occurs more than once
// when compared case-insensitively, e.g. url and URL.
func QueryParamsContainMultipleKeys(queryParams url.Values) bool {
	params := map[string]bool{}

	for key, values := range queryParams {
		lowercaseKey := strings.ToLower(key)
		if params[lowercaseKey] || len(values) > 1 {
			return true
		}

		params[lowercaseKey] = true
	}

	return false
}

// EnvSubst replaces ${NAME} with the value of the environment variable NAME,
// or with nothing when it is unset.
func EnvSubst(input string) string {
	return envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := match[2 : len(match)-1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}

		return ""
	})
}

func ReadUserIP(r *http.Request) string {
	forwardedFor := r.Header.Get("X-Forwarded-For")
	if forwardedFor != "" {
		ips := strings.Split(forwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func StringInSlice(a string, list []string) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}

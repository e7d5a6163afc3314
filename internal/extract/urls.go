// Package extract holds the pure text and URL helpers used when recording
// provider answers: URL discovery, hostname grouping and source titles.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"mvdan.cc/xurls/v2"
)

// preferredPaths mark documentation-like URLs that make the best
// representative link for a domain.
var preferredPaths = []string{"/docs", "/api", "/developer", "/guide", "/tutorial"}

var excludedHosts = map[string]bool{
	"example.com": true,
	"localhost":   true,
}

// HostGroup is every URL seen for a single hostname.
type HostGroup struct {
	Host string
	URLs []string
}

// URLs returns every usable URL found in text, normalized and deduplicated,
// in order of first appearance.
func URLs(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var urls []string
	seen := make(map[string]bool)
	for _, match := range xurls.Relaxed().FindAllString(text, -1) {
		normalized, ok := NormalizeURL(match)
		if !ok || seen[normalized] {
			continue
		}
		seen[normalized] = true
		urls = append(urls, normalized)
	}
	return urls
}

// NormalizeURL turns a raw match into an absolute http(s) URL. Bare domains
// get an https scheme and trailing sentence punctuation is dropped. Emails,
// placeholder hosts and hosts shorter than three characters are rejected.
func NormalizeURL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, ".,;!?")
	if s == "" {
		return "", false
	}

	if !strings.Contains(s, "://") {
		if strings.Contains(s, "@") || strings.HasPrefix(strings.ToLower(s), "mailto:") {
			return "", false
		}
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.User != nil {
		return "", false
	}

	host := normalizeHost(u.Hostname())
	if len(host) < 3 || excludedHosts[host] {
		return "", false
	}
	return u.String(), true
}

// Hostname returns the lower-cased host of rawURL without a leading "www.".
func Hostname(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %s: %w", rawURL, err)
	}
	host := normalizeHost(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no hostname found in URL: %s", rawURL)
	}
	return host, nil
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// Union merges URL lists, keeping the first occurrence of each.
func Union(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, u := range list {
			u = strings.TrimSpace(u)
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// GroupByHost buckets URLs by hostname in order of first appearance. URLs
// that do not parse or resolve to an excluded host are dropped.
func GroupByHost(urls []string) []HostGroup {
	var groups []HostGroup
	index := make(map[string]int)
	for _, raw := range urls {
		host, err := Hostname(raw)
		if err != nil || len(host) < 3 || excludedHosts[host] {
			continue
		}
		i, ok := index[host]
		if !ok {
			i = len(groups)
			index[host] = i
			groups = append(groups, HostGroup{Host: host})
		}
		groups[i].URLs = append(groups[i].URLs, raw)
	}
	return groups
}

// PrimaryURL picks the representative URL of a group: the first one whose
// path looks like documentation, otherwise the first URL.
func PrimaryURL(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	for _, u := range urls {
		p := urlPath(u)
		for _, marker := range preferredPaths {
			if strings.Contains(p, marker) {
				return u
			}
		}
	}
	return urls[0]
}

// urlPath is the path component of rawURL, so hosts such as
// developer.example.org do not count as documentation paths.
func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}

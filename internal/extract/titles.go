package extract

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

type siteTitle struct {
	hosts []string
	title string
}

// knownSites are matched against the host and its parent domains.
var knownSites = []siteTitle{
	{[]string{"github.com"}, "GitHub Repository"},
	{[]string{"stackoverflow.com"}, "Stack Overflow Discussion"},
	{[]string{"medium.com"}, "Medium Article"},
	{[]string{"dev.to"}, "Dev.to Article"},
	{[]string{"reddit.com"}, "Reddit Discussion"},
	{[]string{"youtube.com"}, "YouTube Video"},
	{[]string{"twitter.com", "x.com"}, "Social Media Post"},
	{[]string{"linkedin.com"}, "LinkedIn Article"},
	{[]string{"hackernews.com", "news.ycombinator.com"}, "Hacker News Discussion"},
	{[]string{"discord.com", "discord.gg"}, "Discord Community"},
	{[]string{"slack.com"}, "Slack Community"},
	{[]string{"substack.com"}, "Substack Newsletter"},
	{[]string{"hashnode.dev"}, "Hashnode Article"},
	{[]string{"css-tricks.com"}, "CSS-Tricks Article"},
	{[]string{"smashingmagazine.com"}, "Smashing Magazine Article"},
	{[]string{"sitepoint.com"}, "SitePoint Article"},
	{[]string{"toptal.com"}, "Toptal Article"},
	{[]string{"freecodecamp.org"}, "freeCodeCamp Resource"},
	{[]string{"mozilla.org"}, "Mozilla Developer Network"},
	{[]string{"web.dev"}, "Web.dev Article"},
}

var tldSuffixes = map[string]string{
	"org": "Organization",
	"edu": "Educational Resource",
	"gov": "Government Resource",
	"io":  "Platform",
	"app": "Application",
	"dev": "Developer Resource",
}

// SourceTitle derives a human-readable title for a cited domain from the
// representative URL path, well-known hosts, and finally the TLD.
func SourceTitle(domain, primaryURL string) string {
	domain = normalizeHost(domain)
	name := SiteName(domain)
	path := urlPath(primaryURL)

	switch {
	case strings.Contains(path, "/docs"):
		return name + " Documentation"
	case strings.Contains(path, "/api"):
		return name + " API Documentation"
	case strings.Contains(path, "/developer"):
		return name + " Developer Portal"
	case strings.Contains(path, "/guide"), strings.Contains(path, "/tutorial"):
		return name + " Guides & Tutorials"
	}

	for _, site := range knownSites {
		for _, host := range site.hosts {
			if domain == host || strings.HasSuffix(domain, "."+host) {
				return site.title
			}
		}
	}

	tld := domain
	if i := strings.LastIndex(domain, "."); i >= 0 {
		tld = domain[i+1:]
	}
	if suffix, ok := tldSuffixes[tld]; ok {
		return name + " " + suffix
	}
	return name + " Website"
}

// SiteName is the registrable label of a host, e.g. "stanford" for
// cs.stanford.edu. Hosts without a public suffix fall back to their first
// label.
func SiteName(host string) string {
	host = normalizeHost(host)
	if base, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		host = base
	}
	if i := strings.Index(host, "."); i > 0 {
		return host[:i]
	}
	return host
}

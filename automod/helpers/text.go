package helpers

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
)

func DedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

// based on: https://stackoverflow.com/a/48769624, with no trailing period allowed
var urlRegex = regexp.MustCompile(`(?:(?:https?|ftp):\/\/)?[\w/\-?=%.]+\.[\w/\-&?=%.]*[\w/\-&?=%]+`)

func ExtractTextURLs(raw string) []string {
	return urlRegex.FindAllString(raw, -1)
}

// Normalizes a URL for matching. Bare hostnames ("example.com/path") get an https scheme. Returns empty string if the URL can't be parsed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	clean, err := purell.NormalizeURLString(raw, purell.FlagsUsuallySafeGreedy|purell.FlagRemoveFragment|purell.FlagRemoveDuplicateSlashes|purell.FlagRemoveWWW)
	if err != nil {
		return ""
	}
	return clean
}

// Returns the lower-case hostname of a (possibly bare) URL, or empty string.
func URLHost(raw string) string {
	clean := NormalizeURL(raw)
	if clean == "" {
		return ""
	}
	u, err := url.Parse(clean)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Checks if host is the domain, or a subdomain of it. "www." prefixes on the domain are ignored.
func HostMatchesDomain(host, domain string) bool {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	domain = strings.TrimSuffix(domain, ".")
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Collects the hostnames of all links: explicit link URLs plus any URLs found in the text body. Deduplicated, in order of first appearance.
func ExtractHosts(body string, links []string) []string {
	hosts := []string{}
	for _, l := range append(append([]string{}, links...), ExtractTextURLs(body)...) {
		if h := URLHost(l); h != "" {
			hosts = append(hosts, h)
		}
	}
	return DedupeStrings(hosts)
}

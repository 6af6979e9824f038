// Package classifier decides whether an outgoing request targets an analytics
// ingestion endpoint.
package classifier

import (
	"net/url"
	"sort"
	"strings"
)

// DefaultFragments are the ingestion routes recognized out of the box:
// events, capture, batch and session recording.
var DefaultFragments = []string{
	"/e/",
	"/i/v0/e/",
	"/capture/",
	"/track/",
	"/engage/",
	"/batch/",
	"/s/",
}

// Classifier matches request URLs against path fragments and, optionally, a host
// allow-list. It is immutable after construction and safe for concurrent use.
type Classifier struct {
	fragments []string
	hosts     map[string]struct{}
}

// New returns a Classifier for DefaultFragments plus any extra fragments.
func New(extra ...string) *Classifier {
	c := &Classifier{fragments: append([]string(nil), DefaultFragments...)}
	for _, f := range extra {
		if f = normalizeFragment(f); f != "" {
			c.fragments = append(c.fragments, f)
		}
	}
	return c
}

// WithHosts returns a copy of c that only matches the given hosts (host or host:port).
// An empty list matches any host.
func (c *Classifier) WithHosts(hosts ...string) *Classifier {
	out := &Classifier{fragments: c.fragments}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if out.hosts == nil {
			out.hosts = make(map[string]struct{})
		}
		out.hosts[h] = struct{}{}
	}
	return out
}

// Fragments returns the normalized fragments in match order.
func (c *Classifier) Fragments() []string {
	out := make([]string, len(c.fragments))
	copy(out, c.fragments)
	return out
}

// Hosts returns the host allow-list, sorted. Nil means any host.
func (c *Classifier) Hosts() []string {
	if len(c.hosts) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.hosts))
	for h := range c.hosts {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// IsTrackedEndpoint reports whether rawURL targets an ingestion route.
// Unparsable URLs and non-HTTP schemes never match.
func (c *Classifier) IsTrackedEndpoint(rawURL string) bool {
	if strings.TrimSpace(rawURL) == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
	default:
		return false
	}
	if len(c.hosts) > 0 {
		if _, ok := c.hosts[strings.ToLower(u.Host)]; !ok {
			if _, ok := c.hosts[strings.ToLower(u.Hostname())]; !ok {
				return false
			}
		}
	}

	path := "/" + strings.Trim(u.EscapedPath(), "/") + "/"
	for _, f := range c.fragments {
		if strings.Contains(path, f) {
			return true
		}
	}
	return false
}

// IsTrackedEndpoint classifies rawURL with the default fragments.
func IsTrackedEndpoint(rawURL string) bool {
	return defaultClassifier.IsTrackedEndpoint(rawURL)
}

var defaultClassifier = New()

// normalizeFragment turns "capture", "/capture" or "capture/" into "/capture/".
func normalizeFragment(f string) string {
	f = strings.Trim(strings.TrimSpace(f), "/")
	if f == "" {
		return ""
	}
	return "/" + f + "/"
}

package discovery

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// TrackingParams are query parameters stripped from every URL.
// A trailing * matches any parameter with that prefix.
var TrackingParams = []string{"utm_*", "fbclid", "gclid"}

// ReservedTLDs never name a public host
var ReservedTLDs = map[string]bool{
	"localhost":   true,
	"local":       true,
	"localdomain": true,
	"test":        true,
	"example":     true,
	"invalid":     true,
	"internal":    true,
}

var supportedSchemes = map[string]bool{
	"http":  true,
	"https": true,
}

// cleanURL parses and normalizes a candidate URL.
// Host names come back lowercased and punycoded so twins dedupe.
// It returns the cleaned URL and its host, or false if the URL is unusable:
// ellipsized, unparsable, not http(s), or without a valid host.
func cleanURL(raw string) (string, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || hasEllipsis(raw) {
		return "", "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	if !supportedSchemes[u.Scheme] {
		return "", "", false
	}
	host := u.Hostname()
	if !validHost(host) {
		return "", "", false
	}
	if net.ParseIP(host) == nil {
		host = normalizeHost(host)
		if port := u.Port(); port != "" {
			u.Host = net.JoinHostPort(host, port)
		} else {
			u.Host = host
		}
	}
	if u.RawQuery != "" {
		u.RawQuery = stripTracking(u.RawQuery)
	}
	u.ForceQuery = false
	if u.Path == "" && u.RawPath == "" && u.Opaque == "" {
		u.Path = "/"
	}
	return u.String(), host, true
}

func validHost(host string) bool {
	if host == "" {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(host, "."))
	if err != nil || ascii == "" {
		return false
	}
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}

// normalizeHost lowercases and punycodes a host for comparison
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return host
}

// stripTracking removes tracking parameters, keeping the rest in order and as encoded
func stripTracking(rawQuery string) string {
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		key, _, _ := strings.Cut(p, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if !isTracking(key) {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "&")
}

func isTracking(key string) bool {
	key = strings.ToLower(key)
	for _, t := range TrackingParams {
		if prefix, ok := strings.CutSuffix(t, "*"); ok {
			if strings.HasPrefix(key, prefix) {
				return true
			}
		} else if key == t {
			return true
		}
	}
	return false
}

// IsReservedHost reports whether host is local, private or a reserved name
func IsReservedHost(host string) bool {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if ip := net.ParseIP(h); ip != nil {
		return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
			ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
	}
	i := strings.LastIndexByte(h, '.')
	if i < 0 {
		return true
	}
	return ReservedTLDs[h[i+1:]]
}

// MatchesDomain reports whether host is one of domains or a subdomain of one
func MatchesDomain(host string, domains []string) bool {
	h := normalizeHost(host)
	for _, d := range domains {
		d = normalizeHost(d)
		if d == "" {
			continue
		}
		if h == d || strings.HasSuffix(h, "."+d) {
			return true
		}
	}
	return false
}

// dedupeKey identifies a URL regardless of scheme and trailing slash
func dedupeKey(u string) string {
	if _, rest, ok := strings.Cut(u, "://"); ok {
		u = rest
	}
	return strings.TrimSuffix(u, "/")
}

// urlList is an ordered set of URLs keyed by dedupeKey.
// Adding an https twin of an http entry upgrades the entry in place.
type urlList struct {
	urls  []string
	index map[string]int
}

func newURLList() *urlList {
	return &urlList{urls: []string{}, index: map[string]int{}}
}

func (l *urlList) add(u string) {
	key := dedupeKey(u)
	if i, ok := l.index[key]; ok {
		if strings.HasPrefix(u, "https://") && strings.HasPrefix(l.urls[i], "http://") {
			l.urls[i] = u
		}
		return
	}
	l.index[key] = len(l.urls)
	l.urls = append(l.urls, u)
}

func (l *urlList) has(u string) bool {
	_, ok := l.index[dedupeKey(u)]
	return ok
}

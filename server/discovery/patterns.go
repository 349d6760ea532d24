package discovery

import (
	"regexp"
	"strings"
)

// Every text pattern the harvester uses lives here.
var (
	// absolute links in free text
	linkPattern = regexp.MustCompile("(?i)\\bhttps?://[^\\s<>\"'`]+")

	// permashortcitation at the very end of the content: (domain.tld/path) or (domain.tld path)
	pscPattern = regexp.MustCompile(`\(([^:\s)]+\.[^\s)]{2,})[ /]([^\s)]+)\)$`)
)

// ellipses mark text that was truncated before it reached us
var ellipses = []string{"...", "…"}

const (
	trailingPunctuation = ".,;:!?"
	openers             = "([{"
	closers             = ")]}"
)

func hasEllipsis(s string) bool {
	for _, e := range ellipses {
		if strings.HasSuffix(s, e) {
			return true
		}
	}
	return false
}

// findLinks returns the absolute links in text in order of appearance,
// trimmed of surrounding punctuation. Ellipsized links keep their ellipsis
// so that cleanURL can reject them.
func findLinks(text string) []string {
	matches := linkPattern.FindAllString(text, -1)
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		links = append(links, trimLink(m))
	}
	return links
}

func trimLink(s string) string {
	for {
		before := s
		s = trimUnbalanced(s)
		if hasEllipsis(s) {
			return s
		}
		if len(s) > 0 && strings.IndexByte(trailingPunctuation, s[len(s)-1]) >= 0 {
			s = s[:len(s)-1]
		}
		if s == before {
			return s
		}
	}
}

// trimUnbalanced drops a closing bracket that has no opener inside the link
func trimUnbalanced(s string) string {
	if s == "" {
		return s
	}
	i := strings.IndexByte(closers, s[len(s)-1])
	if i < 0 {
		return s
	}
	if strings.Count(s, string(openers[i])) < strings.Count(s, string(closers[i])) {
		return s[:len(s)-1]
	}
	return s
}

// findCitation expands a trailing permashortcitation into an http URL
func findCitation(text string) (string, bool) {
	m := pscPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	return "http://" + m[1] + "/" + m[2], true
}

package activity

import (
	"fmt"
	"regexp"
)

// tag:<domain>[,<date>]:<name>, see RFC 4151
var tagURIPattern = regexp.MustCompile(`^tag:([^,:]+)(?:,[0-9-]+)?:(.+)$`)

// ParseTagURI splits a tag URI into its domain and name
func ParseTagURI(uri string) (domain string, name string, ok bool) {
	m := tagURIPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// TagURI builds a dateless tag URI
func TagURI(domain string, name string) string {
	return fmt.Sprintf("tag:%s:%s", domain, name)
}

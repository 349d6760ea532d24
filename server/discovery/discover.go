// Package discovery finds the original posts an activity claims to be a copy of.
//
// Candidate URLs are harvested from an object's structured fields and content,
// classified as originals or mentions, optionally resolved through redirects,
// and returned cleaned and deduplicated in the order they were found.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tkrehbiel/activitysift/server/activity"
	"github.com/tkrehbiel/activitysift/server/resolve"
	"github.com/tkrehbiel/activitysift/server/telemetry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNoActivity            = errors.New("no activity")
	ErrInvalidRedirectBudget = errors.New("invalid redirect fetch budget")
)

const (
	DefaultMaxRedirectFetches = 10
	MaxRedirectBudget         = 100
	DefaultConcurrency        = 4

	// a URL found as both an original and a mention is reported only as an original
	OriginalsTakePrecedence = true
)

// LinkObjectTypes are the tag and attachment types that can point at a post.
// The empty string stands for a reference without an objectType.
var LinkObjectTypes = map[string]bool{
	"":                         true,
	activity.ArticleObjectType: true,
	activity.MentionObjectType: true,
	activity.NoteObjectType:    true,
}

type Options struct {
	// Domains the author owns. Empty means every link is an original.
	Domains []string
	// Keep a pre-redirect URL alongside the URL it redirects to
	IncludeRedirectSources bool
	// Keep localhost, private addresses and reserved TLDs
	IncludeReservedHosts bool
	// How many candidates may be passed to Resolver
	MaxRedirectFetches int
	// Resolver follows redirects. Nil disables resolution.
	Resolver resolve.Resolver
	// How many resolutions run at once
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		IncludeRedirectSources: true,
		IncludeReservedHosts:   true,
		MaxRedirectFetches:     DefaultMaxRedirectFetches,
		Concurrency:            DefaultConcurrency,
	}
}

// Result holds the URLs discovered in an activity, in the order found
type Result struct {
	Originals []string `json:"originals"`
	Mentions  []string `json:"mentions"`
}

type source int

const (
	fromUpstream source = iota
	fromAttachment
	fromTag
	fromContent
	fromCitation
	fromTarget
)

// explicit sources are claims made by the author, never demoted to mentions
func (s source) explicit() bool {
	return s == fromUpstream || s == fromTarget
}

type candidate struct {
	url      string
	original bool
}

// Discover harvests and classifies the URLs in an activity or object.
// Unusable URLs are skipped and resolver failures fall back to the
// unresolved URL, so the only errors are for a nil activity or bad options.
func Discover(ctx context.Context, act *activity.Object, opts Options) (Result, error) {
	if act == nil {
		return Result{}, ErrNoActivity
	}
	if opts.MaxRedirectFetches < 0 || opts.MaxRedirectFetches > MaxRedirectBudget {
		return Result{}, fmt.Errorf("%w: %d not in [0, %d]",
			ErrInvalidRedirectBudget, opts.MaxRedirectFetches, MaxRedirectBudget)
	}

	candidates := classify(harvest(act.Inner()), opts)
	finals := resolveAll(ctx, candidates, opts)

	originals := newURLList()
	mentions := newURLList()
	for i, c := range candidates {
		bucket := mentions
		if c.original {
			bucket = originals
		}
		final, host, ok := "", "", false
		if finals[i] != "" {
			final, host, ok = cleanURL(finals[i])
		}
		if !ok || dedupeKey(final) == dedupeKey(c.url) {
			bucket.add(c.url)
			if ok {
				bucket.add(final)
			}
			continue
		}
		if !opts.IncludeReservedHosts && IsReservedHost(host) {
			telemetry.Trace("dropping %s, redirects to reserved host %s", c.url, final)
			continue
		}
		if opts.IncludeRedirectSources {
			bucket.add(c.url)
		}
		bucket.add(final)
	}

	result := Result{Originals: originals.urls, Mentions: mentions.urls}
	if OriginalsTakePrecedence {
		result.Mentions = make([]string, 0, len(mentions.urls))
		for _, u := range mentions.urls {
			if !originals.has(u) {
				result.Mentions = append(result.Mentions, u)
			}
		}
	}
	return result, nil
}

type harvested struct {
	raw  string
	from source
}

// harvest collects raw candidate URLs from obj in priority order
func harvest(obj *activity.Object) []harvested {
	var found []harvested
	for _, u := range obj.UpstreamDuplicates {
		found = append(found, harvested{u, fromUpstream})
	}
	for _, a := range obj.Attachments {
		if a.URL != "" && LinkObjectTypes[a.ObjectType] {
			found = append(found, harvested{a.URL, fromAttachment})
		}
	}
	for _, t := range obj.Tags {
		if t.URL != "" && LinkObjectTypes[t.ObjectType] {
			found = append(found, harvested{t.URL, fromTag})
		}
	}
	content := norm.NFC.String(obj.Content)
	for _, u := range findLinks(content) {
		found = append(found, harvested{u, fromContent})
	}
	if u, ok := findCitation(content); ok {
		found = append(found, harvested{u, fromCitation})
	}
	if obj.TargetURL != "" {
		found = append(found, harvested{obj.TargetURL, fromTarget})
	}
	return found
}

// classify cleans, filters and dedupes raw URLs.
// A duplicate keeps its first position; it becomes an original if any
// occurrence is one and is upgraded to https if any occurrence is.
func classify(found []harvested, opts Options) []candidate {
	var candidates []candidate
	index := map[string]int{}
	for _, h := range found {
		u, host, ok := cleanURL(h.raw)
		if !ok {
			telemetry.Trace("skipping unusable url [%s]", h.raw)
			continue
		}
		if !opts.IncludeReservedHosts && IsReservedHost(host) {
			telemetry.Trace("skipping reserved host [%s]", u)
			continue
		}
		original := h.from.explicit() || len(opts.Domains) == 0 || MatchesDomain(host, opts.Domains)

		key := dedupeKey(u)
		if i, seen := index[key]; seen {
			c := &candidates[i]
			c.original = c.original || original
			if strings.HasPrefix(u, "https://") && strings.HasPrefix(c.url, "http://") {
				c.url = u
			}
			continue
		}
		index[key] = len(candidates)
		candidates = append(candidates, candidate{url: u, original: original})
	}
	return candidates
}

// resolveAll resolves the first MaxRedirectFetches candidates.
// Failed and unresolved candidates get an empty final URL.
func resolveAll(ctx context.Context, candidates []candidate, opts Options) []string {
	finals := make([]string, len(candidates))
	if opts.Resolver == nil {
		return finals
	}
	n := min(opts.MaxRedirectFetches, len(candidates))
	if n == 0 {
		return finals
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			final, err := opts.Resolver.Resolve(gctx, candidates[i].url)
			if err != nil {
				telemetry.Error(err, "resolving [%s]", candidates[i].url)
				return nil
			}
			finals[i] = final
			return nil
		})
	}
	g.Wait()
	return finals
}

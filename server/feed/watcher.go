// Package feed turns RSS, Atom and JSON feed items into activity objects.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/tkrehbiel/activitysift/server/activity"
	"github.com/tkrehbiel/activitysift/server/analysis"
	"github.com/tkrehbiel/activitysift/server/telemetry"
)

// DefaultPeriod is used when Watch is given a non-positive period
const DefaultPeriod = 5 * time.Minute

// ItemHandler defines what to do when feed items are discovered
type ItemHandler interface {
	StatusCode(code int)                                         // called after any fetch, normally either 200 (OK) or 304 (NotModified)
	NewItem(item *activity.Object)                               // a new feed item is discovered
	UpdatedItem(before *activity.Object, after *activity.Object) // a known item was edited in a way that matters
}

// FeedWatcher polls a feed and reports new and edited items
type FeedWatcher struct {
	URL     string
	Client  http.Client
	Handler ItemHandler

	itemParser   ItemParser
	etag         string
	lastModified string
	known        map[string]*activity.Object // last version of every item seen
}

type ItemParser interface {
	Parse(r io.Reader) ([]*activity.Object, error)
}

type gofeedParser struct {
	parser *gofeed.Parser // helper to parse rss, atom, json
}

// Parse an HTTP body as an RSS feed (or Atom or JSON, it turns out)
func (p gofeedParser) Parse(reader io.Reader) ([]*activity.Object, error) {
	feed, err := p.parser.Parse(reader)
	if err != nil {
		return nil, err
	}
	items := make([]*activity.Object, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, ToObject(item))
	}
	return items, nil
}

// ToObject converts a parsed feed item to an article
func ToObject(item *gofeed.Item) *activity.Object {
	obj := &activity.Object{
		ID:          item.GUID,
		ObjectType:  activity.ArticleObjectType,
		DisplayName: item.Title,
		Content:     item.Content,
		URL:         item.Link,
	}
	if obj.ID == "" {
		obj.ID = item.Link
	}
	if obj.Content == "" {
		obj.Content = item.Description
	}

	published := time.Now().UTC()
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	}
	// Some feeds have mangled dates
	// e.g. CNN "Sat, 26 Nov 2022 11:04:03 GMT"
	updated := published
	if item.UpdatedParsed != nil {
		updated = *item.UpdatedParsed
	}
	obj.Published = published.UTC().Format(time.RFC3339)
	obj.Updated = updated.UTC().Format(time.RFC3339)

	if item.Author != nil && item.Author.Name != "" {
		obj.Author = &activity.Object{
			ObjectType:  activity.PersonObjectType,
			DisplayName: item.Author.Name,
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		obj.Image = activity.Objects{{URL: item.Image.URL}}
	}
	for _, c := range item.Categories {
		obj.Tags = append(obj.Tags, activity.Object{
			ObjectType:  activity.HashtagObjectType,
			DisplayName: c,
		})
	}
	for _, e := range item.Enclosures {
		if e == nil || e.URL == "" {
			continue
		}
		obj.Attachments = append(obj.Attachments, activity.Object{
			ObjectType: enclosureType(e.Type),
			URL:        e.URL,
		})
	}
	return obj
}

func enclosureType(mime string) string {
	major, _, _ := strings.Cut(mime, "/")
	switch major {
	case "image":
		return activity.ImageObjectType
	case "audio":
		return activity.AudioObjectType
	case "video":
		return activity.VideoObjectType
	}
	return ""
}

// Check remote feed for changes
func (c *FeedWatcher) Check(ctx context.Context) error {
	r, err := http.NewRequestWithContext(ctx, "GET", c.URL, nil)
	if err != nil {
		return err
	}
	if c.lastModified != "" {
		r.Header.Set("If-Modified-Since", c.lastModified)
	}
	if c.etag != "" {
		r.Header.Set("If-None-Match", c.etag)
	}

	resp, err := c.Client.Do(r)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", c.URL, err)
	}
	defer resp.Body.Close()

	c.Handler.StatusCode(resp.StatusCode)
	if resp.StatusCode == http.StatusNotModified {
		// Feed not modified, nothing to do
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("response code %d", resp.StatusCode)
	}

	newItems, updates, err := c.parseItems(resp.Body)
	if err != nil {
		return err
	}

	for _, item := range newItems {
		c.Handler.NewItem(item)
	}
	for _, u := range updates {
		c.Handler.UpdatedItem(u[0], u[1])
	}

	c.etag = resp.Header.Get("ETag")
	c.lastModified = resp.Header.Get("Last-Modified")
	return nil
}

// AddKnown marks an item as already seen
func (c *FeedWatcher) AddKnown(item *activity.Object) {
	c.known[item.ID] = item
}

func (c *FeedWatcher) parseItems(body io.Reader) ([]*activity.Object, [][2]*activity.Object, error) {
	allItems, err := c.itemParser.Parse(body)
	if err != nil {
		telemetry.Error(err, "parsing feed %s", c.URL)
		return nil, nil, err
	}

	newItems := make([]*activity.Object, 0)
	var updates [][2]*activity.Object
	for _, item := range allItems {
		prev, ok := c.known[item.ID]
		c.known[item.ID] = item
		if !ok {
			newItems = append(newItems, item)
		} else if analysis.Changed(prev, item, true) {
			updates = append(updates, [2]*activity.Object{prev, item})
		}
	}

	// sort from oldest to newest
	sort.SliceStable(newItems, func(i int, j int) bool {
		return newItems[i].Published < newItems[j].Published
	})

	return newItems, updates, nil
}

// Watch checks the feed every period until the context ends or the process is interrupted
func (c *FeedWatcher) Watch(ctx context.Context, period time.Duration) {
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChannel)
	if period <= 0 {
		telemetry.Log("watch period %v is not positive, using %v", period, DefaultPeriod)
		period = DefaultPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	if err := c.Check(ctx); err != nil {
		telemetry.Error(err, "checking feed %s", c.URL)
	}
	for {
		select {
		case <-ctx.Done():
			// Parent context cancelled somehow
			telemetry.Log("context ended: %v", ctx.Err())
			return
		case <-sigChannel:
			// CTRL-C
			telemetry.Log("received end signal")
			return
		case <-ticker.C:
			if err := c.Check(ctx); err != nil {
				telemetry.Error(err, "checking feed %s", c.URL)
			}
		}
	}
}

func NewFeedWatcher(url string, handler ItemHandler) *FeedWatcher {
	return &FeedWatcher{
		URL:     url,
		Client:  http.Client{Timeout: 30 * time.Second},
		Handler: handler,
		itemParser: gofeedParser{
			parser: gofeed.NewParser(),
		},
		known: make(map[string]*activity.Object),
	}
}

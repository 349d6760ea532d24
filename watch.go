package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/tkrehbiel/activitysift/server/activity"
	"github.com/tkrehbiel/activitysift/server/discovery"
	"github.com/tkrehbiel/activitysift/server/feed"
	"github.com/tkrehbiel/activitysift/server/telemetry"
)

func NewWatchCommand(root *rootOptions) *cobra.Command {
	var interval time.Duration
	var once bool
	var resolve bool

	cmd := &cobra.Command{
		Use:     "watch <feed-url>",
		Short:   "Poll a feed and run discovery on new and edited items",
		Example: "activitysift watch https://example.com/index.xml --interval 10m",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("%w: --interval must be positive, got %v", errInvalidFlag, interval)
			}
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if resolve {
				cfg.Resolver.Enabled = true
			}
			resolver, release, err := cfg.NewResolver()
			if err != nil {
				return err
			}
			defer release()

			opts := cfg.DiscoveryOptions()
			opts.Resolver = resolver
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			handler := &siftHandler{ctx: ctx, opts: opts, out: cmd.OutOrStdout()}
			watcher := feed.NewFeedWatcher(args[0], handler)
			if once {
				return watcher.Check(ctx)
			}
			watcher.Watch(ctx, interval)
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "time between feed checks")
	cmd.Flags().BoolVar(&once, "once", false, "check the feed one time and exit")
	cmd.Flags().BoolVar(&resolve, "resolve", false, "follow redirects over the network")

	return cmd
}

// siftEvent is one line of watch output
type siftEvent struct {
	Event string `json:"event"` // new or updated
	ID    string `json:"id"`
	URL   string `json:"url,omitempty"`
	discovery.Result
}

// siftHandler prints discovery results for feed items as json lines
type siftHandler struct {
	ctx  context.Context
	opts discovery.Options
	out  io.Writer
	mu   sync.Mutex
}

func (h *siftHandler) StatusCode(code int) {
	telemetry.Trace("feed responded %d", code)
}

func (h *siftHandler) NewItem(item *activity.Object) {
	h.sift("new", item)
}

func (h *siftHandler) UpdatedItem(before *activity.Object, after *activity.Object) {
	h.sift("updated", after)
}

func (h *siftHandler) sift(event string, item *activity.Object) {
	result, err := discovery.Discover(h.ctx, item, h.opts)
	if err != nil {
		telemetry.Error(err, "discovering links in %s", item.ID)
		return
	}
	b, err := json.Marshal(siftEvent{Event: event, ID: item.ID, URL: item.URL, Result: result})
	if err != nil {
		telemetry.Error(err, "marshaling %s", item.ID)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.out.Write(append(b, '\n'))
}

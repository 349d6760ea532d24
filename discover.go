package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tkrehbiel/activitysift/server"
	"github.com/tkrehbiel/activitysift/server/activity"
	"github.com/tkrehbiel/activitysift/server/discovery"
)

type discoverOptions struct {
	domains           []string
	maxFetches        int
	resolve           bool
	excludeReserved   bool
	noRedirectSources bool
}

func NewDiscoverCommand(root *rootOptions) *cobra.Command {
	opts := &discoverOptions{}

	cmd := &cobra.Command{
		Use:     "discover [file|-]",
		Aliases: []string{"d"},
		Short:   "Find the original posts and mentions in an activity",
		Example: "curl -s https://example.com/activity.json | activitysift discover - --resolve",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("domain") {
				cfg.Discovery.Domains = opts.domains
			}
			if cmd.Flags().Changed("max-fetches") {
				cfg.Discovery.MaxRedirectFetches = opts.maxFetches
			}
			if opts.resolve {
				cfg.Resolver.Enabled = true
			}
			if opts.excludeReserved {
				cfg.Discovery.IncludeReservedHosts = false
			}
			if opts.noRedirectSources {
				cfg.Discovery.IncludeRedirectSources = false
			}

			in, closer, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer closer()
			return discover(cmd.Context(), cfg, in, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringSliceVar(&opts.domains, "domain", nil, "domains that are the author's own, repeatable")
	cmd.Flags().IntVar(&opts.maxFetches, "max-fetches", discovery.DefaultMaxRedirectFetches, "how many urls may be resolved for redirects")
	cmd.Flags().BoolVar(&opts.resolve, "resolve", false, "follow redirects over the network")
	cmd.Flags().BoolVar(&opts.excludeReserved, "exclude-reserved", false, "drop urls that redirect to local or private hosts")
	cmd.Flags().BoolVar(&opts.noRedirectSources, "no-redirect-sources", false, "only report where redirects end up")

	return cmd
}

// openInput opens the named file, or stdin for "-" or no argument
func openInput(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", args[0], err)
	}
	return f, func() { f.Close() }, nil
}

func discover(ctx context.Context, cfg server.Config, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	act, err := activity.Decode(b)
	if err != nil {
		return err
	}

	resolver, release, err := cfg.NewResolver()
	if err != nil {
		return err
	}
	defer release()

	opts := cfg.DiscoveryOptions()
	opts.Resolver = resolver
	result, err := discovery.Discover(ctx, act, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// Command activitysift analyzes ActivityStreams activities.
// It runs as an http service, or one-off from the command line.
package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/tkrehbiel/activitysift/server"
	"github.com/tkrehbiel/activitysift/server/telemetry"
)

var errInvalidFlag = errors.New("invalid flag")

type rootOptions struct {
	configFile string
	logLevel   string
}

func NewActivitysiftCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "activitysift",
		Short:        "ActivityStreams analysis and original post discovery",
		Example:      "activitysift discover activity.json --domain example.com",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "config.yaml", "config yaml or json file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		NewServeCommand(opts),
		NewDiscoverCommand(opts),
		NewWatchCommand(opts),
	)

	return cmd
}

// loadConfig reads the config file and environment, then sets up logging.
// Logs go to stderr so command output can be piped.
func (o *rootOptions) loadConfig() (server.Config, error) {
	cfg, err := server.LoadConfig(o.configFile)
	if err != nil {
		return cfg, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	telemetry.Configure(telemetry.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: os.Stderr,
	})
	return cfg, nil
}

func main() {
	cmd := NewActivitysiftCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

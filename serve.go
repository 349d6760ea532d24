package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tkrehbiel/activitysift/server"
	"github.com/tkrehbiel/activitysift/server/telemetry"
)

func NewServeCommand(root *rootOptions) *cobra.Command {
	var host string
	var port int
	var pubCert string
	var privCert string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis http service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.HostName = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if pubCert != "" {
				cfg.Server.Certificate = pubCert
			}
			if privCert != "" {
				cfg.Server.PrivateKey = privCert
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen hostname")
	cmd.Flags().IntVar(&port, "port", 0, "listen port")
	cmd.Flags().StringVar(&pubCert, "cert", "", "public certificate")
	cmd.Flags().StringVar(&privCert, "key", "", "private key")

	return cmd
}

func serve(ctx context.Context, cfg server.Config) error {
	telemetry.Log("starting activitysift")
	svc, err := server.NewService(cfg)
	if err != nil {
		return err
	}

	// Startup the service to listen for http requests
	svc.Start()

	// Wait for ^C
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	telemetry.Log("stopping activitysift")

	// Shut down the service
	shutdown, cancel := context.WithTimeout(context.Background(), time.Second*60)
	defer cancel()
	if err := svc.Stop(shutdown); err != nil {
		return err
	}
	telemetry.Log("stopped activitysift cleanly")
	return nil
}

// broker runs the rendezvous service cardmesh nodes use to find each other.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cardmesh/go-cardmesh/broker"
	"github.com/cardmesh/go-cardmesh/cmd"
	"github.com/cardmesh/go-cardmesh/config"
	"github.com/cardmesh/go-cardmesh/log"
	"github.com/cardmesh/go-cardmesh/metrics"
)

var (
	version string
	commit  string
	branch  string
)

func main() {
	cmd.Version = version
	cmd.Commit = commit
	cmd.Branch = branch
	if err := getCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func getCommand() *cobra.Command {
	conf := config.DefaultConfig()
	var configPath *string
	c := &cobra.Command{
		Use:   "broker",
		Short: "run the rendezvous broker",
		RunE: func(c *cobra.Command, args []string) error {
			if err := cmd.Configure(c, *configPath, &conf); err != nil {
				return err
			}
			root, err := log.New(conf.LOGGING)
			if err != nil {
				return err
			}
			c.SilenceUsage = true

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, root, conf)
		},
	}
	configPath = cmd.AddBrokerFlags(c.Flags(), &conf)
	c.AddCommand(cmd.VersionCmd())
	return c
}

func serve(ctx context.Context, root *zap.Logger, conf config.Config) error {
	srv := broker.New(
		broker.WithLogger(log.Module(root, conf.LOGGING, "broker")),
		broker.WithConfig(conf.Broker),
	)
	ln, err := net.Listen("tcp", conf.Broker.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", conf.Broker.Listen, err)
	}
	eg, ctx := errgroup.WithContext(ctx)
	if conf.Metrics.Enabled {
		ms, err := metrics.NewServer(log.Module(root, conf.LOGGING, "app"), conf.Metrics.Listen)
		if err != nil {
			ln.Close()
			return err
		}
		eg.Go(func() error {
			return ms.Serve(ctx)
		})
	}
	eg.Go(func() error {
		return srv.Serve(ctx, ln)
	})
	return eg.Wait()
}

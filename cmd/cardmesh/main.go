// cardmesh is a peer-to-peer flashcard sync node.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cardmesh/go-cardmesh/broker"
	"github.com/cardmesh/go-cardmesh/cmd"
	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/config"
	"github.com/cardmesh/go-cardmesh/filesystem"
	"github.com/cardmesh/go-cardmesh/log"
	"github.com/cardmesh/go-cardmesh/node"
	"github.com/cardmesh/go-cardmesh/p2p/book"
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
		// the error was already printed by cobra
		os.Exit(1)
	}
}

func getCommand() *cobra.Command {
	conf := config.DefaultConfig()
	root := &cobra.Command{
		Use:   "cardmesh",
		Short: "peer-to-peer sync of flashcard decks",
	}
	configPath := cmd.AddFlags(root.PersistentFlags(), &conf)
	root.AddCommand(
		runCommand(&conf, configPath),
		peersCommand(&conf, configPath),
		syncCommand(&conf, configPath),
		brokerStatusCommand(&conf, configPath),
		cmd.VersionCmd(),
	)
	return root
}

func newApp(c *cobra.Command, configPath string, conf *config.Config, opts ...node.Option) (*node.App, error) {
	if err := cmd.Configure(c, configPath, conf); err != nil {
		return nil, err
	}
	logger, err := log.New(conf.LOGGING)
	if err != nil {
		return nil, err
	}
	return node.New(append([]node.Option{node.WithConfig(conf), node.WithLog(logger)}, opts...)...), nil
}

func runCommand(conf *config.Config, configPath *string) *cobra.Command {
	var autoApprove bool
	c := &cobra.Command{
		Use:   "run",
		Short: "start node",
		RunE: func(c *cobra.Command, args []string) error {
			app, err := newApp(c, *configPath, conf, node.WithConsole(os.Stdin, c.OutOrStdout(), autoApprove))
			if err != nil {
				return err
			}
			// os.Interrupt for all systems, syscall.SIGTERM is mainly for docker.
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			c.SilenceUsage = true
			if err := node.Run(ctx, app); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	c.Flags().BoolVar(&autoApprove, "auto-approve", false, "accept every inbound connection without asking")
	return c
}

// offline runs fn against an initialized node that is not connected to the network.
func offline(c *cobra.Command, configPath string, conf *config.Config, fn func(*node.App) error) error {
	app, err := newApp(c, configPath, conf)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(conf.DataDir(), filesystem.OwnerReadWriteExec); err != nil {
		return fmt.Errorf("ensure folders exist: %w", err)
	}
	if err := app.Lock(); err != nil {
		return fmt.Errorf("getting exclusive file lock: %w", err)
	}
	defer app.Unlock()
	defer app.Cleanup()
	if err := app.Initialize(); err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	return fn(app)
}

func parseAddress(raw string) (types.Address, error) {
	if _, err := peer.Decode(raw); err != nil {
		return "", fmt.Errorf("invalid address %s: %w", raw, err)
	}
	return types.Address(raw), nil
}

func peersCommand(conf *config.Config, configPath *string) *cobra.Command {
	c := &cobra.Command{
		Use:   "peers",
		Short: "manage known peers",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "list known peers",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return offline(c, *configPath, conf, func(app *node.App) error {
				w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ADDRESS\tACCOUNT\tNAME\tSTATUS\tLAST CONNECTED")
				for _, r := range app.Book().All() {
					last := "-"
					if !r.LastConnectedAt.IsZero() {
						last = r.LastConnectedAt.Time().Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Address, r.LinkedAccountID, r.DisplayName, r.Status, last)
				}
				return w.Flush()
			})
		},
	}
	var (
		account string
		name    string
	)
	add := &cobra.Command{
		Use:   "add <address>",
		Short: "add a peer to the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			return offline(c, *configPath, conf, func(app *node.App) error {
				record, created, err := app.Book().Upsert(book.Info{
					Address:     addr,
					AccountID:   types.AccountID(account),
					DisplayName: name,
				})
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(c.OutOrStdout(), "added %s\n", record.Name())
				} else {
					fmt.Fprintf(c.OutOrStdout(), "updated %s\n", record.Name())
				}
				return nil
			})
		},
	}
	add.Flags().StringVar(&account, "account", "", "account id of the peer")
	add.Flags().StringVar(&name, "name", "", "display name of the peer")
	remove := &cobra.Command{
		Use:   "remove <address>...",
		Short: "remove peers and everything received from them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			addrs := make([]types.Address, 0, len(args))
			for _, arg := range args {
				addrs = append(addrs, types.Address(arg))
			}
			return offline(c, *configPath, conf, func(app *node.App) error {
				return app.Forget(addrs...)
			})
		},
	}
	c.AddCommand(list, add, remove)
	return c
}

func syncCommand(conf *config.Config, configPath *string) *cobra.Command {
	var timeout time.Duration
	c := &cobra.Command{
		Use:   "sync <address>",
		Short: "connect to a peer, exchange changes and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return offline(c, *configPath, conf, func(app *node.App) error {
				c.SilenceUsage = true
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()
				eg, ctx := errgroup.WithContext(ctx)
				eg.Go(func() error {
					return app.Start(ctx)
				})
				eg.Go(func() error {
					defer cancel()
					select {
					case <-app.Started():
					case <-ctx.Done():
						return nil
					}
					syncCtx, syncCancel := context.WithTimeout(ctx, timeout)
					defer syncCancel()
					name := ""
					if record, exist := app.Book().Get(addr); exist {
						name = record.Name()
					}
					if err := app.Syncer().Connect(syncCtx, addr, name); err != nil {
						return fmt.Errorf("connect %s: %w", addr, err)
					}
					if err := app.Syncer().SyncNow(syncCtx, addr); err != nil {
						return fmt.Errorf("sync %s: %w", addr, err)
					}
					fmt.Fprintf(c.OutOrStdout(), "synced with %s\n", addr)
					return nil
				})
				if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		},
	}
	c.Flags().DurationVar(&timeout, "timeout", time.Minute, "time to wait for the peer")
	return c
}

func brokerStatusCommand(conf *config.Config, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "broker-status",
		Short: "print the number of sessions and addresses on the broker",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			if err := cmd.Configure(c, *configPath, conf); err != nil {
				return err
			}
			logger, err := log.New(conf.LOGGING)
			if err != nil {
				return err
			}
			client := broker.NewClient(
				broker.WithClientLogger(log.Module(logger, conf.LOGGING, node.BrokerLogger)),
				broker.WithClientConfig(conf.P2P.Broker),
			)
			defer client.Close()
			status, err := client.Status(c.Context())
			if err != nil {
				return err
			}
			logger.Debug("broker status", zap.String("url", conf.P2P.Broker.URL), zap.Int("sessions", status.Sessions))
			fmt.Fprintf(c.OutOrStdout(), "sessions: %d\naddresses: %d\n", status.Sessions, status.Addresses)
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/baruhq/filedrop/pkg/filedrop"
)

var cfg filedrop.Config

var rootCmd = &cobra.Command{
	Use:   "filedrop",
	Short: "send files between peers over relayed, hole-punched libp2p connections",
	Long: `filedrop discovers peers through a rendezvous point, dials them through
a relay, and exchanges files as one chunk per substream.

Interactive commands once running:
  ls                        list connected peers
  file <peer_id> <path>     send a file to a peer`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if cfg.Debug {
			logrus.SetLevel(logrus.DebugLevel)
		}

		node, err := filedrop.New(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := node.Close(); err != nil {
				logrus.WithField("err", err).Warn("closing node")
			}
		}()

		if err := node.Bootstrap(cmd.Context()); err != nil {
			return err
		}
		return node.Run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfg.RelayAddr, "relay", "", "multiaddress of the bootstrap relay/rendezvous peer")
	rootCmd.Flags().IntVar(&cfg.Port, "port", 0, "listen port (random if not specified)")
	rootCmd.Flags().StringVar(&cfg.RecvRoot, "recv-dir", "", "directory for received files (default <data-dir>/inbox)")
	rootCmd.Flags().StringVar(&cfg.DataDir, "data-dir", "", "directory for the node identity (default ~/.filedrop)")
	rootCmd.Flags().BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	cobra.CheckErr(rootCmd.MarkFlagRequired("relay"))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

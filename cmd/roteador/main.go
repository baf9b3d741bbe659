// Command roteador runs a single distance-vector routing daemon node:
// self_node_id on the command line, neighbors and listening port loaded
// from a configuration file, an interactive command shell on stdin.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kprusa/roteador/internal/config"
	"github.com/kprusa/roteador/internal/daemon"
	"github.com/kprusa/roteador/internal/rlog"
)

const defaultPort = 6000

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		port     int
		cfgPath  string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "roteador <self_node_id> [port]",
		Short: "Distance-vector routing daemon",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			self := args[0]
			if len(args) == 2 {
				p, err := strconv.Atoi(args[1])
				if err != nil {
					return errors.Errorf("invalid port argument %q", args[1])
				}
				port = p
			}
			return run(self, port, cfgPath, logLevel)
		},
	}

	cmd.Flags().IntVar(&port, "port", defaultPort, "listening UDP port (overridden by the config file's PORTA= line)")
	cmd.Flags().StringVar(&cfgPath, "config", "roteadores.txt", "path to the neighbor configuration file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")

	return cmd
}

func run(self string, port int, cfgPath, logLevel string) error {
	log, err := rlog.New(logLevel)
	if err != nil {
		return errors.Wrap(err, "configure logger")
	}

	cfg, err := config.Load(cfgPath, self, port, log)
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.Port})
	if err != nil {
		return errors.Wrapf(err, "listen on UDP port %d", cfg.Port)
	}
	defer conn.Close()

	rlog.Event(log, rlog.EventInit).Infof("self=%s port=%d neighbors=%d", self, cfg.Port, len(cfg.Neighbors))
	for _, n := range cfg.Neighbors {
		rlog.Event(log, rlog.EventInit).Debugf("configured neighbor %s:%d", n.NodeID, n.Port)
	}

	r := daemon.New(self, cfg.Port, conn, log)
	r.Bootstrap(cfg.Neighbors)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	daemon.RunShell(os.Stdin, os.Stdout, r, log, stop)

	if err := <-errCh; err != nil {
		return errors.Wrap(err, "daemon shutdown")
	}
	return nil
}

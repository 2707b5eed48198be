package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/momentics/copybench/cmd/util"
	"github.com/momentics/copybench/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	ServeCmd = &cobra.Command{
		Use:     "serve [port] [field-size] [conns]",
		Short:   "Accept connections and send messages",
		Long:    `Listen, accept the configured number of connections and send fixed-size messages on each until the client disconnects or SIGINT/SIGTERM arrives. The configuration can be set via command line flags or environment variables. The format of the environment variables is COPYBENCH_<flag> (e.g. COPYBENCH_FIELD_SIZE=4096)`,
		Args:    cobra.MaximumNArgs(3),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupBenchmarkFlags(ServeCmd)

	key := "addr"
	ServeCmd.Flags().String(key, "", cmdUtil.WrapString("Bind address (empty binds all interfaces)"))
}

// processConfig binds the flags and positional arguments to viper
func processConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return cmdUtil.BindPositionals(args, "port", "field-size", "conns")
}

// run starts the acceptor and prints the sender statistics
func run(_ *cobra.Command, _ []string) error {
	cfg, err := cmdUtil.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := cmdUtil.NewLogger(cfg)
	if err != nil {
		return err
	}
	cmdUtil.LogEnvironment(logger, cfg)

	acc, err := server.NewAcceptor(cfg, server.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := acc.Listen(); err != nil {
		logger.Errorf("[server] %v", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			logger.Infoln("[server] shutdown requested")
			acc.Shutdown()
		case <-finished:
		}
	}()

	rep, err := acc.Run()
	rep.Write(os.Stdout, cfg.Table)
	if err != nil {
		return err
	}
	return rep.AppendCSV(cfg)
}

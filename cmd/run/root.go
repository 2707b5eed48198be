package run

import (
	"fmt"
	"os"

	"github.com/momentics/copybench/client"
	cmdUtil "github.com/momentics/copybench/cmd/util"
	"github.com/momentics/copybench/internal/harness"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	RunCmd = &cobra.Command{
		Use:     "run [addr] [port] [field-size] [conns] [duration-s]",
		Short:   "Connect to a server and receive messages",
		Long:    `Open the configured number of connections, receive messages on each until the duration has elapsed and print per-thread statistics followed by one METRICS line. The format of the environment variables is COPYBENCH_<flag> (e.g. COPYBENCH_DURATION=10s)`,
		Args:    cobra.MaximumNArgs(5),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupBenchmarkFlags(RunCmd)

	key := "addr"
	RunCmd.Flags().String(key, "127.0.0.1", cmdUtil.WrapString("Server address"))

	key = "duration"
	RunCmd.Flags().Duration(key, harness.DefaultConfig().Duration, cmdUtil.WrapString("How long each connection receives"))
}

// processConfig binds the flags and positional arguments to viper
func processConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return cmdUtil.BindPositionals(args, "addr", "port", "field-size", "conns", "duration")
}

// run connects the workers and prints the receiver statistics
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

	ini, err := client.NewInitiator(cfg, client.WithLogger(logger))
	if err != nil {
		return err
	}
	rep, err := ini.Run()
	if err != nil {
		logger.Errorf("[client] %v", err)
		return err
	}
	rep.Write(os.Stdout, cfg.Table)
	fmt.Println(rep.Aggregate.MetricsLine())
	if err := rep.AppendCSV(cfg); err != nil {
		logger.Errorf("[client] %v", err)
	}
	return nil
}

package loopback

import (
	"fmt"
	"os"

	"github.com/momentics/copybench/client"
	cmdUtil "github.com/momentics/copybench/cmd/util"
	"github.com/momentics/copybench/internal/harness"
	"github.com/momentics/copybench/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	LoopbackCmd = &cobra.Command{
		Use:     "loopback [field-size] [conns] [duration-s]",
		Short:   "Run server and client in one process over 127.0.0.1",
		Long:    `Start the sender on an ephemeral loopback port, run the receiver against it and print both sides' statistics followed by the METRICS line. Useful for quick comparisons of the strategies on one host.`,
		Args:    cobra.MaximumNArgs(3),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupBenchmarkFlags(LoopbackCmd)

	key := "duration"
	LoopbackCmd.Flags().Duration(key, harness.DefaultConfig().Duration, cmdUtil.WrapString("How long each connection receives"))
}

// processConfig binds the flags and positional arguments to viper
func processConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return cmdUtil.BindPositionals(args, "field-size", "conns", "duration")
}

// run drives both sides and prints the results
func run(_ *cobra.Command, _ []string) error {
	cfg, err := cmdUtil.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := cmdUtil.NewLogger(cfg)
	if err != nil {
		return err
	}
	cfg.Addr = "127.0.0.1"
	cfg.Port = 0
	cmdUtil.LogEnvironment(logger, cfg)

	acc, err := server.NewAcceptor(cfg, server.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := acc.Listen(); err != nil {
		return err
	}
	port := acc.Port()

	type result struct {
		rep harness.Report
		err error
	}
	served := make(chan result, 1)
	go func() {
		rep, err := acc.Run()
		served <- result{rep, err}
	}()

	cliCfg := *cfg
	cliCfg.Port = port
	cliCfg.CSVPath = ""
	ini, err := client.NewInitiator(&cliCfg, client.WithLogger(logger))
	if err != nil {
		acc.Shutdown()
		return err
	}
	received, err := ini.Run()
	if err != nil {
		acc.Shutdown()
		<-served
		return err
	}
	// Workers that never connected leave the acceptor waiting.
	if len(received.Threads) < cfg.Conns || received.Aggregate.Failed > 0 {
		acc.Shutdown()
	}
	sent := <-served
	if sent.err != nil {
		return sent.err
	}

	fmt.Println("\n=== Server ===")
	sent.rep.Write(os.Stdout, cfg.Table)
	fmt.Println("\n=== Client ===")
	received.Write(os.Stdout, cfg.Table)
	fmt.Println(received.Aggregate.MetricsLine())
	return received.AppendCSV(cfg)
}

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/momentics/copybench/cmd/loopback"
	"github.com/momentics/copybench/cmd/run"
	"github.com/momentics/copybench/cmd/serve"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "copybench",
		Short: "TCP copy-path benchmark",
		Long: fmt.Sprintf(`copybench (v%s)

Measures how the number of memory copies on the send path of a TCP
stream affects throughput and latency. The server sends, the client
receives and prints one METRICS line.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of copybench",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("copybench v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(run.RunCmd)
	RootCmd.AddCommand(loopback.LoopbackCmd)
	RootCmd.AddCommand(versionCmd)
}

// initConfig reads .env files and binds COPYBENCH_* environment variables
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("copybench")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

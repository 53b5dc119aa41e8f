package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrylevesque/scanrelay/internal/config"
)

// version is set with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath string
	endpoint   string
	logLevel   string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scanrelay",
		Short: "Scan codes and forward each one to an HTTP endpoint",
		Long: `scanrelay arms a code scanner, posts every decoded code as
scanResult=<text> to the configured endpoint and shows whether it arrived.
After each upload the scanner is re-armed two seconds later.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Config file")
	root.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Upload endpoint (overrides config and SCANRELAY_ENDPOINT)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn, error")

	root.AddCommand(newRunCmd(), newSendCmd(), newConfigCmd(), newVersionCmd())
	return root
}

// loadConfig reads the config file and applies the persistent flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint = endpoint
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "scanrelay", version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

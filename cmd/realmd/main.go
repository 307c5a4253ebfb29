package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openmmo/realmd/pkg/config"
)

const version = "1.0.0"

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "realmd",
		Short:         "realmd is the realm gateway: login, game and status wire services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")

	root.AddCommand(serveCmd())
	root.AddCommand(genkeyCmd())
	root.AddCommand(accountCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the realmd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("realmd", version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "realmd:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config, or the defaults
// when the flag is unset.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// setupLogging applies the configured level and output format to the
// global logger every package hangs its component context off.
func setupLogging(cfg config.Log) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return nil
}

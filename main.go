package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maastricht-university/interview-pipeline/config"
	"github.com/maastricht-university/interview-pipeline/logging"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "interview",
		Short: "Mock interview analysis service",
		Long: `interview samples a candidate's camera frames and speech during a mock
interview, summarizes the observations and records a hiring decision.

Run "serve" to back the browser front end, or "run" to replay a recorded
interview from disk.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file (default config/$CONFIG_ENV/config.yaml, then config.yaml)")

	root.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newRunCmd(),
		newResultsCmd(),
		newConfigCmd(),
	)
	return root
}

// loadConfig reads the config named by --config and applies its logging
// settings.
func loadConfig(cmd *cobra.Command) (*config.Root, *viper.Viper, error) {
	path, _ := cmd.Flags().GetString("config")
	c, v, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if err := logging.Setup(c.Pipeline.LogLvl, c.Pipeline.LogFormat); err != nil {
		return nil, nil, err
	}
	return c, v, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "interview version %s\n", version)
		},
	}
}

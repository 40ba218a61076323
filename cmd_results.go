package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/maastricht-university/interview-pipeline/results"
)

func newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results ID",
		Short: "Print the stored result of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := results.Open(c.Results)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printRecord(cmd, rec)
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(c.Redacted()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

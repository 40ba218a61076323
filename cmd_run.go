package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/interview-pipeline/orchestrator"
	"github.com/maastricht-university/interview-pipeline/results"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a recorded interview and print the result",
		Long: `run feeds the image files of --frames, in name order, through one
session at the configured sampling interval. With --audio the recording is
transcribed by the ASR service and scored for sentiment. The session ends
once every frame has been sampled and the transcript delivered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			frames, _ := cmd.Flags().GetString("frames")
			audio, _ := cmd.Flags().GetString("audio")
			if frames == "" {
				return errors.New("--frames is required")
			}
			c, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := results.Open(c.Results)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := orchestrator.NewPipeline(c, store).Run(cmd.Context(), frames, audio)
			if err != nil {
				return err
			}
			return printRecord(cmd, rec)
		},
	}
	cmd.Flags().String("frames", "", "directory of .jpg/.png frames")
	cmd.Flags().String("audio", "", "recorded answer audio (wav/mp3/m4a)")
	return cmd
}

type recordView struct {
	results.Record
	Message string `json:"message"`
}

func printRecord(cmd *cobra.Command, rec results.Record) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(recordView{Record: rec, Message: rec.Decision.Message()})
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/interview-pipeline/clients"
	"github.com/maastricht-university/interview-pipeline/config"
	"github.com/maastricht-university/interview-pipeline/extractor"
	"github.com/maastricht-university/interview-pipeline/logging"
	"github.com/maastricht-university/interview-pipeline/media"
	"github.com/maastricht-university/interview-pipeline/orchestrator"
	"github.com/maastricht-university/interview-pipeline/results"
	"github.com/maastricht-university/interview-pipeline/sentiment"
	"github.com/maastricht-university/interview-pipeline/server"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the interview API for the browser front end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, v, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := logging.Component("serve")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var ex extractor.Extractor
			loaded, err := extractor.Load(ctx, c.Extractor, clients.NewHTTPWithTimeout(c.Extractor.Timeout))
			switch {
			case errors.Is(err, extractor.ErrLoadFailure):
				// sessions run without face analysis
			case err != nil:
				return err
			default:
				ex = loaded
			}

			store, err := results.Open(c.Results)
			if err != nil {
				return err
			}
			defer store.Close()

			classifier := sentiment.New(c.Speech.Keywords.Positive, c.Speech.Keywords.Negative)
			if v.ConfigFileUsed() != "" {
				config.Watch(v, func(nc *config.Root, err error) {
					if err != nil {
						log.WithError(err).Warn("config reload rejected")
						return
					}
					if err := logging.Setup(nc.Pipeline.LogLvl, nc.Pipeline.LogFormat); err != nil {
						log.WithError(err).Warn("log settings not applied")
					}
					classifier.SetKeywords(nc.Speech.Keywords.Positive, nc.Speech.Keywords.Negative)
					log.WithField("file", v.ConfigFileUsed()).Info("config reloaded")
				})
			}

			sessions := orchestrator.NewManager(func(string) orchestrator.Deps {
				return orchestrator.Deps{
					Source:         media.NewPushSource(),
					Extractor:      ex,
					Classifier:     classifier,
					Store:          store,
					Interval:       c.Sampler.Interval,
					SmileThreshold: c.Extractor.SmileThreshold,
				}
			})
			srv := server.New(c.Server, server.Deps{
				Sessions:       sessions,
				Store:          store,
				Extractor:      ex,
				SmileThreshold: c.Extractor.SmileThreshold,
			})

			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			log.Info("shutting down")
			shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shCtx)
		},
	}
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/events"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/middleware"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline for each request consumed from Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			defer a.close()
			if !a.cfg.Kafka.Enabled {
				return fmt.Errorf("%w: serve requires kafka.enabled", apperrors.ErrInvalidConfig)
			}
			ctx := cmd.Context()
			log := logger.WithComponent("serve")

			runner, _, err := a.newRunner(ctx)
			if err != nil {
				return err
			}
			if err := a.checker.Preflight(ctx); err != nil {
				return err
			}
			if a.cfg.Metrics.Enabled {
				handler := middleware.Chain(metrics.NewMux(a.registry, a.checker),
					middleware.Recover,
					middleware.Metrics(a.metrics),
					middleware.Deadline(5*time.Second),
				)
				shutdown := metrics.StartServer(a.cfg.Metrics.Port, handler)
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := shutdown(sctx); err != nil {
						log.Warn("metrics server shutdown", "error", err)
					}
				}()
			}

			handler := events.RequestHandler(func(ctx context.Context, req events.RunRequest) error {
				kinds, err := pipeline.ParseKinds(req.Kinds)
				if err != nil {
					return err
				}
				src, err := corpus.FromConfig(ctx, a.cfg.Corpus, req.Paths)
				if err != nil {
					return err
				}
				_, err = runner.Run(ctx, pipeline.Request{
					RequestID: req.RequestID,
					Source:    src,
					Kinds:     kinds,
					Replace:   req.Replace || a.cfg.Store.ReplaceExisting,
				})
				return err
			})
			consumer := kafka.NewConsumer(a.cfg.Kafka, a.cfg.Kafka.Topics.RunRequests, handler)
			defer consumer.Close()

			log.Info("serving run requests",
				"topic", a.cfg.Kafka.Topics.RunRequests,
				"group", a.cfg.Kafka.ConsumerGroup,
			)
			if err := consumer.Start(ctx); err != nil {
				return fmt.Errorf("consuming run requests: %w", err)
			}
			log.Info("serve stopped")
			return nil
		},
	}
}

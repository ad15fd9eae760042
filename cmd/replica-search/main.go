// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Command replica-search runs the federated search HTTP service: it
// bootstraps a local inverted index from the replica bucket, keeps it
// current from a per-process SQS subscription to the bucket's
// notification topic, and answers search requests by merging that index
// with the upstream BitTorrent metadata backend.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/getlantern/replica-search/internal/api"
	"github.com/getlantern/replica-search/internal/config"
	"github.com/getlantern/replica-search/internal/ingest"
	"github.com/getlantern/replica-search/internal/notifyqueue"
	"github.com/getlantern/replica-search/internal/objectstore"
	"github.com/getlantern/replica-search/internal/query"
	"github.com/getlantern/replica-search/internal/searchindex"
	"github.com/getlantern/replica-search/internal/upstream"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		log.Fatal().Err(err).Msg("replica-search exited with error")
	}
}

func rootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "replica-search",
		Short: "Federated search over the replica BitTorrent object store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.toml", "path to the TOML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}
	configureLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(objectstore.Region))
	if err != nil {
		return err
	}

	bucket := objectstore.New(s3.NewFromConfig(awsCfg), objectstore.BucketName)
	sqsClient := sqs.NewFromConfig(awsCfg)
	snsClient := sns.NewFromConfig(awsCfg)

	sub, err := notifyqueue.Provision(ctx, sqsClient, snsClient)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sub.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("failed to tear down change-queue subscription")
		}
	}()

	index := searchindex.New()
	controller := ingest.New(index, bucket, sub)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	upstreamClient := upstream.New(upstream.Config{
		RootURL:  cfg.UpstreamRootURL,
		Username: cfg.UpstreamUsername,
		Password: cfg.UpstreamPassword,
	}, httpClient)

	engine := query.New(index, upstreamClient)
	router := api.NewRouter(&api.Dependencies{
		Engine:             engine,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := controller.Bootstrap(gctx); err != nil {
			return err
		}
		log.Info().Msg("bootstrap complete, index ready")
		return controller.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr()).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func configureLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

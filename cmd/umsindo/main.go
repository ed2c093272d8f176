// Package main is the umsindo binary: the live submission service and the
// standalone thumbnail/duration backfill job share one executable.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dmarais/umsindo/internal/api"
	"github.com/dmarais/umsindo/internal/blob"
	"github.com/dmarais/umsindo/internal/config"
	"github.com/dmarais/umsindo/internal/ingest"
	"github.com/dmarais/umsindo/internal/media"
	"github.com/dmarais/umsindo/internal/reprocess"
	"github.com/dmarais/umsindo/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "umsindo: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "umsindo",
		Short:        "Competition media intake and moderation service",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newReprocessCmd(),
	)
	return cmd
}

// deps bundles the components shared by both subcommands so the serve path
// and the batch path cannot diverge in how they are wired.
type deps struct {
	cfg    *config.Config
	logger *zap.Logger
	blobs  *blob.Store
	ffmpeg *media.FFmpeg
	subs   *store.Store
}

func buildDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	blobs, err := blob.NewStore(cfg.UploadDir, logger)
	if err != nil {
		return nil, err
	}
	subs, err := store.New(cfg.DataFile)
	if err != nil {
		return nil, err
	}
	ffmpeg := media.NewFFmpeg(cfg.FFprobePath, cfg.FFmpegPath, cfg.ProbeTimeout, cfg.ThumbTimeout, logger)
	return &deps{cfg: cfg, logger: logger, blobs: blobs, ffmpeg: ffmpeg, subs: subs}, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP intake and moderation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.logger.Sync()

			pipeline := ingest.New(d.blobs, d.ffmpeg, d.ffmpeg, d.subs,
				d.cfg.MinDuration, d.cfg.MaxDuration, d.logger)
			server := api.New(d.cfg, pipeline, d.subs, d.logger)
			return server.Run(cmd.Context())
		},
	}
}

func newReprocessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess",
		Short: "Backfill missing durations and thumbnails for stored submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.logger.Sync()

			job := reprocess.New(d.blobs, d.ffmpeg, d.ffmpeg, d.subs, d.logger)
			updated, err := job.Run(cmd.Context())
			if err != nil {
				return err
			}
			d.logger.Info("reprocess complete", zap.Int("updated", updated))
			return nil
		},
	}
}

// cmd/process.go - Tile pipeline command
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/tilemani/internal"
	"github.com/valpere/tilemani/internal/batch"
	"github.com/valpere/tilemani/internal/config"
	"github.com/valpere/tilemani/internal/logger"
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the tile pipeline for one city, style and zoom",
	Long: `Run retrieve, rasterize, compute-stats and persist for every tile found in
{data_root}/{city}/{style}/{zoom}.

Per tile the command writes the road graph (GraphML), the building footprints
(GeoJSON), the road network statistics (CSV) and one image per style and layer
under {out_dir_root}/{city}. The records of all tiles are collected into
{records_dir_root}/{city}-{style}-{zoom}-ver{N}.bson, where N is the first
version that does not exist yet.

Interrupting the run stops after the current tile; the records gathered so far
are still written.

Examples:
  # Default style and zoom
  tilemani process --city paris

  # Walking network, custom output roots
  tilemani process --city paris --network_type walk --out_dir_root ./out --records_dir_root ./records

  # JSON batch and vector tiles
  TILEMANI_OUTPUT_BATCH_FORMAT=json tilemani process --city paris --vector-tiles`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	// Input flags
	processCmd.Flags().String("city", "", "city directory name (required)")
	processCmd.Flags().String("style", "StamenTonerLines", "source tile style directory")
	processCmd.Flags().String("zoom", "14", "zoom level directory")
	processCmd.Flags().String("data_root", "./data", "root of the input tile directories")

	// Retrieval flags
	processCmd.Flags().String("network_type", "drive_service", "road network type (drive, drive_service, walk, bike, all, all_private)")

	// Output flags
	processCmd.Flags().String("out_dir_root", "./temp/images", "root for images and per-tile artifacts")
	processCmd.Flags().String("records_dir_root", "./temp/records", "root for batch record files")
	processCmd.Flags().Bool("vector-tiles", false, "also write a Mapbox Vector Tile per tile")

	// Progress flags
	processCmd.Flags().Bool("progress", true, "show progress indicator")
	processCmd.Flags().Duration("progress-interval", time.Second, "progress update interval")

	processCmd.MarkFlagRequired("city")

	viper.BindPFlag("data.city", processCmd.Flags().Lookup("city"))
	viper.BindPFlag("data.style", processCmd.Flags().Lookup("style"))
	viper.BindPFlag("data.zoom", processCmd.Flags().Lookup("zoom"))
	viper.BindPFlag("data.root", processCmd.Flags().Lookup("data_root"))
	viper.BindPFlag("retrieval.network_type", processCmd.Flags().Lookup("network_type"))
	viper.BindPFlag("output.images_root", processCmd.Flags().Lookup("out_dir_root"))
	viper.BindPFlag("output.records_root", processCmd.Flags().Lookup("records_dir_root"))
	viper.BindPFlag("output.vector_tiles", processCmd.Flags().Lookup("vector-tiles"))
	viper.BindPFlag("logging.progress", processCmd.Flags().Lookup("progress"))
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.Build(cfg.Logging, nil)

	interval, _ := cmd.Flags().GetDuration("progress-interval")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator := batch.NewCoordinator(cfg, afero.NewOsFs(), log)
	if cfg.Logging.Progress {
		coordinator.WithReporter(batch.NewConsoleProgressReporter(os.Stderr, interval))
	}

	log.Info().
		Str("city", cfg.Data.City).
		Str("style", cfg.Data.Style).
		Str("zoom", cfg.Data.Zoom).
		Str("input", cfg.InputDir()).
		Msg("Processing tiles")

	job, err := coordinator.Run(ctx)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			log.Warn().Str("batch", jobBatch(job)).Msg("Run interrupted, partial batch written")
		case internal.IsCode(err, internal.ErrorCodeConfig):
			log.Error().Err(err).Msg("Invalid configuration")
		default:
			log.Error().Err(err).Msg("Run failed")
		}
		return err
	}

	if cfg.Logging.Verbose || cfg.Logging.Progress {
		elapsed := time.Since(job.Progress.StartTime)
		fmt.Fprintf(os.Stderr, "\nRun %s\n", job.ID)
		fmt.Fprintf(os.Stderr, "Processed: %d tiles (%d degraded)\n", job.Progress.ProcessedTiles, job.Progress.DegradedTiles)
		fmt.Fprintf(os.Stderr, "Roads: %d, Buildings: %d, Images: %d\n",
			job.Progress.RoadTiles, job.Progress.BldgTiles, job.Progress.ImagesWritten)
		fmt.Fprintf(os.Stderr, "Duration: %v\n", elapsed.Round(time.Millisecond))
		fmt.Fprintf(os.Stderr, "Batch: %s\n", job.BatchPath)
	}

	return nil
}

func jobBatch(job *batch.Job) string {
	if job == nil {
		return ""
	}
	return job.BatchPath
}

package cmd

import (
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/jeffboody/osmdb-sub000/internal/kml"
	"github.com/jeffboody/osmdb-sub000/internal/logger"
	"github.com/jeffboody/osmdb-sub000/internal/store"
	"github.com/jeffboody/osmdb-sub000/internal/style"
)

var importKMLCmd = &cobra.Command{
	Use:   "import-kml <style.yaml> <store> <overlay.kml> [more.kml ...]",
	Short: "Append KML overlay polygons to a store",
	Long: `Append designation overlays (wilderness areas, national monuments and
similar) to an existing store. Placemark polygons become synthetic ways
with negative ids, split at the per-way node budget and linked under
one covering relation per placemark.`,
	Args: cobra.MinimumNArgs(3),
	Run:  runImportKML,
}

func init() {
	rootCmd.AddCommand(importKMLCmd)

	importKMLCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Mutations per store transaction")
}

func runImportKML(cmd *cobra.Command, args []string) {
	cfg.StyleFile = args[0]
	cfg.StorePath = args[1]
	paths := args[2:]
	log := logger.Get()

	sheet, err := style.Load(cfg.StyleFile)
	if err != nil {
		exitWithError("failed to load style sheet", err)
	}

	st, err := store.OpenUpdater(cfg.StorePath, cfg.BatchSize, cfg.CacheBytes)
	if err != nil {
		exitWithError("failed to open store", err)
	}
	defer st.Close()

	im, err := kml.New(sheet, st)
	if err != nil {
		exitWithError("failed to create kml importer", err)
	}

	start := time.Now()
	if err := im.Run(paths...); err != nil {
		exitWithError("kml import failed", err)
	}

	stats := im.Stats()
	log.Info("kml import finished",
		zap.Duration("duration", time.Since(start).Round(time.Second)),
		zap.Int64("placemarks", stats.Placemarks),
		zap.Int64("ways", stats.Ways),
		zap.Int64("skipped", stats.Skipped))
}

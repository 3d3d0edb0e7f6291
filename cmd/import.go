package cmd

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/jeffboody/osmdb-sub000/internal/coordcache"
	"github.com/jeffboody/osmdb-sub000/internal/importer"
	"github.com/jeffboody/osmdb-sub000/internal/logger"
	"github.com/jeffboody/osmdb-sub000/internal/metrics"
	"github.com/jeffboody/osmdb-sub000/internal/osmxml"
	"github.com/jeffboody/osmdb-sub000/internal/pbf"
	"github.com/jeffboody/osmdb-sub000/internal/store"
	"github.com/jeffboody/osmdb-sub000/internal/style"
)

var importCmd = &cobra.Command{
	Use:   "import <style.yaml> <planet.osm[.pbf|.gz]> <out.store>",
	Short: "Stream an OSM extract into a new store",
	Long: `Parse an OSM extract (XML, gzipped XML, or PBF), classify features
against the style sheet, and build the tiled blob store.

The import is two-pass: the stream pass writes blobs and remembers
selected relations; the finish pass derives relation ranges from member
way ranges read back from the store. Node coordinates are spilled to a
paged on-disk cache so planet-scale inputs fit in bounded memory.`,
	Args: cobra.ExactArgs(3),
	Run:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Mutations per store transaction")
	importCmd.Flags().StringVar(&cfg.CoordCachePath, "coord-cache", "", "Coord cache file (default <out.store>.coords)")
	importCmd.Flags().Int64Var(&cfg.CoordCacheBytes, "coord-budget", cfg.CoordCacheBytes, "Byte budget for resident coord pages")
	importCmd.Flags().StringVar(&cfg.CoordIndex, "coord-index", cfg.CoordIndex, "Coord cache backend: paged or mmap")
	importCmd.Flags().StringSliceVar(&cfg.SkipNames, "skip-names", nil, "Feature names to discard (e.g. the Great Lakes)")
}

func runImport(cmd *cobra.Command, args []string) {
	cfg.StyleFile = args[0]
	cfg.InputFile = args[1]
	cfg.StorePath = args[2]
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	sheet, err := style.Load(cfg.StyleFile)
	if err != nil {
		exitWithError("failed to load style sheet", err)
	}

	st, err := store.OpenWriter(cfg.StorePath, cfg.Zooms, cfg.BatchSize, cfg.CacheBytes)
	if err != nil {
		exitWithError("failed to open store", err)
	}
	defer st.Close()

	coordPath := cfg.CoordCachePath
	if coordPath == "" {
		coordPath = cfg.StorePath + ".coords"
	}
	coords, err := openCoordCache(coordPath)
	if err != nil {
		exitWithError("failed to open coord cache", err)
	}
	defer func() {
		coords.Close()
		os.Remove(coordPath)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go metrics.New(cfg.MetricsInterval, st).Run(ctx)

	log.Info("starting import",
		zap.String("input", cfg.InputFile),
		zap.String("store", cfg.StorePath),
		zap.Ints("zooms", cfg.Zooms))
	start := time.Now()

	im := importer.New(cfg, sheet, st, coords)
	if err := im.Begin(); err != nil {
		exitWithError("failed to start import", err)
	}
	if err := feedInput(ctx, cfg.InputFile, im); err != nil {
		exitWithError("import failed", err)
	}
	if err := im.Finish(); err != nil {
		exitWithError("import failed", err)
	}

	stats := im.Stats()
	log.Info("import finished",
		zap.Duration("duration", time.Since(start).Round(time.Second)),
		zap.Int64("nodes", stats.Nodes),
		zap.Int64("ways", stats.Ways),
		zap.Int64("relations", stats.Relations))
}

func openCoordCache(path string) (coordcache.Cache, error) {
	if cfg.CoordIndex == "mmap" {
		return coordcache.NewMmap(path)
	}
	return coordcache.NewPaged(path, cfg.CoordCacheBytes)
}

// feedInput streams the extract into the sink, picking the decoder by
// file extension.
func feedInput(ctx context.Context, path string, sink osmxml.Sink) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".pbf") {
		return pbf.Parse(ctx, f, sink)
	}

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}
	return osmxml.Parse(r, sink)
}

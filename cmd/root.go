package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/jeffboody/osmdb-sub000/internal/config"
	"github.com/jeffboody/osmdb-sub000/internal/logger"
	"github.com/jeffboody/osmdb-sub000/internal/osmerr"
)

var (
	cfg             = config.DefaultConfig()
	verbose         bool
	logFile         string
	metricsInterval time.Duration
	zoomsFlag       string
)

var rootCmd = &cobra.Command{
	Use:   "osmdb",
	Short: "OSM tile-database builder and server",
	Long: `osmdb builds a tiled feature database from OSM extracts and serves
assembled tiles from it.

Commands:
  import           stream an OSM extract into a new store
  import-kml       append KML overlay polygons to a store
  apply-changeset  invalidate regions touched by newer changesets
  select           assemble one tile to stdout
  serve            answer /osmdbv4/<z>/<x>/<y> tile requests over HTTP`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg.Verbose = verbose
		cfg.LogFile = logFile
		cfg.MetricsInterval = metricsInterval

		if logFile != "" {
			logger.InitWithFile(verbose, logFile)
		} else {
			logger.Init(verbose)
		}

		if zoomsFlag != "" {
			zooms, err := config.ParseZooms(zoomsFlag)
			if err != nil {
				return err
			}
			cfg.Zooms = zooms
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 30*time.Second, "Interval for load logging (e.g., 10s, 1m)")
	rootCmd.PersistentFlags().StringVar(&zoomsFlag, "zooms", "", "Tile grid zoom set, e.g. 11,14 (default) or 9,12,15 (legacy)")
	rootCmd.PersistentFlags().Int64Var(&cfg.CacheBytes, "cache-bytes", cfg.CacheBytes, "Byte budget for the record cache")
}

// exitWithError reports a failure on one line, naming the error kind
// and the offending object id and input line when known, and exits 1.
func exitWithError(msg string, err error) {
	log := logger.Get()
	if err == nil {
		log.Error(msg)
		fmt.Fprintf(os.Stderr, "osmdb: %s\n", msg)
		os.Exit(1)
	}

	var oe *osmerr.Error
	if errors.As(err, &oe) {
		log.Error(msg,
			zap.String("kind", oe.Kind.String()),
			zap.Int64("id", oe.ID),
			zap.Int("line", oe.Line),
			zap.Error(err))
	} else {
		log.Error(msg, zap.Error(err))
	}
	fmt.Fprintf(os.Stderr, "osmdb: %s: %v\n", msg, err)
	os.Exit(1)
}

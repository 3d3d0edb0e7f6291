package cmd

import (
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/jeffboody/osmdb-sub000/internal/changeset"
	"github.com/jeffboody/osmdb-sub000/internal/logger"
	"github.com/jeffboody/osmdb-sub000/internal/store"
)

var changesetCmd = &cobra.Command{
	Use:   "apply-changeset <baseline-id> <changesets.osm> <store>",
	Short: "Invalidate regions touched by newer changesets",
	Long: `Read changeset metadata and drop the ranges and tile references of
every way and relation overlapping a changeset newer than the baseline
id. The store's persisted changeset id advances only when the whole
batch succeeds.`,
	Args: cobra.ExactArgs(3),
	Run:  runChangeset,
}

func init() {
	rootCmd.AddCommand(changesetCmd)

	changesetCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Mutations per store transaction")
}

func runChangeset(cmd *cobra.Command, args []string) {
	log := logger.Get()

	baseline, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		exitWithError("invalid baseline changeset id", err)
	}
	cfg.StorePath = args[2]

	f, err := os.Open(args[1])
	if err != nil {
		exitWithError("failed to open changeset file", err)
	}
	defer f.Close()

	st, err := store.OpenUpdater(cfg.StorePath, cfg.BatchSize, cfg.CacheBytes)
	if err != nil {
		exitWithError("failed to open store", err)
	}
	defer st.Close()

	stats, err := changeset.New(st).Apply(f, baseline)
	if err != nil {
		exitWithError("apply failed", err)
	}

	log.Info("apply finished",
		zap.Int64("changesets", stats.Changesets),
		zap.Int64("dropped_ways", stats.DroppedWays),
		zap.Int64("dropped_rels", stats.DroppedRels),
		zap.Int64("changeset", stats.NewChangeset))
}

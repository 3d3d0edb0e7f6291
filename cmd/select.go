package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/jeffboody/osmdb-sub000/internal/assemble"
	"github.com/jeffboody/osmdb-sub000/internal/server"
	"github.com/jeffboody/osmdb-sub000/internal/store"
)

var selectCmd = &cobra.Command{
	Use:   "select <store> /osmdbv4/<zoom>/<x>/<y>",
	Short: "Assemble one tile to stdout",
	Args:  cobra.ExactArgs(2),
	Run:   runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)
}

func runSelect(cmd *cobra.Command, args []string) {
	cfg.StorePath = args[0]

	zoom, x, y, ok := server.ParseTilePath(args[1])
	if !ok {
		exitWithError("invalid tile path "+args[1], nil)
	}

	st, err := store.OpenReader(cfg.StorePath, cfg.CacheBytes)
	if err != nil {
		exitWithError("failed to open store", err)
	}
	defer st.Close()

	err = assemble.New(st).Tile(zoom, x, y, os.Stdout)
	if errors.Is(err, assemble.ErrZoom) {
		exitWithError("zoom not served by this store", err)
	}
	if err != nil {
		exitWithError("tile assembly failed", err)
	}
}

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/jeffboody/osmdb-sub000/internal/assemble"
	"github.com/jeffboody/osmdb-sub000/internal/logger"
	"github.com/jeffboody/osmdb-sub000/internal/server"
	"github.com/jeffboody/osmdb-sub000/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve <store>",
	Short: "Answer /osmdbv4/<z>/<x>/<y> tile requests over HTTP",
	Args:  cobra.ExactArgs(1),
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg.StorePath = args[0]
	log := logger.Get()

	st, err := store.OpenReader(cfg.StorePath, cfg.CacheBytes)
	if err != nil {
		exitWithError("failed to open store", err)
	}
	defer st.Close()

	log.Info("store opened",
		zap.String("store", cfg.StorePath),
		zap.Ints("zooms", st.Zooms()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg.ListenAddr, assemble.New(st)).Run(ctx); err != nil {
		exitWithError("server failed", err)
	}
}

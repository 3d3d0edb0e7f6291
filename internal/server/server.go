// Package server exposes the tile assembler over HTTP. The surface is
// two fixed routes, GET /osmdbv4/<zoom>/<x>/<y> and a health check, so
// the stdlib mux is all the routing needed.
package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeffboody/osmdb-sub000/internal/assemble"
	"github.com/jeffboody/osmdb-sub000/internal/logger"
)

// Server serves assembled tiles.
type Server struct {
	httpSrv *http.Server
	log     *zap.Logger
}

// New builds a server on the given listen address.
func New(addr string, asm *assemble.Assembler) *Server {
	mux := http.NewServeMux()
	mux.Handle("/osmdbv4/", tileHandler(asm))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &Server{
		httpSrv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		log: logger.Get(),
	}
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving tiles", zap.String("addr", s.httpSrv.Addr))
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// tileHandler parses /osmdbv4/<zoom>/<x>/<y> and streams the payload.
// The tile is assembled into memory first so a mid-assembly failure
// still produces a clean error status.
func tileHandler(asm *assemble.Assembler) http.Handler {
	log := logger.Get()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		zoom, x, y, ok := ParseTilePath(r.URL.Path)
		if !ok {
			http.Error(w, "bad tile path", http.StatusBadRequest)
			return
		}

		var buf bytes.Buffer
		start := time.Now()
		err := asm.Tile(zoom, x, y, &buf)
		if errors.Is(err, assemble.ErrZoom) {
			http.Error(w, "zoom not served", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error("tile assembly failed",
				zap.Int("zoom", zoom),
				zap.Uint32("x", x),
				zap.Uint32("y", y),
				zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		log.Debug("tile served",
			zap.Int("zoom", zoom),
			zap.Uint32("x", x),
			zap.Uint32("y", y),
			zap.Int("bytes", buf.Len()),
			zap.Duration("duration", time.Since(start)))

		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.Write(buf.Bytes())
	})
}

// ParseTilePath extracts (zoom, x, y) from /osmdbv4/<zoom>/<x>/<y>.
func ParseTilePath(path string) (zoom int, x, y uint32, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 || parts[0] != "osmdbv4" {
		return 0, 0, 0, false
	}
	zoom, err := strconv.Atoi(parts[1])
	if err != nil || zoom < 0 || zoom > 21 {
		return 0, 0, 0, false
	}
	max := int64(1) << zoom
	xv, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || xv < 0 || xv >= max {
		return 0, 0, 0, false
	}
	yv, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || yv < 0 || yv >= max {
		return 0, 0, 0, false
	}
	return zoom, uint32(xv), uint32(yv), true
}

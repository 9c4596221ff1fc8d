package cmd

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/MeKo-Tech/noisemix/internal/compose"
	"github.com/MeKo-Tech/noisemix/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve [composition]",
	Short: "Serve a composition as PNG tiles generated on demand",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("mix", "noisemix.mix.yaml", "Composition file (YAML or JSON)")
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Int("tile-size", 256, "Tile side in samples (@2x requests are upscaled)")
	serveCmd.Flags().Int("workers", 0, "Generator workers per tile (default: number of CPUs)")
	serveCmd.Flags().Int("max-concurrent-generations", runtime.NumCPU(), "Max concurrent tile generations (default: number of CPUs)")
	serveCmd.Flags().Duration("generation-timeout", 30*time.Second, "Timeout per tile generation")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for served tiles")
	serveCmd.Flags().Float32("smooth", 0, "Gaussian blur sigma applied to every tile (0 disables)")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.mix", "mix")
	mustBind("serve.addr", "addr")
	mustBind("serve.tile_size", "tile-size")
	mustBind("serve.workers", "workers")
	mustBind("serve.max_concurrent_generations", "max-concurrent-generations")
	mustBind("serve.generation_timeout", "generation-timeout")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.smooth", "smooth")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	mixPath := viper.GetString("serve.mix")
	if len(args) == 1 {
		mixPath = args[0]
	}
	addr := viper.GetString("serve.addr")
	maxConc := viper.GetInt("serve.max_concurrent_generations")

	cfg, err := compose.Load(mixPath)
	if err != nil {
		return err
	}
	engine, err := compose.NewEngine(cfg, compose.Options{
		Workers: viper.GetInt("serve.workers"),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	tiles, err := server.NewTiles(engine, server.TilesConfig{
		TileSize:                 viper.GetInt("serve.tile_size"),
		MaxConcurrentGenerations: maxConc,
		GenerationTimeout:        viper.GetDuration("serve.generation_timeout"),
		CacheControl:             viper.GetString("serve.cache_control"),
		Smooth:                   float32(viper.GetFloat64("serve.smooth")),
	}, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/status", withCORS(tiles.StatusHandler()))
	mux.Handle("/tiles/", withCORS(tiles.Handler()))

	logger.Info("tile server listening",
		"addr", addr,
		"mix", mixPath,
		"max_concurrent_generations", maxConc,
	)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

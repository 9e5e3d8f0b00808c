package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/terrasine/internal/catalog"
	"github.com/MeKo-Tech/terrasine/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a run catalogue over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for served images")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.cache_control", "cache-control")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	catalogPath := viper.GetString("catalog")
	if catalogPath == "" {
		return fmt.Errorf("--catalog is required")
	}

	reader, err := catalog.OpenReader(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to open catalogue: %w", err)
	}
	defer reader.Close()

	runs := server.NewCatalogHandler(reader, server.CatalogConfig{
		CacheControl: viper.GetString("serve.cache_control"),
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/runs", withCORS(runs.Handler()))
	mux.Handle("/runs/", withCORS(runs.Handler()))

	logger.Info("catalogue server listening", "addr", addr, "catalog", catalogPath)

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

package main

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront/internal/db"
	"storefront/internal/storefront"
	"storefront/pkg/kit"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply database migrations before serving")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if serveMigrate {
		if cfg.Database.DSN == "" {
			log.Fatal("--migrate needs database.dsn")
		}
		if _, err := db.Migrate(cfg.Database.DSN, log); err != nil {
			log.Fatal("migrations failed", zap.Error(err))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := storefront.Build(cmd.Context(), cfg, log, reg)
	if err != nil {
		log.Fatal("init storefront failed", zap.Error(err))
	}
	defer app.Close()

	opts := kit.ServerOptions{
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	}
	if err := kit.RunHTTPServer(cmd.Context(), ":"+strconv.Itoa(cfg.Server.Port), app.Handler, log, opts); err != nil {
		log.Error("http server stopped", zap.Error(err))
		return err
	}
	return nil
}

package main

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"comps_dedup/internal/adapters/geocoder"
	server "comps_dedup/internal/adapters/http_server"
	"comps_dedup/internal/adapters/observability"
	redisad "comps_dedup/internal/adapters/redis"
	"comps_dedup/internal/app"
	"comps_dedup/internal/domain"
	"comps_dedup/internal/shared"
	mysqlrepo "comps_dedup/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	var geo domain.Geocoder
	client, err := geocoder.New(cfg.GeocoderBase, cfg.GeocoderAgent, cfg.GeocoderRPS)
	if err != nil {
		log.Warn().Err(err).Msg("geocoding disabled")
	} else {
		cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := cache.Ping(context.Background()); err != nil {
			log.Warn().Err(err).Msg("redis unreachable; geocode cache calls will fail over to direct lookups")
		}
		geo = geocoder.NewCached(client, cache, int(cfg.GeocodeTTL.Seconds()))
	}
	svc := app.NewCleaningService(repo, geo, cfg.DedupOptions(), cfg.GeocodeWorkers)

	// http
	srv := server.New(cfg.RequestTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{S: svc})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

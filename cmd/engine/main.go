// Package main runs the investment lifecycle engine: the confirmation
// workflow, the maturity sweeper, the REST API and the ops endpoints.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	app "github.com/Goodisoft/vestearning/internal/app"
	"github.com/Goodisoft/vestearning/internal/app/httpapi"
	"github.com/Goodisoft/vestearning/internal/app/metrics"
	maturitysvc "github.com/Goodisoft/vestearning/internal/app/services/maturity"
	"github.com/Goodisoft/vestearning/internal/app/storage/postgres"
	"github.com/Goodisoft/vestearning/internal/config"
	"github.com/Goodisoft/vestearning/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.NewDefault("engine")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("load configuration failed")
		os.Exit(1)
	}

	stores := app.Stores{}
	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.WithError(err).Error("connect postgres failed")
			os.Exit(1)
		}
		defer store.Close()
		if err := store.Migrate(); err != nil {
			log.WithError(err).Error("apply migrations failed")
			os.Exit(1)
		}
		stores = app.Stores{
			Users:        store,
			Plans:        store,
			Investments:  store,
			Transactions: store,
			Wallets:      store,
			Settings:     store,
		}
		log.Info("using postgres store")

		seedSettings(store, cfg, log)
	} else {
		log.Warn("ENGINE_POSTGRES_DSN not set; running with in-memory store")
	}

	opts := app.Options{
		SweepInterval: cfg.SweepInterval,
		SweepSchedule: cfg.SweepSchedule,
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		opts.SweepLock = maturitysvc.NewRedisLock(client, "", 0, log)
		log.Info("sweep lock enabled via redis")
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		log.WithError(err).Error("build application failed")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application failed")
		os.Exit(1)
	}

	opsServer := &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           opsHandler(application),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("listening on %s", cfg.OpsAddr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("listener failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	_ = opsServer.Shutdown(shutdownCtx)
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("stop application failed")
	}
}

func opsHandler(application *app.Application) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.PathPrefix("/").Handler(httpapi.NewHandler(application))
	return router
}

// seedSettings writes the referral configuration file into the store so
// the confirmation workflow reads one source of truth.
func seedSettings(store *postgres.Store, cfg config.Config, log *logger.Logger) {
	settings, err := config.LoadReferralSettings(cfg.ReferralConfigPath)
	if err != nil {
		log.WithError(err).Warn("load referral settings failed; keeping stored configuration")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.SaveReferralSettings(ctx, settings); err != nil {
		log.WithError(err).Warn("seed referral settings failed")
	}
}

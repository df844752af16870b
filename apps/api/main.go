package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	dig_container "github.com/trezcool/studylab/apps/api/di/dig"
	echoapi "github.com/trezcool/studylab/apps/api/echo"
	"github.com/trezcool/studylab/core"
	"github.com/trezcool/studylab/core/activity"
	logsvc "github.com/trezcool/studylab/services/logger"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		rollbarLogger *logsvc.RollbarLogger,
		db *sqlx.DB,
		activities *activity.Service,
		server echoapi.Server,
		shutdown chan os.Signal,
	) {
		// =========================================================================
		// Initialize App

		logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
		defer rollbarLogger.Sync()
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("closing database", err)
			}
		}()
		defer logger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/vars - Added to the default mux by importing the expvar package.

		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error("debug server closed", err)
			}
		}()

		// =========================================================================
		// Start Jobs

		if conf.Jobs.TimeSpentSchedule != "" {
			jobs := cron.New()
			_, err := jobs.AddFunc(conf.Jobs.TimeSpentSchedule, func() {
				n, err := activities.RecalculateAll(context.Background())
				if err != nil {
					logger.Error("recalculating time spent", err)
					return
				}
				logger.Info("recalculated time spent", map[string]interface{}{"updated": n})
			})
			if err != nil {
				logger.Fatal("scheduling time spent job", err)
			}
			jobs.Start()
			defer jobs.Stop()
		}

		// =========================================================================
		// Start API Service

		serverErrors := make(chan error, 1)
		go func() {
			serverErrors <- server.Start()
		}()

		// =========================================================================
		// Shutdown

		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			logger.Error("server error", err)

		case sig := <-shutdown:
			logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			if err := server.Stop(ctx); err != nil {
				logger.Error("could not stop server gracefully", err)
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

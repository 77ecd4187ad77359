package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/slotwise/slotwise/apps/api/echo"
	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/allocation"
	"github.com/slotwise/slotwise/core/export"
	"github.com/slotwise/slotwise/core/ingest"
	"github.com/slotwise/slotwise/core/schema"
	"github.com/slotwise/slotwise/core/timetable"
	"github.com/slotwise/slotwise/core/user"
	logsvc "github.com/slotwise/slotwise/services/logger"
	"github.com/slotwise/slotwise/storage/database"
	boiledrepos "github.com/slotwise/slotwise/storage/database/sqlboiler"
	sqlxrepos "github.com/slotwise/slotwise/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	dbx := sqlx.NewDb(db, conf.Database.Engine)

	// set up stores & services
	schemaStore := sqlxrepos.NewSchemaStore(dbx)
	ttRepo := sqlxrepos.NewTimetableRepository(dbx)

	usrSvc := user.NewService(boiledrepos.NewUserRepository(db))
	schemaSvc := schema.NewService(schemaStore)
	yearSvc := ingest.NewYearService(schemaStore, logger)
	allocSvc := allocation.NewService(schemaStore, logger, conf.Timetable.Seed)
	ttSvc := timetable.NewService(ttRepo, logger, conf.Timetable)
	exportSvc := export.NewService(ttRepo, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	schema.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - API counters plus the go & process collectors.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Registerer: prometheus.DefaultRegisterer,
			HealthCheck: func(ctx context.Context) error {
				return database.StatusCheck(ctx, db)
			},
			UserSvc:       usrSvc,
			SchemaSvc:     schemaSvc,
			YearSvc:       yearSvc,
			AllocationSvc: allocSvc,
			TimetableSvc:  ttSvc,
			ExportSvc:     exportSvc,
			Validate:      validate,
			Translator:    translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

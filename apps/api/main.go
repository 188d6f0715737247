package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	echoapi "github.com/trezcool/taarifa/apps/api/echo"
	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/portal"
	"github.com/trezcool/taarifa/core/school"
	"github.com/trezcool/taarifa/core/user"
	emailsvc "github.com/trezcool/taarifa/services/email"
	logsvc "github.com/trezcool/taarifa/services/logger"
	sessionsvc "github.com/trezcool/taarifa/services/session"
	"github.com/trezcool/taarifa/storage/database"
	inmemdb "github.com/trezcool/taarifa/storage/database/inmem"
	sqlxstore "github.com/trezcool/taarifa/storage/database/sqlx"
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
	defer logger.Close()

	storeLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "STORE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	storeLogger.Enable(!conf.Debug)

	// set up the remote store
	store, closeStore, err := setUpStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up store: %v", err), err)
	}
	defer func() {
		if err = closeStore(); err != nil {
			storeLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var sessions sessionsvc.Store
	if conf.UsesRedis() {
		rdb := redis.NewClient(&redis.Options{Addr: conf.Redis.Addr, Password: conf.Redis.Password, DB: conf.Redis.DB})
		defer func() { _ = rdb.Close() }()
		sessions = sessionsvc.NewRedisStore(rdb)
	} else {
		sessions = sessionsvc.NewMemoryStore()
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)

	if err = core.ParseEmailTemplates(conf); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}
	user.InitTokenGenerator(conf)
	user.LoadCommonPasswords(conf.CommonPasswords, logger)

	ctrl := portal.NewController(store, conf, storeLogger)
	if err = ctrl.Load(context.Background()); err != nil {
		// the API reports it on /health and loading is retried on /v1/sync
		logger.Error(fmt.Sprintf("loading school data: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("store").Set(conf.StoreDriver)

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
			Portal:     ctrl,
			Sessions:   sessions,
			MailSvc:    mailSvc,
			Validate:   validate,
			Translator: translator,
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

// setUpStore returns the configured remote store and a func closing it.
func setUpStore(conf *core.Config) (core.RemoteStore, func() error, error) {
	if conf.IsMemoryStore() {
		return inmemdb.NewDB(inmemdb.AllTables...), func() error { return nil }, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return sqlxstore.NewStore(db), db.Close, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

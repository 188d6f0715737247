package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/portal"
	"github.com/trezcool/taarifa/core/school"
	"github.com/trezcool/taarifa/core/user"
	logsvc "github.com/trezcool/taarifa/services/logger"
	"github.com/trezcool/taarifa/storage/database"
	sqlxstore "github.com/trezcool/taarifa/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	if conf.IsMemoryStore() {
		logger.Fatal("the admin CLI works on the postgres store only")
	}

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	user.LoadCommonPasswords(conf.CommonPasswords, logger)

	// start CLI
	cli := commandLine{
		db:       db,
		portal:   portal.NewController(sqlxstore.NewStore(db), conf, logger),
		validate: validate,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Printf("\nerror: %s\n", err)
		}
		logger.Close()
		os.Exit(1)
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/assets"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/account"
	"github.com/trezcool/shule/core/session"
	"github.com/trezcool/shule/services/auth/hosted"
	"github.com/trezcool/shule/services/auth/local"
	"github.com/trezcool/shule/storage/database"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	errAndDie(account.LoadCommonPasswords(assets.FS))

	var auth session.Authenticator
	if conf.Auth.Provider == core.AuthLocal {
		auth = local.NewProvider(conf.SecretKey, conf.Auth.AccessTokenTTL, conf.Auth.RefreshTokenTTL)
	} else {
		auth = hosted.NewProvider(conf.Auth.URL, conf.Auth.PublicKey, conf.Auth.RefreshMargin, &http.Client{Timeout: 10 * time.Second})
	}

	cli := commandLine{
		openDB: func() (*sql.DB, error) {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, err
			}
			return database.Open(conf)
		},
		auth:       auth,
		validate:   validate,
		translator: translator,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}

package dig_container

import (
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/assets"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/session"
	"github.com/trezcool/shule/services/auth/hosted"
	"github.com/trezcool/shule/services/auth/local"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database"
	"github.com/trezcool/shule/storage/rpc"
	"github.com/trezcool/shule/storage/rpc/postgres"
	"github.com/trezcool/shule/storage/rpc/postgrest"
)

// remoteTimeout bounds every call to the backend and the identity provider.
const remoteTimeout = 10 * time.Second

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// ServerParams lists everything the echo server is built from.
	ServerParams struct {
		dig.In
		Conf          *core.Config
		Logger        core.Logger
		SchoolSvc     *school.Service
		Provider      session.Provider
		Authenticator session.Authenticator
		MailSvc       core.EmailService
		Validate      *validator.Validate
		Translator    ut.Translator
	}

	// BackendCloser releases the backend connection (a no-op over HTTP).
	BackendCloser io.Closer

	nopCloser struct{}
)

func (nopCloser) Close() error { return nil }

func newConfig() *core.Config {
	conf := core.NewConfig()
	if err := conf.Validate(); err != nil {
		log.Fatal(err)
	}
	return conf
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: remoteTimeout}
}

// newCaller picks how stored procedures are reached: the hosted REST gateway, or a direct connection.
func newCaller(conf *core.Config, loggerParam DBLoggerParam, client *http.Client) (rpc.Caller, BackendCloser) {
	if conf.Backend.Mode == core.BackendPostgREST {
		return postgrest.NewCaller(conf.Backend.URL, conf.Backend.PublicKey, client), nopCloser{}
	}

	setUp := func() (*sql.DB, error) {
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

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return postgres.NewCaller(db), db
}

func newAuthProvider(conf *core.Config, client *http.Client) (session.Provider, session.Authenticator) {
	if conf.Auth.Provider == core.AuthLocal {
		p := local.NewProvider(conf.SecretKey, conf.Auth.AccessTokenTTL, conf.Auth.RefreshTokenTTL)
		return p, p
	}
	p := hosted.NewProvider(conf.Auth.URL, conf.Auth.PublicKey, conf.Auth.RefreshMargin, client)
	return p, p
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newServer(p ServerParams) *echoapi.Server {
	var fsys fs.FS = assets.FS
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		SchoolSvc:     p.SchoolSvc,
		Provider:      p.Provider,
		Authenticator: p.Authenticator,
		MailSvc:       p.MailSvc,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Assets:        fsys,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newHTTPClient))
	must(c.Provide(newCaller))
	must(c.Provide(newAuthProvider))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(school.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

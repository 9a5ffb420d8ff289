package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Backend modes
const (
	BackendPostgREST = "postgrest"
	BackendPostgres  = "postgres"
)

// Auth providers
const (
	AuthHosted = "hosted"
	AuthLocal  = "local"
)

type (
	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		WorkDir          string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		AdmissionsEmail  mail.Address
		RollbarToken     string
		SendgridApiKey   string

		Server   ServerConfig
		Backend  BackendConfig
		Database DatabaseConfig
		Auth     AuthConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	// BackendConfig locates the hosted database that serves the remote procedures.
	BackendConfig struct {
		Mode      string // postgrest | postgres
		URL       string
		PublicKey string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	AuthConfig struct {
		Provider          string // hosted | local
		URL               string
		PublicKey         string
		CookieName        string
		CookieSecure      bool
		CookieMaxAge      time.Duration
		RefreshMargin     time.Duration
		ProtectedPrefixes []string
		LoginPath         string
		RootPath          string
		AccessTokenTTL    time.Duration
		RefreshTokenTTL   time.Duration
	}
)

func (dbc DatabaseConfig) Address() string {
	return dbc.Host + ":" + dbc.Port
}

// NewConfig reads the configuration from the environment (and optional `config/.env.<env>` file).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Shule")
	v.SetDefault("secretKey", "k3w(zq1$+9h=uy^d!pl0x)2@rb#t7m&ncsa4vje%f6og-8y_i")
	v.SetDefault("frontendBaseURL", "http://localhost:8000")
	v.SetDefault("defaultFromEmail", "Shule <noreply@localhost>")
	v.SetDefault("admissionsEmail", "Admissions <admissions@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("backend.mode", BackendPostgREST)
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.publicKey", "")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "shule")
	v.SetDefault("database.user", "shule")
	v.SetDefault("database.password", "shule")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("auth.provider", AuthHosted)
	v.SetDefault("auth.url", "")
	v.SetDefault("auth.publicKey", "")
	v.SetDefault("auth.cookieName", "shule-auth")
	v.SetDefault("auth.cookieSecure", false)
	v.SetDefault("auth.cookieMaxAge", 7*24*time.Hour)
	v.SetDefault("auth.refreshMargin", time.Minute)
	v.SetDefault("auth.protectedPrefixes", []string{"/dashboard", "/profile"})
	v.SetDefault("auth.loginPath", "/login")
	v.SetDefault("auth.rootPath", "/")
	v.SetDefault("auth.accessTokenTTL", time.Hour)
	v.SetDefault("auth.refreshTokenTTL", 7*24*time.Hour)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		WorkDir:          wd,
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: mustParseAddress(v.GetString("defaultFromEmail")),
		AdmissionsEmail:  mustParseAddress(v.GetString("admissionsEmail")),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Backend: BackendConfig{
			Mode:      strings.ToLower(v.GetString("backend.mode")),
			URL:       strings.TrimRight(v.GetString("backend.url"), "/"),
			PublicKey: v.GetString("backend.publicKey"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Auth: AuthConfig{
			Provider:          strings.ToLower(v.GetString("auth.provider")),
			URL:               strings.TrimRight(v.GetString("auth.url"), "/"),
			PublicKey:         v.GetString("auth.publicKey"),
			CookieName:        v.GetString("auth.cookieName"),
			CookieSecure:      v.GetBool("auth.cookieSecure"),
			CookieMaxAge:      v.GetDuration("auth.cookieMaxAge"),
			RefreshMargin:     v.GetDuration("auth.refreshMargin"),
			ProtectedPrefixes: v.GetStringSlice("auth.protectedPrefixes"),
			LoginPath:         v.GetString("auth.loginPath"),
			RootPath:          v.GetString("auth.rootPath"),
			AccessTokenTTL:    v.GetDuration("auth.accessTokenTTL"),
			RefreshTokenTTL:   v.GetDuration("auth.refreshTokenTTL"),
		},
	}

	// the hosted auth API lives next to the data API unless told otherwise
	if conf.Auth.URL == "" {
		conf.Auth.URL = conf.Backend.URL
	}
	if conf.Auth.PublicKey == "" {
		conf.Auth.PublicKey = conf.Backend.PublicKey
	}
	return conf
}

// Validate reports startup-time misconfigurations.
func (conf *Config) Validate() error {
	checks := []vala.Checker{
		vala.StringNotEmpty(conf.SecretKey, "secretKey"),
		vala.StringNotEmpty(conf.Server.Address, "server.address"),
		vala.StringNotEmpty(conf.Auth.CookieName, "auth.cookieName"),
		vala.StringNotEmpty(conf.Auth.LoginPath, "auth.loginPath"),
		vala.GreaterThan(len(conf.Auth.ProtectedPrefixes), 0, "auth.protectedPrefixes"),
	}
	switch conf.Backend.Mode {
	case BackendPostgREST:
		checks = append(checks,
			vala.StringNotEmpty(conf.Backend.URL, "backend.url"),
			vala.StringNotEmpty(conf.Backend.PublicKey, "backend.publicKey"))
	case BackendPostgres:
		checks = append(checks,
			vala.StringNotEmpty(conf.Database.Host, "database.host"),
			vala.StringNotEmpty(conf.Database.Name, "database.name"))
	default:
		return errors.Errorf("invalid configuration: unknown backend mode %q", conf.Backend.Mode)
	}
	switch conf.Auth.Provider {
	case AuthHosted:
		checks = append(checks,
			vala.StringNotEmpty(conf.Auth.URL, "auth.url"),
			vala.StringNotEmpty(conf.Auth.PublicKey, "auth.publicKey"))
	case AuthLocal:
		if !(conf.Debug || conf.TestMode) {
			return errors.New("invalid configuration: the local auth provider is for development only")
		}
	default:
		return errors.Errorf("invalid configuration: unknown auth provider %q", conf.Auth.Provider)
	}

	if err := vala.BeginValidation().Validate(checks...).Check(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

func mustParseAddress(addr string) mail.Address {
	a, err := mail.ParseAddress(addr)
	if err != nil {
		log.Fatalf("config.mail.ParseAddress(%s): %v", addr, err)
	}
	return *a
}

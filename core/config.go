package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	AppName          string
	Build            string
	Env              string // DEV (local; default), TEST, QA, PROD
	Debug            bool
	TestMode         bool
	SecretKey        string
	FrontendBaseURL  string
	DefaultFromEmail string
	SendgridAPIKey   string
	RollbarToken     string
	StoreDriver      string
	CommonPasswords  string // path of the gzipped common passwords list

	Server struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
	}

	Database struct {
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

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Bootstrap struct {
		AdminName     string
		AdminEmail    string
		AdminPassword string
	}
}

func (c *Config) DefaultFromAddress() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
}

func (c *Config) UsesRedis() bool {
	return c.Redis.Addr != ""
}

func (c *Config) IsMemoryStore() bool {
	return c.StoreDriver == StoreDriverMemory
}

// NewConfig reads the configuration from the environment, after loading `config/.env.<env>` if it exists.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	loadDotEnv(env)

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	v.AutomaticEnv()

	conf := &Config{
		AppName:          v.GetString("app_name"),
		Build:            v.GetString("build"),
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         env == "TEST",
		SecretKey:        v.GetString("secret_key"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontend_base_url"), "/"),
		DefaultFromEmail: v.GetString("default_from_email"),
		SendgridAPIKey:   v.GetString("sendgrid_api_key"),
		RollbarToken:     v.GetString("rollbar_token"),
		StoreDriver:      strings.ToLower(v.GetString("store_driver")),
		CommonPasswords:  v.GetString("common_passwords_path"),
	}

	conf.Server.Host, _ = os.Hostname()
	conf.Server.Address = v.GetString("server.address")
	conf.Server.DebugHost = v.GetString("server.debug_address")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdown_timeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("jwt.expiration_delta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("jwt.refresh_expiration_delta")
	conf.Server.PasswordResetTimeoutDelta = v.GetDuration("password_reset_timeout_delta")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.admin_user")
	conf.Database.AdminPassword = v.GetString("database.admin_password")
	conf.Database.DisableTLS = v.GetBool("database.disable_tls")

	conf.Redis.Addr = v.GetString("redis.addr")
	conf.Redis.Password = v.GetString("redis.password")
	conf.Redis.DB = v.GetInt("redis.db")

	conf.Bootstrap.AdminName = v.GetString("bootstrap.admin_name")
	conf.Bootstrap.AdminEmail = CleanString(v.GetString("bootstrap.admin_email"), true)
	conf.Bootstrap.AdminPassword = v.GetString("bootstrap.admin_password")

	return conf
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("app_name", "Taarifa")
	v.SetDefault("build", "develop")
	v.SetDefault("secret_key", "6wr&b2n)0^q!k-d_x9o@3+t$zf7jh#e5ylc(a8vu=1gpm*is")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("store_driver", StoreDriverPostgres)
	v.SetDefault("common_passwords_path", filepath.Join("assets", "common-passwords.txt.gz"))

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debug_address", ":4000")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("jwt.expiration_delta", 7*24*time.Hour)
	v.SetDefault("jwt.refresh_expiration_delta", 4*time.Hour)
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "taarifa")
	v.SetDefault("database.user", "taarifa")
	v.SetDefault("database.password", "taarifa")
	v.SetDefault("database.admin_user", "")
	v.SetDefault("database.admin_password", "")
	v.SetDefault("database.disable_tls", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("bootstrap.admin_name", "Administrator")
	v.SetDefault("bootstrap.admin_email", "admin@school.local")
	v.SetDefault("bootstrap.admin_password", "")
}

// load .env if it exists (ignore if it does not)
func loadDotEnv(env string) {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd: %v", err)
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
}

func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, c.Database.Port)
}

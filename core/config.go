package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug        bool
	TestMode     bool
	AppName      string
	SecretKey    string
	Env          string
	Build        string
	RollbarToken string

	Server    ServerConfig
	Database  DatabaseConfig
	Timetable TimetableConfig
}

type ServerConfig struct {
	Host                      string
	DebugHost                 string
	ShutdownTimeout           time.Duration
	JWTExpirationDelta        time.Duration
	JWTRefreshExpirationDelta time.Duration
	AuthRequired              bool
	AllowedOrigins            []string
	DisableReqLogs            bool
	MaxUploadSize             int64
}

type DatabaseConfig struct {
	Engine        string
	User          string
	Password      string
	AdminUser     string
	AdminPassword string
	Host          string
	Port          string
	Name          string
	DisableTLS    bool
}

func (db DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%s", db.Host, db.Port)
}

type TimetableConfig struct {
	MaxAttempts int
	Seed        int64 // 0 means time based
}

func (c *Config) setDefaults(conf *viper.Viper) {
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Slotwise")
	conf.SetDefault("secretKey", "k3v!x9-slotwise-dev-only-2b#q7^m0t&lz$8h@y1wr(e5")
	conf.SetDefault("build", "develop")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 10*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("server.authRequired", false)
	conf.SetDefault("server.allowedOrigins", []string{"*"})
	conf.SetDefault("server.disableReqLogs", false)
	conf.SetDefault("server.maxUploadSize", int64(32<<20))

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.user", "slotwise")
	conf.SetDefault("database.password", "slotwise")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "slotwise")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("timetable.maxAttempts", 5)
	conf.SetDefault("timetable.seed", int64(0))
}

// NewConfig reads the configuration from defaults, `config/.env.<env>` and the environment.
// Environment variables are prefixed with the env name, e.g. PROD_DATABASE_HOST.
func NewConfig() *Config {
	conf := viper.New()
	c := new(Config)
	c.setDefaults(conf)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	c.Env = env
	c.TestMode = env == "TEST"
	c.Debug = conf.GetBool("debug")
	c.AppName = conf.GetString("appName")
	c.SecretKey = conf.GetString("secretKey")
	c.Build = conf.GetString("build")
	c.RollbarToken = conf.GetString("rollbarToken")

	c.Server.Host = conf.GetString("server.host")
	c.Server.DebugHost = conf.GetString("server.debugHost")
	c.Server.ShutdownTimeout = conf.GetDuration("server.shutdownTimeout")
	c.Server.JWTExpirationDelta = conf.GetDuration("server.jwtExpirationDelta")
	c.Server.JWTRefreshExpirationDelta = conf.GetDuration("server.jwtRefreshExpirationDelta")
	c.Server.AuthRequired = conf.GetBool("server.authRequired")
	c.Server.AllowedOrigins = conf.GetStringSlice("server.allowedOrigins")
	c.Server.DisableReqLogs = conf.GetBool("server.disableReqLogs")
	c.Server.MaxUploadSize = conf.GetInt64("server.maxUploadSize")

	c.Database.Engine = conf.GetString("database.engine")
	c.Database.User = conf.GetString("database.user")
	c.Database.Password = conf.GetString("database.password")
	c.Database.AdminUser = conf.GetString("database.adminUser")
	c.Database.AdminPassword = conf.GetString("database.adminPassword")
	c.Database.Host = conf.GetString("database.host")
	c.Database.Port = conf.GetString("database.port")
	c.Database.Name = conf.GetString("database.name")
	c.Database.DisableTLS = conf.GetBool("database.disableTLS")

	c.Timetable.MaxAttempts = conf.GetInt("timetable.maxAttempts")
	c.Timetable.Seed = conf.GetInt64("timetable.seed")
	return c
}

// NewTestConfig returns the default configuration in test mode without reading the environment.
func NewTestConfig() *Config {
	conf := viper.New()
	c := new(Config)
	c.setDefaults(conf)

	c.Env = "TEST"
	c.TestMode = true
	c.Debug = false
	c.AppName = conf.GetString("appName")
	c.SecretKey = conf.GetString("secretKey")
	c.Server.JWTExpirationDelta = conf.GetDuration("server.jwtExpirationDelta")
	c.Server.JWTRefreshExpirationDelta = conf.GetDuration("server.jwtRefreshExpirationDelta")
	c.Server.AllowedOrigins = conf.GetStringSlice("server.allowedOrigins")
	c.Server.DisableReqLogs = true
	c.Server.MaxUploadSize = conf.GetInt64("server.maxUploadSize")
	c.Timetable.MaxAttempts = conf.GetInt("timetable.maxAttempts")
	c.Timetable.Seed = 42
	return c
}

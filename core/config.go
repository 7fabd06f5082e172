package core

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug     bool
		TestMode  bool
		Env       string // DEV (default), TEST, QA, PROD
		AppName   string
		SecretKey string
		Build     string

		Server   ServerConfig
		Database DatabaseConfig

		RollbarToken string
	}

	ServerConfig struct {
		Host                      string
		Port                      string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine     string
		Host       string
		Port       string
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}
)

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig loads the app configuration from the environment,
// with an optional `config/.env.<env>` dotenv file for local runs.
func NewConfig() (*Config, error) {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	// defaults
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "CrediKids")
	conf.SetDefault("secretKey", "n0t-5o-s3cret-ch@nge-me-in-prod-pl3ase-4-real")
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("serverHost", "0.0.0.0")
	conf.SetDefault("serverPort", "8000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("databaseEngine", "postgres")
	conf.SetDefault("databaseHost", "localhost")
	conf.SetDefault("databasePort", "5432")
	conf.SetDefault("databaseName", "credikids")
	conf.SetDefault("databaseUser", "credikids")
	conf.SetDefault("databasePassword", "")
	conf.SetDefault("databaseDisableTLS", true)
	conf.SetDefault("rollbarToken", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
			}
		}
	}
	conf.AutomaticEnv()

	return &Config{
		Debug:     conf.GetBool("debug"),
		TestMode:  env == "TEST",
		Env:       env,
		AppName:   conf.GetString("appName"),
		SecretKey: conf.GetString("secretKey"),
		Build:     conf.GetString("build"),
		Server: ServerConfig{
			Host:                      conf.GetString("serverHost"),
			Port:                      conf.GetString("serverPort"),
			ShutdownTimeout:           conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:     conf.GetString("databaseEngine"),
			Host:       conf.GetString("databaseHost"),
			Port:       conf.GetString("databasePort"),
			Name:       conf.GetString("databaseName"),
			User:       conf.GetString("databaseUser"),
			Password:   conf.GetString("databasePassword"),
			DisableTLS: conf.GetBool("databaseDisableTLS"),
		},
		RollbarToken: conf.GetString("rollbarToken"),
	}, nil
}

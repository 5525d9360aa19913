// Package config holds the server settings collected from flags, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

const (
	DefaultAddr          = ":8080"
	DefaultRPCSocket     = "/tmp/cmdb.sock"
	DefaultDBDriver      = "sqlite"
	DefaultDatabase      = "cmdb.db"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultBootstrapUser = "admin"
	DefaultBootstrapPass = "admin"
)

type Config struct {
	Addr              string `validate:"required"`
	RPCSocket         string `validate:"required"`
	DBDriver          string `validate:"required,oneof=sqlite postgres"`
	DatabaseURL       string `validate:"required"`
	LogLevel          string `validate:"required,oneof=trace debug info warn error"`
	LogFormat         string `validate:"required,oneof=json console"`
	BootstrapUsername string `validate:"required"`
	BootstrapPassword string `validate:"required"`
}

var validate = validator.New()

// LoadDotEnv reads .env from the working directory when it exists. Values
// already present in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Flags returns the server flags with their environment fallbacks.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "addr", Value: DefaultAddr, Usage: "HTTP listen address", Sources: cli.EnvVars("CMDB_ADDR")},
		&cli.StringFlag{Name: "rpc-socket", Value: DefaultRPCSocket, Usage: "JSON-RPC unix socket path", Sources: cli.EnvVars("CMDB_RPC_SOCKET")},
		&cli.StringFlag{Name: "db-driver", Value: DefaultDBDriver, Usage: "database driver (sqlite or postgres)", Sources: cli.EnvVars("CMDB_DB_DRIVER")},
		&cli.StringFlag{Name: "database-url", Value: DefaultDatabase, Usage: "SQLite path or PostgreSQL DSN", Sources: cli.EnvVars("DATABASE_URL")},
		&cli.StringFlag{Name: "log-level", Value: DefaultLogLevel, Usage: "trace, debug, info, warn or error", Sources: cli.EnvVars("CMDB_LOG_LEVEL")},
		&cli.StringFlag{Name: "log-format", Value: DefaultLogFormat, Usage: "json or console", Sources: cli.EnvVars("CMDB_LOG_FORMAT")},
		&cli.StringFlag{Name: "bootstrap-username", Value: DefaultBootstrapUser, Usage: "initial user created when none exist", Sources: cli.EnvVars("CMDB_BOOTSTRAP_USERNAME")},
		&cli.StringFlag{Name: "bootstrap-password", Value: DefaultBootstrapPass, Usage: "password of the initial user", Sources: cli.EnvVars("CMDB_BOOTSTRAP_PASSWORD")},
	}
}

// FromCommand reads the flags declared by Flags and validates the result.
func FromCommand(c *cli.Command) (Config, error) {
	cfg := Config{
		Addr:              c.String("addr"),
		RPCSocket:         c.String("rpc-socket"),
		DBDriver:          strings.ToLower(strings.TrimSpace(c.String("db-driver"))),
		DatabaseURL:       c.String("database-url"),
		LogLevel:          strings.ToLower(strings.TrimSpace(c.String("log-level"))),
		LogFormat:         strings.ToLower(strings.TrimSpace(c.String("log-format"))),
		BootstrapUsername: c.String("bootstrap-username"),
		BootstrapPassword: c.String("bootstrap-password"),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

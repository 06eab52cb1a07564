package core

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		URL          string
		Host         string
		Port         int
		User         string
		Password     string
		Name         string
		PingAttempts int
		Timeout      time.Duration
	}

	Config struct {
		Env          string
		Build        string
		Debug        bool
		RollbarToken string
		Database     DatabaseConfig
	}
)

// NewConfig reads the configuration from the environment, optionally seeded by
// `.env` and `config/.env.<env>` files found under dir.
func NewConfig(dir string) (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", false)
	v.SetDefault("build", "dev")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "railway")
	v.SetDefault("database.pingAttempts", 30)
	v.SetDefault("database.timeout", 10*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, PROD
	if env == "" {
		env = "DEV"
	}

	// load .env files if they exist (ignore if they do not)
	for _, path := range []string{
		filepath.Join(dir, "config", ".env."+strings.ToLower(env)),
		filepath.Join(dir, ".env"),
	} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return nil, errors.Wrapf(err, "loading %s", path)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat %s", path)
		}
	}

	// the hosting platform injects MYSQL*; DB_* is the local convention
	binds := map[string][]string{
		"debug":                 {"DEBUG"},
		"build":                 {"BUILD"},
		"rollbarToken":          {"ROLLBAR_TOKEN"},
		"database.url":          {"MYSQL_PUBLIC_URL", "DATABASE_URL"},
		"database.host":         {"MYSQLHOST", "DB_HOST"},
		"database.port":         {"MYSQLPORT", "DB_PORT"},
		"database.user":         {"MYSQLUSER", "DB_USER"},
		"database.password":     {"MYSQLPASSWORD", "DB_PASSWORD"},
		"database.name":         {"MYSQLDATABASE", "DB_NAME"},
		"database.pingAttempts": {"DB_PING_ATTEMPTS"},
		"database.timeout":      {"DB_TIMEOUT"},
	}
	for key, envs := range binds {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.Wrapf(err, "binding %s", key)
		}
	}

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		RollbarToken: v.GetString("rollbarToken"),
		Database: DatabaseConfig{
			URL:          v.GetString("database.url"),
			Host:         v.GetString("database.host"),
			Port:         v.GetInt("database.port"),
			User:         v.GetString("database.user"),
			Password:     v.GetString("database.password"),
			Name:         v.GetString("database.name"),
			PingAttempts: v.GetInt("database.pingAttempts"),
			Timeout:      v.GetDuration("database.timeout"),
		},
	}, nil
}

func (conf *Config) IsTest() bool { return conf.Env == "TEST" }

// Address returns host:port.
func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
}

// resolve returns the connection parameters, giving precedence to URL.
func (dbc DatabaseConfig) resolve() (DatabaseConfig, error) {
	if dbc.URL == "" {
		return dbc, nil
	}
	u, err := url.Parse(dbc.URL)
	if err != nil {
		return dbc, errors.Wrap(err, "parsing database url")
	}
	if u.Scheme != "mysql" {
		return dbc, errors.Errorf("unsupported database url scheme %q", u.Scheme)
	}
	out := dbc
	out.Host = u.Hostname()
	if p := u.Port(); p != "" {
		if out.Port, err = strconv.Atoi(p); err != nil {
			return dbc, errors.Wrap(err, "parsing database url port")
		}
	}
	if u.User != nil {
		out.User = u.User.Username()
		out.Password, _ = u.User.Password()
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		out.Name = name
	}
	return out, nil
}

// DSN returns the go-sql-driver/mysql data source name.
func (dbc DatabaseConfig) DSN() (string, error) {
	r, err := dbc.resolve()
	if err != nil {
		return "", err
	}
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = r.Address()
	mc.User = r.User
	mc.Passwd = r.Password
	mc.DBName = r.Name
	mc.ParseTime = true
	mc.MultiStatements = false
	mc.Timeout = r.Timeout
	return mc.FormatDSN(), nil
}

// Redacted describes the target database without credentials.
func (dbc DatabaseConfig) Redacted() string {
	r, err := dbc.resolve()
	if err != nil {
		return "<invalid database url>"
	}
	return fmt.Sprintf("%s@%s/%s", r.User, r.Address(), r.Name)
}

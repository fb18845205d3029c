package pgclient

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds the parameters of a connection. It is an immutable value:
// the With* methods return modified copies, and nothing in this package
// keeps process-wide defaults. Empty fields are left to the backend's own
// defaults (libpq conventions).
//
// Example:
//
//	cfg := pgclient.ConfigFromEnv().WithDatabase("app")
//	conn, _ := pgclient.Connect(ctx, cfg, pgxv5.Dial)
type Config struct {
	// Host is the server host name or Unix socket directory.
	Host string

	// Port is the server port. 0 means the backend default (5432).
	Port int

	// Database is the database name.
	Database string

	// User is the role to connect as.
	User string

	// Password is the role's password.
	Password string

	// Options are server command-line options sent at startup,
	// e.g. "-c search_path=app".
	Options string

	// SSLMode is one of disable, allow, prefer, require, verify-ca,
	// verify-full.
	SSLMode string

	// ConnectTimeout bounds connection establishment. 0 means no limit.
	ConnectTimeout time.Duration

	// ApplicationName is reported in pg_stat_activity.
	ApplicationName string
}

var validSSLModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

// ConfigFromEnv resolves a Config from the standard PG* environment
// variables. Unset variables leave the field empty.
func ConfigFromEnv() Config {
	cfg := Config{
		Host:            os.Getenv("PGHOST"),
		Database:        os.Getenv("PGDATABASE"),
		User:            os.Getenv("PGUSER"),
		Password:        os.Getenv("PGPASSWORD"),
		Options:         os.Getenv("PGOPTIONS"),
		SSLMode:         os.Getenv("PGSSLMODE"),
		ApplicationName: os.Getenv("PGAPPNAME"),
	}
	if port, err := strconv.Atoi(os.Getenv("PGPORT")); err == nil {
		cfg.Port = port
	}
	if secs, err := strconv.Atoi(os.Getenv("PGCONNECT_TIMEOUT")); err == nil {
		cfg.ConnectTimeout = time.Duration(secs) * time.Second
	}
	return cfg
}

// WithHost returns a copy of c with Host set.
func (c Config) WithHost(host string) Config {
	c.Host = host
	return c
}

// WithPort returns a copy of c with Port set.
func (c Config) WithPort(port int) Config {
	c.Port = port
	return c
}

// WithDatabase returns a copy of c with Database set.
func (c Config) WithDatabase(database string) Config {
	c.Database = database
	return c
}

// WithUser returns a copy of c with User and Password set.
func (c Config) WithUser(user, password string) Config {
	c.User = user
	c.Password = password
	return c
}

// WithOptions returns a copy of c with Options set.
func (c Config) WithOptions(options string) Config {
	c.Options = options
	return c
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.SSLMode != "" && !validSSLModes[c.SSLMode] {
		return fmt.Errorf("%w: unknown sslmode %q", ErrInvalidConfig, c.SSLMode)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("%w: negative connect timeout", ErrInvalidConfig)
	}
	return nil
}

// ConnString renders c as a libpq keyword/value connection string, which
// both pgx and lib/pq accept. Keys are emitted in sorted order.
func (c Config) ConnString() string {
	params := map[string]string{
		"host":             c.Host,
		"dbname":           c.Database,
		"user":             c.User,
		"password":         c.Password,
		"options":          c.Options,
		"sslmode":          c.SSLMode,
		"application_name": c.ApplicationName,
	}
	if c.Port != 0 {
		params["port"] = strconv.Itoa(c.Port)
	}
	if c.ConnectTimeout > 0 {
		secs := int(c.ConnectTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		params["connect_timeout"] = strconv.Itoa(secs)
	}

	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + quoteConnValue(params[k])
	}
	return strings.Join(parts, " ")
}

// quoteConnValue single-quotes a value when libpq would otherwise split or
// misread it.
func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`+"\t\n") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

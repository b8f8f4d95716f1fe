package source

import (
	"fmt"
	"strings"
	"time"
)

// Config of the relational triple store.
type Config struct {
	Host     string `long:"host" env:"HOST" default:"localhost" description:"Database host"`
	Port     uint16 `long:"port" env:"PORT" default:"5432" description:"Database port"`
	Database string `long:"database" env:"DATABASE" default:"mortar" description:"Database name"`
	User     string `long:"user" env:"USER" default:"mortarchangeme" description:"Database user"`
	Password string `long:"password" env:"PASSWORD" default:"mortarpasswordchangeme" description:"Database password"`
	SSLMode  string `long:"sslmode" env:"SSLMODE" default:"disable" description:"Database SSL mode"`

	Table string `long:"table" env:"TABLE" default:"latest_triples" description:"Table of (source, s, p, o) triples"`

	PoolSize       int           `long:"pool-size" env:"POOL_SIZE" default:"10" description:"Maximum number of open database connections"`
	AcquireTimeout time.Duration `long:"acquire-timeout" env:"ACQUIRE_TIMEOUT" default:"30s" description:"Maximum time to wait for a pooled connection, or zero for no limit"`
	MaxLifetime    time.Duration `long:"max-lifetime" env:"MAX_LIFETIME" default:"30m" description:"Maximum lifetime of a pooled connection"`

	// ApplicationName reported to the database. Set by the process at startup.
	ApplicationName string `no-flag:"true"`
}

// ConnString returns the keyword/value connection string of the Config.
func (cfg Config) ConnString() string {
	var parts = []string{
		"host=" + quoteConnValue(cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		"dbname=" + quoteConnValue(cfg.Database),
		"user=" + quoteConnValue(cfg.User),
		"password=" + quoteConnValue(cfg.Password),
		"sslmode=" + quoteConnValue(cfg.SSLMode),
	}
	if cfg.ApplicationName != "" {
		parts = append(parts, "application_name="+quoteConnValue(cfg.ApplicationName))
	}
	return strings.Join(parts, " ")
}

// Redacted returns the Config with its password elided, for logging.
func (cfg Config) Redacted() Config {
	if cfg.Password != "" {
		cfg.Password = "redacted"
	}
	return cfg
}

func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + connValueEscaper.Replace(v) + "'"
}

var connValueEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

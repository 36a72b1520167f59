// Package dbconfig builds the Postgres DSN every quiz process connects with.
package dbconfig

import (
	"net/url"
	"os"
	"strconv"
)

// Config holds Postgres connection settings. ApplicationName shows up in
// pg_stat_activity, which tells the API, the relay and the tools apart.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	ApplicationName string
}

// NewConfigFromEnv reads DB_* environment variables (with defaults) for the
// named process. DB_APPLICATION_NAME overrides application.
func NewConfigFromEnv(application string) Config {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		port = 5432
	}

	return Config{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", "postgres"),
		Database:        getEnv("DB_NAME", "quizcoletivo"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		ApplicationName: getEnv("DB_APPLICATION_NAME", application),
	}
}

// DSN returns the Postgres connection URL with credentials escaped.
func (c Config) DSN() string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.ApplicationName != "" {
		q.Set("application_name", c.ApplicationName)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

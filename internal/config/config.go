package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	Server        struct {
		Address      string        `mapstructure:"address"`
		TLSAddress   string        `mapstructure:"tls_address"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`
	Storage struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"storage"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Advisor struct {
		URL           string        `mapstructure:"url"`
		Timeout       time.Duration `mapstructure:"timeout"`
		RatePerSecond float64       `mapstructure:"rate_per_second"`
		Burst         int           `mapstructure:"burst"`
		MaxRetries    uint64        `mapstructure:"max_retries"`
	} `mapstructure:"advisor"`
	Auth struct {
		OktaDomain      string `mapstructure:"okta_domain"`
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		RedirectURL     string `mapstructure:"redirect_url"`
		SwaggerClientID string `mapstructure:"swagger_client_id"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Logging struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"logging"`
}

// IsDev reports whether the service runs in the DEV environment.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Environment, "DEV")
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(c.DB.Host), c.DB.Port, dsnValue(c.DB.User), dsnValue(c.DB.Password),
		dsnValue(c.DB.Name), dsnValue(c.DB.SSLMode),
	)
}

// MigrationURL returns the database URL understood by golang-migrate.
func (c *Config) MigrationURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     net.JoinHostPort(c.DB.Host, strconv.Itoa(c.DB.Port)),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

// dsnValue quotes a keyword/value DSN value when it is empty or contains
// characters the parser would split on.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n'\\=") {
		return v
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "PROD")
	v.SetDefault("dev_mode_bypass", false)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.tls_address", ":8443")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("storage.driver", StoragePostgres)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "alchemist")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "alchemist")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("advisor.url", "")
	v.SetDefault("advisor.timeout", 10*time.Second)
	v.SetDefault("advisor.rate_per_second", 2.0)
	v.SetDefault("advisor.burst", 1)
	v.SetDefault("advisor.max_retries", 3)
	v.SetDefault("auth.okta_domain", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.redirect_url", "")
	v.SetDefault("auth.swagger_client_id", "")
	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.hostnames", []string{})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// LoadConfig loads the configuration from a file and the environment.
// When path is empty, config.yaml is looked up in . and ./config and may be
// absent. Environment variables use the ALCHEMIST_ prefix, e.g.
// ALCHEMIST_DB_HOST.
func LoadConfig(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("ALCHEMIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)
	config.Storage.Driver = strings.ToLower(strings.TrimSpace(config.Storage.Driver))

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Advisor.RatePerSecond < 0 {
		return fmt.Errorf("advisor.rate_per_second must not be negative")
	}
	return nil
}

// normalizeOktaIssuer removes surrounding space and any trailing slash so
// the issuer can be pasted straight from the Okta admin console.
func normalizeOktaIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}

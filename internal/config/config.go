package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v2"

	"voyanceBack/internal/billing"
	"voyanceBack/internal/storage"
)

const (
	DefaultPath = "config/config.yaml"

	defaultAddress            = ":4001"
	defaultAccessTTLMinutes   = 60
	defaultRefreshTTLHours    = 24 * 30
	defaultCurrency           = "eur"
	defaultPackValidityDays   = 30
	defaultPresenceTTLSeconds = 90
	defaultExpirySweepMinutes = 10
	defaultRollupSpec         = "*/15 * * * *"
	defaultRegistrationWindow = 24
	defaultRegistrationLimit  = 1
	defaultMaxIdleConns       = 10
	defaultMaxOpenConns       = 25
)

type Config struct {
	Server struct {
		Address        string   `yaml:"address"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		CookieSecure   bool     `yaml:"cookie_secure"`
	} `yaml:"server"`
	Database struct {
		Driver       string `yaml:"driver"`
		URL          string `yaml:"url"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
		MaxOpenConns int    `yaml:"max_open_conns"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Session struct {
		Secret           string `yaml:"secret"`
		AccessTTLMinutes int    `yaml:"access_ttl_minutes"`
		RefreshTTLHours  int    `yaml:"refresh_ttl_hours"`
	} `yaml:"session"`
	Billing struct {
		Currency         string         `yaml:"currency"`
		PackValidityDays int            `yaml:"pack_validity_days"`
		Packs            []billing.Pack `yaml:"packs"`
	} `yaml:"billing"`
	Stripe struct {
		SecretKey     string `yaml:"secret_key"`
		WebhookSecret string `yaml:"webhook_secret"`
	} `yaml:"stripe"`
	Firebase struct {
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"firebase"`
	S3       storage.S3Config `yaml:"s3"`
	Presence struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"presence"`
	Jobs struct {
		ExpirySweepMinutes int    `yaml:"expiry_sweep_minutes"`
		RollupSpec         string `yaml:"rollup_spec"`
	} `yaml:"jobs"`
	Registration struct {
		LimitPerIP  int `yaml:"limit_per_ip"`
		WindowHours int `yaml:"window_hours"`
	} `yaml:"registration"`
}

// Default returns a configuration with every optional value filled in.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if c.Session.AccessTTLMinutes <= 0 {
		c.Session.AccessTTLMinutes = defaultAccessTTLMinutes
	}
	if c.Session.RefreshTTLHours <= 0 {
		c.Session.RefreshTTLHours = defaultRefreshTTLHours
	}
	if c.Billing.Currency == "" {
		c.Billing.Currency = defaultCurrency
	}
	if c.Billing.PackValidityDays <= 0 {
		c.Billing.PackValidityDays = defaultPackValidityDays
	}
	if len(c.Billing.Packs) == 0 {
		c.Billing.Packs = billing.DefaultPacks()
	}
	if c.Presence.TTLSeconds <= 0 {
		c.Presence.TTLSeconds = defaultPresenceTTLSeconds
	}
	if c.Jobs.ExpirySweepMinutes <= 0 {
		c.Jobs.ExpirySweepMinutes = defaultExpirySweepMinutes
	}
	if c.Jobs.RollupSpec == "" {
		c.Jobs.RollupSpec = defaultRollupSpec
	}
	if c.Registration.LimitPerIP <= 0 {
		c.Registration.LimitPerIP = defaultRegistrationLimit
	}
	if c.Registration.WindowHours <= 0 {
		c.Registration.WindowHours = defaultRegistrationWindow
	}
}

// Load reads the YAML file at path, applies environment overrides and defaults,
// and validates the result. A missing file at the default path is not an error.
func Load(path string) (Config, error) {
	var cfg Config
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Session.Secret, "SESSION_SECRET")
	setString(&c.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setString(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setString(&c.Firebase.CredentialsFile, "FIREBASE_CREDENTIALS")
	setString(&c.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&c.S3.SecretKey, "S3_SECRET_KEY")
	setString(&c.S3.Bucket, "S3_BUCKET")
	setString(&c.S3.Region, "S3_REGION")
	setString(&c.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.S3.PublicURL, "S3_PUBLIC_URL")

	if port := os.Getenv("PORT"); port != "" {
		c.Server.Address = ":" + strings.TrimPrefix(port, ":")
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse COOKIE_SECURE: %w", err)
		}
		c.Server.CookieSecure = b
	}

	if v, err := readIntEnv("PRESENCE_TTL_SECONDS"); err != nil {
		return fmt.Errorf("parse PRESENCE_TTL_SECONDS: %w", err)
	} else if v != nil {
		c.Presence.TTLSeconds = *v
	}
	if v, err := readIntEnv("PACK_VALIDITY_DAYS"); err != nil {
		return fmt.Errorf("parse PACK_VALIDITY_DAYS: %w", err)
	} else if v != nil {
		c.Billing.PackValidityDays = *v
	}
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(c.Session.Secret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 characters")
	}
	if (c.Stripe.SecretKey == "") != (c.Stripe.WebhookSecret == "") {
		return fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET must be set together")
	}
	if _, err := billing.NewCatalogue(c.Billing.Currency, c.Billing.Packs); err != nil {
		return err
	}
	return nil
}

// DSN returns the go-sql-driver DSN for Database.URL, accepting either a DSN or
// a mysql:// URL. Timestamps are always parsed into time.Time and affected-row
// counts report matched rows, so an update that changes nothing is not a miss.
func (c Config) DSN() (string, error) {
	raw := strings.TrimSpace(c.Database.URL)
	var mc *mysql.Config
	if strings.HasPrefix(raw, "mysql://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse database url: %w", err)
		}
		mc = mysql.NewConfig()
		mc.User = u.User.Username()
		mc.Passwd, _ = u.User.Password()
		mc.Net = "tcp"
		host := u.Host
		if u.Port() == "" {
			host = net.JoinHostPort(u.Hostname(), "3306")
		}
		mc.Addr = host
		mc.DBName = strings.TrimPrefix(u.Path, "/")
		if mc.Params == nil {
			mc.Params = map[string]string{}
		}
		for k, v := range u.Query() {
			if len(v) > 0 {
				mc.Params[k] = v[0]
			}
		}
	} else {
		parsed, err := mysql.ParseDSN(raw)
		if err != nil {
			return "", fmt.Errorf("parse database dsn: %w", err)
		}
		mc = parsed
	}
	mc.ParseTime = true
	mc.ClientFoundRows = true
	mc.Loc = time.UTC
	return mc.FormatDSN(), nil
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.Session.AccessTTLMinutes) * time.Minute
}
func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.Session.RefreshTTLHours) * time.Hour
}
func (c Config) PresenceTTL() time.Duration {
	return time.Duration(c.Presence.TTLSeconds) * time.Second
}
func (c Config) PackValidity() time.Duration {
	return time.Duration(c.Billing.PackValidityDays) * 24 * time.Hour
}
func (c Config) ExpirySweepInterval() time.Duration {
	return time.Duration(c.Jobs.ExpirySweepMinutes) * time.Minute
}
func (c Config) RegistrationWindow() time.Duration {
	return time.Duration(c.Registration.WindowHours) * time.Hour
}

func setString(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

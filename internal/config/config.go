// Package config defines the watcher configuration. Values are read from
// a yaml config file and can be overridden with environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/easyslot/easyslot/internal/dates"
	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultBaseURL points at the appointment portal. Overridable for tests.
const DefaultBaseURL = "https://ais.usvisa-info.com/en-ca/niv"

type Credentials struct {
	Email    string `yaml:"email" env:"EASYSLOT_EMAIL"`
	Password string `yaml:"password" env:"EASYSLOT_PASSWORD"`
}

type Browser struct {
	Type       string `yaml:"type" env:"EASYSLOT_BROWSER" env-default:"chrome"`
	Headless   bool   `yaml:"headless" env:"EASYSLOT_HEADLESS" env-default:"true"`
	BinaryPath string `yaml:"binary_path" env:"EASYSLOT_BROWSER_BINARY"`
	UserAgent  string `yaml:"user_agent"`
}

type DateRange struct {
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
}

type Appointment struct {
	IVRNumber       string    `yaml:"ivr_number"`
	PreferredCities []string  `yaml:"preferred_cities"`
	DateRange       DateRange `yaml:"date_range"`
	AutoBook        bool      `yaml:"auto_book"`
}

type Monitoring struct {
	CheckInterval    time.Duration `yaml:"check_interval" env:"EASYSLOT_CHECK_INTERVAL" env-default:"3m"`
	RetryInterval    time.Duration `yaml:"retry_interval" env:"EASYSLOT_RETRY_INTERVAL" env-default:"5m"`
	MaxLoginAttempts int           `yaml:"max_login_attempts" env-default:"3"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"EASYSLOT_SMTP_HOST"`
	Port     int    `yaml:"port" env:"EASYSLOT_SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"EASYSLOT_SMTP_USERNAME"`
	Password string `yaml:"password" env:"EASYSLOT_SMTP_PASSWORD"`
}

type Notification struct {
	Enabled    bool     `yaml:"enabled" env-default:"true"`
	Recipients []string `yaml:"recipients"`
}

// Redis configures the optional slot de-duplication cache. If Addr is
// empty an in-memory cache is used instead.
type Redis struct {
	Addr     string        `yaml:"addr" env:"EASYSLOT_REDIS_ADDR"`
	Password string        `yaml:"password" env:"EASYSLOT_REDIS_PASSWORD"`
	TTL      time.Duration `yaml:"ttl" env-default:"24h"`
}

type Server struct {
	Addr string `yaml:"addr" env:"EASYSLOT_SERVER_ADDR" env-default:":8080"`
}

// Debug configures the capture of debugging artifacts (screenshots, page
// html) on failures. Artifacts are also captured when the -d flag is set.
type Debug struct {
	Enabled bool   `yaml:"enabled" env:"EASYSLOT_DEBUG"`
	Dir     string `yaml:"dir" env-default:"logs"`
}

// Account describes one monitored portal account for multi-account mode.
// Browser and Notification, when set, override the global sections for
// this account.
type Account struct {
	Name         string        `yaml:"name"`
	Credentials  Credentials   `yaml:"credentials"`
	Appointment  Appointment   `yaml:"appointment"`
	Browser      *Browser      `yaml:"browser"`
	Notification *Notification `yaml:"notification"`
}

type Config struct {
	BaseURL      string             `yaml:"base_url" env-default:"https://ais.usvisa-info.com/en-ca/niv"`
	Credentials  Credentials        `yaml:"credentials"`
	Browser      Browser            `yaml:"browser"`
	Appointment  Appointment        `yaml:"appointment"`
	Monitoring   Monitoring         `yaml:"monitoring"`
	SMTP         SMTP               `yaml:"smtp"`
	Notification Notification       `yaml:"notification"`
	Redis        Redis              `yaml:"redis"`
	Server       Server             `yaml:"server"`
	StateDir     string             `yaml:"state_dir" env-default:"state"`
	Debug        Debug              `yaml:"debug"`
	Users        map[string]Account `yaml:"users"`
}

// New reads the configuration from the given yaml file, applying
// environment variable overrides.
func New(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("configuration file not found: %s", path)
	}
	var c Config
	if err := cleanenv.ReadConfig(path, &c); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return &c, nil
}

func (a Appointment) validate(prefix string) []error {
	var errs []error
	if a.IVRNumber == "" {
		errs = append(errs, fmt.Errorf("missing required configuration field: %sivr_number", prefix))
	}
	if len(a.PreferredCities) == 0 {
		errs = append(errs, fmt.Errorf("no preferred cities specified in %sappointment section", prefix))
	}
	if a.DateRange.StartDate == "" {
		errs = append(errs, fmt.Errorf("missing required configuration field: %sdate_range.start_date", prefix))
	}
	if a.DateRange.EndDate == "" {
		errs = append(errs, fmt.Errorf("missing required configuration field: %sdate_range.end_date", prefix))
	}
	if a.DateRange.StartDate != "" && a.DateRange.EndDate != "" {
		start, err := dates.Parse(a.DateRange.StartDate)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sdate_range.start_date: %w", prefix, err))
		}
		end, err2 := dates.Parse(a.DateRange.EndDate)
		if err2 != nil {
			errs = append(errs, fmt.Errorf("%sdate_range.end_date: %w", prefix, err2))
		}
		if err == nil && err2 == nil && end.Before(start) {
			errs = append(errs, fmt.Errorf("%sdate_range: end_date lies before start_date", prefix))
		}
	}
	return errs
}

func validateBrowserType(field, typ string) []error {
	switch typ {
	case "chrome", "chromium", "edge":
		return nil
	}
	return []error{fmt.Errorf("%s: unsupported browser type: %s", field, typ)}
}

func (c Credentials) validate(prefix string) []error {
	var errs []error
	if c.Email == "" {
		errs = append(errs, fmt.Errorf("missing required configuration field: %semail", prefix))
	}
	if c.Password == "" {
		errs = append(errs, fmt.Errorf("missing required configuration field: %spassword", prefix))
	}
	return errs
}

// Validate checks that all required fields are present and consistent.
// All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.Credentials.validate("credentials.")...)
	errs = append(errs, c.Appointment.validate("appointment.")...)

	errs = append(errs, validateBrowserType("browser.type", c.Browser.Type)...)

	if c.Monitoring.CheckInterval <= 0 {
		errs = append(errs, errors.New("monitoring.check_interval must be positive"))
	}
	if c.Monitoring.RetryInterval <= 0 {
		errs = append(errs, errors.New("monitoring.retry_interval must be positive"))
	}
	if c.Monitoring.MaxLoginAttempts < 1 {
		errs = append(errs, errors.New("monitoring.max_login_attempts must be at least 1"))
	}

	needSMTP := c.Notification.Enabled && len(c.Notification.Recipients) > 0
	for _, u := range c.Users {
		if u.Notification != nil && u.Notification.Enabled && len(u.Notification.Recipients) > 0 {
			needSMTP = true
		}
	}
	if needSMTP {
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("missing required configuration field: smtp.host"))
		}
		if c.SMTP.Username == "" {
			errs = append(errs, errors.New("missing required configuration field: smtp.username"))
		}
		if c.SMTP.Password == "" {
			errs = append(errs, errors.New("missing required configuration field: smtp.password"))
		}
	}

	for key, u := range c.Users {
		errs = append(errs, u.Credentials.validate(fmt.Sprintf("users.%s.credentials.", key))...)
		errs = append(errs, u.Appointment.validate(fmt.Sprintf("users.%s.appointment.", key))...)
		if u.Browser != nil {
			errs = append(errs, validateBrowserType(fmt.Sprintf("users.%s.browser.type", key), u.Browser.Type)...)
		}
	}

	return errors.Join(errs...)
}

// Accounts returns the list of accounts to watch. With no users
// configured the top-level credentials and appointment form a single
// account.
func (c *Config) Accounts() []Account {
	if len(c.Users) == 0 {
		return []Account{{
			Name:        c.Credentials.Email,
			Credentials: c.Credentials,
			Appointment: c.Appointment,
		}}
	}
	accounts := make([]Account, 0, len(c.Users))
	for key, u := range c.Users {
		if u.Name == "" {
			u.Name = key
		}
		accounts = append(accounts, u)
	}
	return accounts
}

// BrowserFor returns the browser settings of an account, falling back to
// the global section when the account carries no override.
func (c *Config) BrowserFor(a Account) Browser {
	if a.Browser != nil {
		return *a.Browser
	}
	return c.Browser
}

// NotificationFor returns the notification settings of an account,
// falling back to the global section when the account carries no
// override.
func (c *Config) NotificationFor(a Account) Notification {
	if a.Notification != nil {
		return *a.Notification
	}
	return c.Notification
}

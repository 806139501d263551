package config

import (
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Storage names accepted in the storages list.
const (
	StorageCSV      = "csv"
	StorageTerminal = "terminal"
	StorageMySQL    = "mysql"
	StorageES       = "elastic_search"
	StorageSQLite   = "sqlite"
)

// Environment variables holding the broker account secrets.
const (
	EnvEmail    = "EMAIL"
	EnvPassword = "PASSWORD"
	EnvPIN      = "PINCODE"
)

// Load reads the JSON config file at path, fills unset values with defaults and validates the result.
func Load(path string) (*Config, error) {
	cfgFile, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "not able to open config file %v", path)
	}
	defer cfgFile.Close()

	var cfg Config
	if err = jsoniter.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "not able to parse JSON from config file %v", path)
	}
	ApplyDefaults(&cfg)
	if err = Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every value set to its default.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// ApplyDefaults sets every zero value which has a sensible default.
func ApplyDefaults(cfg *Config) {
	if len(cfg.Watchlist) == 0 {
		cfg.Watchlist = []string{"BBCA"}
	}
	hasCSV := false
	for _, str := range cfg.Storages {
		if str == StorageCSV {
			hasCSV = true
		}
	}
	if !hasCSV {
		cfg.Storages = append([]string{StorageCSV}, cfg.Storages...)
	}

	b := &cfg.Broker
	setString(&b.LoginURL, LoginURL)
	setString(&b.InstrumentBaseURL, InstrumentBaseURL)
	b.InstrumentBaseURL = strings.TrimSuffix(b.InstrumentBaseURL, "/")
	setString(&b.HomeURLSuffix, "/home")
	setString(&b.HomeMarker, "home")
	setString(&b.InstrumentMarker, "saham")
	setString(&b.PINMarker, "/pin")
	setString(&b.DismissButtonText, "Mengerti")

	s := &b.Selectors
	setString(&s.Email, "input[name=email]")
	setString(&s.Password, "input[name=password]")
	setString(&s.Submit, "button[type=submit]")
	setString(&s.PINContainer, ".pincode-input-container")
	setString(&s.PINInput, ".pincode-input-text")
	setString(&s.BidLots, "div.css-jw5rjj:nth-child(1) .item-lot")
	setString(&s.BidPrices, "div.css-jw5rjj:nth-child(1) .item-price")
	setString(&s.AskPrices, "div.css-jw5rjj:nth-child(2) .item-price")
	setString(&s.AskLots, "div.css-jw5rjj:nth-child(2) .item-lot")

	t := &b.Timing
	setInt(&t.PINPromptTimeoutSec, 15)
	setInt(&t.PINKeyDelayMs, 150)
	setInt(&t.PINSettleSec, 5)
	setInt(&t.PINValidationTimeoutSec, 30)
	setInt(&t.NavigationTimeoutSec, 20)
	setInt(&t.DismissWaitSec, 3)
	setInt(&t.ActionTimeoutSec, 30)

	setInt(&cfg.Poll.IntervalSec, 300)

	setString(&cfg.Connection.CSV.FilePath, "scrap_result.csv")
	setString(&cfg.Connection.SQLite.FilePath, "data/ladderlog.db")
	setString(&cfg.Connection.ES.IndexName, "ladderlog")

	setString(&cfg.Log.Level, "info")
	setString(&cfg.Log.FilePath, "ladderlog.log")
}

// Validate checks user defined config values which can not be defaulted.
func Validate(cfg *Config) error {
	if len(cfg.Watchlist) == 0 {
		return errors.New("watchlist should have at least one instrument code")
	}
	for _, code := range cfg.Watchlist {
		if strings.TrimSpace(code) == "" {
			return errors.New("watchlist has an empty instrument code")
		}
	}
	for _, str := range cfg.Storages {
		switch str {
		case StorageCSV, StorageTerminal, StorageMySQL, StorageES, StorageSQLite:
		default:
			return errors.Errorf("unknown storage %q", str)
		}
	}
	if cfg.Poll.IntervalSec < 1 {
		return errors.New("interval_sec should be greater than zero")
	}
	if cfg.Poll.MaxTicks < 0 {
		return errors.New("max_ticks should not be negative")
	}
	return nil
}

// LoadCredentials reads the broker account secrets through getenv.
// Missing values are not an error here, login with them will fail later.
func LoadCredentials(getenv func(string) string) *Credentials {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Credentials{
		Email:    getenv(EnvEmail),
		Password: getenv(EnvPassword),
		PIN:      getenv(EnvPIN),
	}
}

// Missing returns names of the environment variables which were empty.
func (c *Credentials) Missing() []string {
	var missing []string
	if c.Email == "" {
		missing = append(missing, EnvEmail)
	}
	if c.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if c.PIN == "" {
		missing = append(missing, EnvPIN)
	}
	return missing
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

// Package config loads settings from the environment, an optional json5 file
// and built-in defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env"
	"github.com/titanous/json5"

	"github.com/adiazny/bin-calendar/internal/pkg/calendar"
	"github.com/adiazny/bin-calendar/internal/pkg/fetcher"
	"github.com/adiazny/bin-calendar/internal/pkg/gateshead"
	"github.com/adiazny/bin-calendar/internal/pkg/gcal"
)

const DefaultFile = "bins.json5"

type Config struct {
	Postcode    string `env:"MY_POSTCODE" json:"postcode"`
	HouseNumber string `env:"MY_HOUSE_NUMBER" json:"house_number"`
	Source      string `env:"FETCHER_SOURCE" json:"source"`
	CacheDir    string `env:"BINS_CACHE_DIR" json:"cache_dir"`
	ICSFile     string `env:"BINS_ICS_FILE" json:"ics_file"`

	BaseURL               string `env:"BINS_BASE_URL" json:"base_url"`
	RequestTimeoutSeconds int    `env:"BINS_REQUEST_TIMEOUT_SECONDS" json:"request_timeout_seconds"`
	MaxRequestsPerSecond  int    `env:"BINS_MAX_REQUESTS_PER_SECOND" json:"max_requests_per_second"`
	BrowserTransport      bool   `env:"BINS_BROWSER_TRANSPORT" json:"browser_transport"`

	LogLevel  string `env:"LOG_LEVEL" json:"log_level"`
	LogFormat string `env:"LOG_FORMAT" json:"log_format"`

	GoogleCalendarID      string `env:"BINS_GOOGLE_CALENDAR_ID" json:"google_calendar_id"`
	GoogleCredentialsJSON string `env:"BINS_GOOGLE_CREDENTIALS_JSON" json:"google_credentials_json"`
	GoogleCredentialsFile string `env:"BINS_GOOGLE_CREDENTIALS" json:"google_credentials_file"`
	Timezone              string `env:"BINS_TIMEZONE" json:"timezone"`

	TopicARN string `env:"TOPIC_ARN" json:"topic_arn"`
}

func Default() Config {
	return Config{
		Source:                fetcher.SourceGateshead,
		CacheDir:              fetcher.DefaultCacheDir,
		ICSFile:               calendar.DefaultFileName,
		BaseURL:               gateshead.DefaultBaseURL,
		RequestTimeoutSeconds: 30,
		MaxRequestsPerSecond:  2,
		LogLevel:              "info",
		LogFormat:             "text",
		Timezone:              gcal.DefaultTimezone,
	}
}

// Load builds the configuration. path names the json5 file; a sibling
// "<name>.local.<ext>" file overrides it. Missing files are not an error and
// an empty path skips files entirely. Booleans can only be switched on by a
// later layer, never off.
func Load(path string) (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing environment variables %w", err)
	}

	if path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := mergo.Merge(&cfg, file); err != nil {
			return Config{}, fmt.Errorf("error merging config file %w", err)
		}
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return Config{}, fmt.Errorf("error merging config defaults %w", err)
	}

	return cfg, nil
}

func readFile(path string) (Config, error) {
	var out Config

	base, err := decodeFile(path)
	if err != nil {
		return out, err
	}
	if base != nil {
		out = *base
	}

	local, err := decodeFile(localPath(path))
	if err != nil {
		return out, err
	}
	if local != nil {
		if err := mergo.Merge(&out, *local, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("error merging local config %w", err)
		}
	}

	return out, nil
}

func decodeFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s %w", path, err)
	}

	var cfg Config
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file %s %w", path, err)
	}
	return &cfg, nil
}

// localPath maps "dir/bins.json5" to "dir/bins.local.json5".
func localPath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+".local"+ext)
}

func (c Config) Gateshead() gateshead.Config {
	return gateshead.Config{
		BaseURL:              c.BaseURL,
		Timeout:              time.Duration(c.RequestTimeoutSeconds) * time.Second,
		MaxRequestsPerSecond: c.MaxRequestsPerSecond,
		BrowserTransport:     c.BrowserTransport,
	}
}

func (c Config) Google() gcal.Config {
	return gcal.Config{
		CalendarID:      c.GoogleCalendarID,
		CredentialsJSON: c.GoogleCredentialsJSON,
		CredentialsFile: c.GoogleCredentialsFile,
		Timezone:        c.Timezone,
	}
}

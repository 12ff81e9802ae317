package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"BreakoutScanner/internal/model"
)

// Config holds all application configuration.
type Config struct {
	App struct {
		LogLevel  string `yaml:"log_level" default:"info" validate:"oneof=trace debug info warn error fatal"`
		LogFormat string `yaml:"log_format" default:"console" validate:"oneof=console json"`
	} `yaml:"app"`
	Scanner struct {
		Tickers         string `yaml:"tickers" default:"AAPL,TSLA,NVDA,AMZN,MSFT"`
		PeriodDays      int    `yaml:"period_days" default:"90" validate:"min=1,max=3650"`
		Interval        string `yaml:"interval" default:"1d" validate:"oneof=1d 1wk"`
		EMASpan         int    `yaml:"ema_span" default:"40" validate:"min=1"`
		EMAAdjust       bool   `yaml:"ema_adjust" default:"true"`
		Workers         int    `yaml:"workers" default:"4" validate:"min=1,max=64"`
		PreviewMessages int    `yaml:"preview_messages" default:"5" validate:"min=0"`
		PreviewChars    int    `yaml:"preview_chars" default:"80" validate:"min=1"`
	} `yaml:"scanner"`
	DataSource struct {
		Provider  string        `yaml:"provider" default:"yahoo" validate:"oneof=yahoo alpaca rest mock"`
		BaseURL   string        `yaml:"base_url"`
		APIKey    string        `yaml:"api_key"`
		APISecret string        `yaml:"api_secret"`
		Timeout   time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"data_source"`
	Sentiment struct {
		BaseURL string        `yaml:"base_url" default:"https://api.stocktwits.com/api/2" validate:"url"`
		Timeout time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"sentiment"`
	Cache struct {
		Backend         string        `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		TTL             time.Duration `yaml:"ttl" default:"15m" validate:"min=0"`
		RefreshEachPass bool          `yaml:"refresh_each_pass"`
		RefreshCron     string        `yaml:"refresh_cron" default:"0 5 16 * * 1-5"`
		WarmOnRefresh   bool          `yaml:"warm_on_refresh"`
		Redis           struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db" validate:"min=0"`
			Prefix   string `yaml:"prefix" default:"scanner"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Server struct {
		Addr string `yaml:"addr" default:":8080"`
	} `yaml:"server"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Struct defaults are set first so the file only needs to name what it changes.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	overrides := []struct {
		env string
		dst *string
	}{
		{"SCANNER_LOG_LEVEL", &c.App.LogLevel},
		{"SCANNER_LOG_FORMAT", &c.App.LogFormat},
		{"SCANNER_TICKERS", &c.Scanner.Tickers},
		{"DATA_PROVIDER", &c.DataSource.Provider},
		{"BARS_BASE_URL", &c.DataSource.BaseURL},
		{"BARS_API_KEY", &c.DataSource.APIKey},
		{"APCA_API_KEY_ID", &c.DataSource.APIKey},
		{"APCA_API_SECRET_KEY", &c.DataSource.APISecret},
		{"STOCKTWITS_BASE_URL", &c.Sentiment.BaseURL},
		{"CACHE_BACKEND", &c.Cache.Backend},
		{"CRON_REFRESH", &c.Cache.RefreshCron},
		{"REDIS_ADDR", &c.Cache.Redis.Addr},
		{"REDIS_PASSWORD", &c.Cache.Redis.Password},
		{"SERVER_ADDR", &c.Server.Addr},
		{"HTTPS_PROXY", &c.Proxy},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}

	if v := os.Getenv("SCANNER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCANNER_WORKERS: %w", err)
		}
		c.Scanner.Workers = n
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		c.Cache.TTL = d
	}
	if v := os.Getenv("CACHE_REFRESH_EACH_PASS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CACHE_REFRESH_EACH_PASS: %w", err)
		}
		c.Cache.RefreshEachPass = b
	}
	return nil
}

var validate = validator.New()

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.DataSource.Provider {
	case "alpaca":
		if c.DataSource.APIKey == "" || c.DataSource.APISecret == "" {
			return fmt.Errorf("data_source.api_key and data_source.api_secret are required for alpaca")
		}
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis backend")
	}
	if c.Cache.RefreshCron != "" {
		if _, err := cronParser.Parse(c.Cache.RefreshCron); err != nil {
			return fmt.Errorf("cache.refresh_cron: %w", err)
		}
	}
	return nil
}

// SignalParams returns the window parameters for the Signal Engine.
func (c *Config) SignalParams() model.SignalParams {
	return model.SignalParams{
		PeriodDays: c.Scanner.PeriodDays,
		Interval:   c.Scanner.Interval,
		Span:       c.Scanner.EMASpan,
		Adjust:     c.Scanner.EMAAdjust,
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		CORS            struct {
			Origins []string      `yaml:"origins"`
			Methods []string      `yaml:"methods"`
			Headers []string      `yaml:"headers"`
			MaxAge  time.Duration `yaml:"max_age"`
		} `yaml:"cors"`
	} `yaml:"server"`
	Logging struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		Output    string `yaml:"output"`
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic"`
			Interval       time.Duration `yaml:"interval"`
			CountThreshold int           `yaml:"count_threshold"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Analysis struct {
		RollingWindow         int     `yaml:"rolling_window"`
		MinDataPoints         int     `yaml:"min_data_points"`
		Interpolation         string  `yaml:"interpolation"`
		ZScoreThreshold       float64 `yaml:"z_score_threshold"`
		Contamination         float64 `yaml:"contamination"`
		Trees                 int     `yaml:"trees"`
		Seed                  int64   `yaml:"seed"`
		ForecastHorizon       int     `yaml:"forecast_horizon"`
		IntervalWidth         float64 `yaml:"interval_width"`
		SeasonalityMode       string  `yaml:"seasonality_mode"`
		ChangepointPriorScale float64 `yaml:"changepoint_prior_scale"`
		SeasonalityPriorScale float64 `yaml:"seasonality_prior_scale"`
		RiskMedium            float64 `yaml:"risk_medium"`
		RiskHigh              float64 `yaml:"risk_high"`
	} `yaml:"analysis"`
	Data struct {
		Dir               string        `yaml:"dir"`
		OWIDURL           string        `yaml:"owid_url"`
		FetchTimeout      time.Duration `yaml:"fetch_timeout"`
		Diseases          []string      `yaml:"diseases"`
		FallbackCountries []string      `yaml:"fallback_countries"`
		Columns           struct {
			Date    string `yaml:"date"`
			Cases   string `yaml:"cases"`
			Country string `yaml:"country"`
			Disease string `yaml:"disease"`
		} `yaml:"columns"`
		Breaker struct {
			MaxFailures uint32        `yaml:"max_failures"`
			OpenTimeout time.Duration `yaml:"open_timeout"`
		} `yaml:"breaker"`
	} `yaml:"data"`
	Cache struct {
		Enabled   bool          `yaml:"enabled"`
		Type      string        `yaml:"type"`
		SeriesTTL time.Duration `yaml:"series_ttl"`
		ListTTL   time.Duration `yaml:"list_ttl"`
	} `yaml:"cache"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequestTopic string   `yaml:"request_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		Table            string        `yaml:"table"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	RateLimit struct {
		Enabled           bool          `yaml:"enabled"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Burst             int           `yaml:"burst"`
		IdleTTL           time.Duration `yaml:"idle_ttl"`
	} `yaml:"ratelimit"`
}

// Default returns a configuration that runs without any external service.
func Default() *Config {
	var c Config
	c.Environment = "development"

	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8000
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 60 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.RequestTimeout = 45 * time.Second
	c.Server.CORS.Origins = []string{"*"}
	c.Server.CORS.Methods = []string{"GET", "POST", "OPTIONS"}
	c.Server.CORS.Headers = []string{"Origin", "Content-Type", "Accept"}
	c.Server.CORS.MaxAge = 10 * time.Minute

	c.Logging.Level = "info"
	c.Logging.Format = "json"
	c.Logging.Output = "stdout"
	c.Logging.Collector.Topic = "epipulse.logs"
	c.Logging.Collector.Interval = 30 * time.Second
	c.Logging.Collector.CountThreshold = 100

	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"

	a := &c.Analysis
	a.RollingWindow = 7
	a.MinDataPoints = 30
	a.Interpolation = "linear"
	a.ZScoreThreshold = 2.5
	a.Contamination = 0.1
	a.Trees = 100
	a.Seed = 42
	a.ForecastHorizon = 14
	a.IntervalWidth = 0.95
	a.SeasonalityMode = "multiplicative"
	a.ChangepointPriorScale = 0.05
	a.SeasonalityPriorScale = 10.0
	a.RiskMedium = 0.1
	a.RiskHigh = 0.2

	c.Data.Dir = "data/raw"
	c.Data.OWIDURL = "https://raw.githubusercontent.com/owid/covid-19-data/master/public/data/owid-covid-data.csv"
	c.Data.FetchTimeout = 30 * time.Second
	c.Data.Diseases = []string{"COVID-19", "Influenza", "Measles", "Dengue", "Malaria", "Tuberculosis"}
	c.Data.FallbackCountries = []string{"India", "United States", "United Kingdom", "Brazil", "Germany"}
	c.Data.Columns.Date = "date"
	c.Data.Columns.Cases = "new_cases"
	c.Data.Columns.Country = "location"
	c.Data.Columns.Disease = "disease"
	c.Data.Breaker.MaxFailures = 3
	c.Data.Breaker.OpenTimeout = 60 * time.Second

	c.Cache.Type = "memory"
	c.Cache.SeriesTTL = 30 * time.Minute
	c.Cache.ListTTL = 6 * time.Hour

	c.Redis.Addr = "localhost:6379"

	c.Kafka.Brokers = []string{"localhost:9092"}
	c.Kafka.Topic = "analysis.completed"
	c.Kafka.RequestTopic = "analysis.requests"
	c.Kafka.RequiredAcks = 1
	c.Kafka.Compression = "snappy"
	c.Kafka.Producer.MaxAttempts = 3
	c.Kafka.Producer.Linger = 10 * time.Millisecond
	c.Kafka.Producer.BatchSize = 100
	c.Kafka.Producer.BatchBytes = 1 << 20
	c.Kafka.Producer.WriteTimeout = 10 * time.Second
	c.Kafka.Producer.ReadTimeout = 10 * time.Second
	c.Kafka.Consumer.GroupID = "epipulse-analyzer"
	c.Kafka.Consumer.Workers = 2
	c.Kafka.Consumer.BufferSize = 16
	c.Kafka.Consumer.RetryMax = 3
	c.Kafka.Consumer.BackoffMin = 200 * time.Millisecond
	c.Kafka.Consumer.BackoffMax = 5 * time.Second
	c.Kafka.Consumer.DLQTopic = "analysis.requests.dlq"
	c.Kafka.Consumer.MinBytes = 1
	c.Kafka.Consumer.MaxBytes = 10 << 20

	c.ClickHouse.Host = "localhost"
	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "epipulse"
	c.ClickHouse.Table = "daily_cases"
	c.ClickHouse.User = "default"
	c.ClickHouse.DialTimeout = 10 * time.Second
	c.ClickHouse.ReadTimeout = 30 * time.Second
	c.ClickHouse.WriteTimeout = 30 * time.Second
	c.ClickHouse.MaxExecutionTime = 60 * time.Second

	c.RateLimit.Enabled = true
	c.RateLimit.RequestsPerSecond = 2
	c.RateLimit.Burst = 5
	c.RateLimit.IdleTTL = 10 * time.Minute

	return &c
}

// Load reads and parses a YAML configuration file on top of Default.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path starts from Default.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c = Default()
	} else if c, err = Load(path); err != nil {
		return nil, err
	}

	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from well-known environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("API_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("OWID_URL"); v != "" {
		c.Data.OWIDURL = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}

	a := c.Analysis
	if a.RollingWindow < 2 {
		return fmt.Errorf("analysis.rolling_window must be at least 2, got %d", a.RollingWindow)
	}
	if a.MinDataPoints < 1 {
		return fmt.Errorf("analysis.min_data_points must be positive")
	}
	if a.Contamination <= 0 || a.Contamination > 0.5 {
		return fmt.Errorf("analysis.contamination must be in (0, 0.5], got %v", a.Contamination)
	}
	if a.Trees < 1 {
		return fmt.Errorf("analysis.trees must be positive")
	}
	if a.IntervalWidth <= 0 || a.IntervalWidth >= 1 {
		return fmt.Errorf("analysis.interval_width must be in (0, 1), got %v", a.IntervalWidth)
	}
	if a.SeasonalityMode != "additive" && a.SeasonalityMode != "multiplicative" {
		return fmt.Errorf("analysis.seasonality_mode must be 'additive' or 'multiplicative', got '%s'", a.SeasonalityMode)
	}
	if a.RiskMedium > a.RiskHigh {
		return fmt.Errorf("analysis.risk_medium (%v) must not exceed analysis.risk_high (%v)", a.RiskMedium, a.RiskHigh)
	}
	if a.ForecastHorizon < 1 {
		return fmt.Errorf("analysis.forecast_horizon must be positive")
	}

	if c.Cache.Enabled && c.Cache.Type != "memory" && c.Cache.Type != "redis" && c.Cache.Type != "layered" {
		return fmt.Errorf("cache.type must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Type)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("ratelimit needs positive requests_per_second and burst")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

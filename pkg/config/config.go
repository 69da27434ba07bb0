package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type string `yaml:"type"` // kafka | clickhouse
	} `yaml:"backend"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		Predictions   string   `yaml:"predictions_topic"`
		SideBets      string   `yaml:"side_bets_topic"`
		Episodes      string   `yaml:"episodes_topic"`
		ConsumerTopic string   `yaml:"consumer_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
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
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Feed struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxRPS         int           `yaml:"max_rps"`
		BufferSize     int           `yaml:"buffer_size"`
	} `yaml:"feed"`
	Tracker struct {
		Horizon          int     `yaml:"horizon"`
		BaseTolerance    int     `yaml:"base_tolerance"`
		SpreadWide       int     `yaml:"spread_wide"`
		QuantileDefault  float64 `yaml:"quantile_default"`
		QuantileWide     float64 `yaml:"quantile_wide"`
		EarlyBlendMax    int     `yaml:"early_blend_max"`
		GateMaxStep      int     `yaml:"gate_max_step"`
		SideBetWindow    int     `yaml:"side_bet_window"`
		SideBetCooldown  int     `yaml:"side_bet_cooldown"`
		SideBetThreshold float64 `yaml:"side_bet_threshold"`

		Conformal struct {
			Target   float64 `yaml:"target"`
			Kp       float64 `yaml:"kp"`
			Ki       float64 `yaml:"ki"`
			MinAlpha float64 `yaml:"min_alpha"`
			MaxAlpha float64 `yaml:"max_alpha"`
		} `yaml:"conformal"`
		Drift struct {
			Delta  float64 `yaml:"delta"`
			Lambda float64 `yaml:"lambda"`
			Alpha  float64 `yaml:"alpha"`
		} `yaml:"drift"`
		Regime struct {
			EarlyWindowMax  int     `yaml:"early_window_max"`
			RatioThreshold  float64 `yaml:"ratio_threshold"`
			MinSustainTicks int     `yaml:"min_sustain_ticks"`
			EMAAlpha        float64 `yaml:"ema_alpha"`
			ScaleFloor      float64 `yaml:"scale_floor"`
			DecayTau        float64 `yaml:"decay_tau"`
		} `yaml:"regime"`
	} `yaml:"tracker"`
	State struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
	} `yaml:"state"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("FEED_WEBSOCKET_URL"); v != "" {
		c.Feed.WebSocketURL = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.State.Redis.Host = v
		c.State.Redis.Enabled = true
	}

	return c, nil
}

// applyDefaults fills tuned defaults for everything the file omits.
func (c *Config) applyDefaults() {
	t := &c.Tracker
	if t.Horizon <= 0 {
		t.Horizon = 300
	}
	if t.BaseTolerance <= 0 {
		t.BaseTolerance = 50
	}
	if t.SpreadWide <= 0 {
		t.SpreadWide = 160
	}
	if t.QuantileDefault <= 0 {
		t.QuantileDefault = 0.5
	}
	if t.QuantileWide <= 0 {
		t.QuantileWide = 0.7
	}
	if t.EarlyBlendMax <= 0 {
		t.EarlyBlendMax = 25
	}
	if t.GateMaxStep <= 0 {
		t.GateMaxStep = 25
	}
	if t.SideBetWindow <= 0 {
		t.SideBetWindow = 40
	}
	if t.SideBetCooldown <= 0 {
		t.SideBetCooldown = 4
	}
	if t.SideBetThreshold <= 0 {
		t.SideBetThreshold = 0.20
	}

	cf := &t.Conformal
	if cf.Target <= 0 {
		cf.Target = 0.85
	}
	if cf.Kp <= 0 {
		cf.Kp = 0.6
	}
	if cf.Ki <= 0 {
		cf.Ki = 0.05
	}
	if cf.MinAlpha <= 0 {
		cf.MinAlpha = 0.01
	}
	if cf.MaxAlpha <= 0 {
		cf.MaxAlpha = 0.5
	}

	d := &t.Drift
	if d.Delta <= 0 {
		d.Delta = 0.005
	}
	if d.Lambda <= 0 {
		d.Lambda = 50
	}
	if d.Alpha <= 0 {
		d.Alpha = 0.01
	}

	r := &t.Regime
	if r.EarlyWindowMax <= 0 {
		r.EarlyWindowMax = 120
	}
	if r.RatioThreshold <= 0 {
		r.RatioThreshold = 3.0
	}
	if r.MinSustainTicks <= 0 {
		r.MinSustainTicks = 10
	}
	if r.EMAAlpha <= 0 {
		r.EMAAlpha = 0.1
	}
	if r.ScaleFloor <= 0 {
		r.ScaleFloor = 0.75
	}
	if r.DecayTau <= 0 {
		r.DecayTau = 120
	}

	if c.Feed.ReconnectDelay <= 0 {
		c.Feed.ReconnectDelay = 3 * time.Second
	}
	if c.Feed.PingInterval <= 0 {
		c.Feed.PingInterval = 15 * time.Second
	}
	if c.Feed.MaxRPS <= 0 {
		c.Feed.MaxRPS = 20
	}
	if c.Feed.BufferSize <= 0 {
		c.Feed.BufferSize = 1000
	}
	if c.State.SnapshotTTL <= 0 {
		c.State.SnapshotTTL = 7 * 24 * time.Hour
	}
	if c.Kafka.Predictions == "" {
		c.Kafka.Predictions = "rug.predictions"
	}
	if c.Kafka.SideBets == "" {
		c.Kafka.SideBets = "rug.side_bets"
	}
	if c.Kafka.Episodes == "" {
		c.Kafka.Episodes = "rug.episodes"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if c.Feed.WebSocketURL == "" {
		return fmt.Errorf("feed.websocket_url is required")
	}
	t := &c.Tracker
	if t.QuantileDefault <= 0 || t.QuantileDefault >= 1 {
		return fmt.Errorf("tracker.quantile_default must be in (0,1)")
	}
	if t.QuantileWide <= 0 || t.QuantileWide >= 1 {
		return fmt.Errorf("tracker.quantile_wide must be in (0,1)")
	}
	if t.Conformal.MinAlpha >= t.Conformal.MaxAlpha {
		return fmt.Errorf("tracker.conformal.min_alpha must be below max_alpha")
	}
	if t.Conformal.Target <= 0 || t.Conformal.Target >= 1 {
		return fmt.Errorf("tracker.conformal.target must be in (0,1)")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" validate:"required"`
	Mode        string `yaml:"mode" default:"paper" validate:"oneof=paper live backtest"`

	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`

	Logger struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logger"`

	Deribit struct {
		WebSocketURL     string        `yaml:"websocket_url" validate:"required"`
		Currencies       []string      `yaml:"currencies" validate:"min=1"`
		SnapshotInterval time.Duration `yaml:"snapshot_interval" default:"5s"`
		ReconnectDelay   time.Duration `yaml:"reconnect_delay" default:"3s"`
		PingInterval     time.Duration `yaml:"ping_interval" default:"20s"`
	} `yaml:"deribit"`

	Pipeline struct {
		MinStrikes        int           `yaml:"min_strikes" default:"5"`
		MonitoredExpiries []string      `yaml:"monitored_expiries"`
		CycleTimeout      time.Duration `yaml:"cycle_timeout" default:"10s"`
		MaxEvalPerSec     float64       `yaml:"max_eval_per_sec" default:"2"`
		BufferSize        int           `yaml:"buffer_size" default:"256"`

		Engine struct {
			TargetStrikes     int     `yaml:"target_strikes" default:"5"`
			FallbackPenalty   float64 `yaml:"fallback_penalty" default:"0.1"`
			SkewThreshold     float64 `yaml:"skew_threshold" default:"0.05"`
			KurtosisThreshold float64 `yaml:"kurtosis_threshold" default:"3.0"`
			SmoothingWindow   int     `yaml:"smoothing_window" default:"0"`
			Workers           int     `yaml:"workers" default:"4"`
		} `yaml:"engine"`
	} `yaml:"pipeline"`

	Strategy struct {
		Kind               string  `yaml:"kind" default:"smirk" validate:"oneof=smirk sentiment composite"`
		BullishScore       float64 `yaml:"bullish_score" default:"0.2"`
		BearishScore       float64 `yaml:"bearish_score" default:"-0.2"`
		MinConfidence      float64 `yaml:"min_confidence" default:"0.6"`
		LimitOffsetPercent float64 `yaml:"limit_offset_percent" default:"0.5"`
	} `yaml:"strategy"`

	Risk struct {
		RiskPerTrade             float64 `yaml:"risk_per_trade" default:"0.02" validate:"gt=0,lte=1"`
		MaxPortfolioRisk         float64 `yaml:"max_portfolio_risk" default:"0.2" validate:"gt=0,lte=1"`
		RiskMultiplier           float64 `yaml:"risk_multiplier" default:"1.5" validate:"gt=0"`
		TradeUnit                float64 `yaml:"trade_unit" default:"1"`
		MinQuantity              float64 `yaml:"min_quantity" default:"1"`
		StopLossPercent          float64 `yaml:"stop_loss_percent" default:"2.0"`
		TakeProfitPercent        float64 `yaml:"take_profit_percent" default:"5.0"`
		SentimentDampenThreshold float64 `yaml:"sentiment_dampen_threshold" default:"0.8"`
		SentimentDampenFactor    float64 `yaml:"sentiment_dampen_factor" default:"0.5"`
		CVaRLevel                float64 `yaml:"cvar_level" default:"0.95" validate:"gt=0,lt=1"`
		PaperBalance             float64 `yaml:"paper_balance" default:"100000"`
		// How long a sized trade's risk stays counted against the portfolio
		// cap in paper mode before it is treated as closed. 0 never releases.
		PaperHoldPeriod time.Duration `yaml:"paper_hold_period" default:"24h"`
	} `yaml:"risk"`

	Runner struct {
		Timeframe      string        `yaml:"timeframe" default:"1h" validate:"oneof=1m 1h 1d"`
		CandleLookback int           `yaml:"candle_lookback" default:"200"`
		ATRPeriod      int           `yaml:"atr_period" default:"14"`
		FeatureTTL     time.Duration `yaml:"feature_ttl" default:"30m"`
	} `yaml:"runner"`

	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		OrdersTopic  string   `yaml:"orders_topic" default:"order-intents"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			FeaturesTopic string        `yaml:"features_topic" default:"external-features"`
			GroupID       string        `yaml:"group_id" default:"smirk-pipeline"`
			Workers       int           `yaml:"workers" default:"2"`
			BufferSize    int           `yaml:"buffer_size" default:"64"`
			RetryMax      int           `yaml:"retry_max" default:"3"`
			BackoffMin    time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax    time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic      string        `yaml:"dlq_topic"`
			MinBytes      int           `yaml:"min_bytes" default:"10000"`
			MaxBytes      int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"smirk"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"smirk"`
	} `yaml:"redis"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file. Defaults are applied
// before validation, so a minimal file only names the environment and the
// market feed.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
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

	if v := os.Getenv("DERIBIT_WS_URL"); v != "" {
		c.Deribit.WebSocketURL = v
	}
	if v := os.Getenv("CURRENCIES"); v != "" {
		c.Deribit.Currencies = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ORDERS_TOPIC"); v != "" {
		c.Kafka.OrdersTopic = v
	}
	if v := os.Getenv("MODE"); v != "" {
		c.Mode = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if len(c.Pipeline.MonitoredExpiries) == 0 {
		c.Pipeline.MonitoredExpiries = []string{"nearest"}
	}
	if c.Mode == "live" {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers required in live mode")
		}
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host required in live mode")
		}
	}
	if c.Mode == "backtest" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host required in backtest mode")
	}
	return nil
}

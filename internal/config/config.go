package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/krobus00/meta-exchange/internal/constant"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

var (
	ServiceName    = "meta-exchange"
	ServiceVersion = ""
)

var (
	Env *EnvConfig
)

type EnvConfig struct {
	Env                     string                     `mapstructure:"env"`
	Log                     LogConfig                  `mapstructure:"log"`
	GracefulShutdownTimeout time.Duration              `mapstructure:"graceful_shutdown_timeout"`
	APIKeys                 []APIKeyConfig             `mapstructure:"api_keys"`
	Port                    map[string]string          `mapstructure:"port"`
	HTTPRateLimit           RateLimitConfig            `mapstructure:"http_rate_limit"`
	Database                map[string]DatabaseConfig  `mapstructure:"database"`
	Redis                   map[string]RedisConfig     `mapstructure:"redis"`
	NatsJetstream           NatsJetstreamConfig        `mapstructure:"nats_jetstream"`
	OrderBook               OrderBookConfig            `mapstructure:"order_book"`
	Venue                   VenueConfig                `mapstructure:"venue"`
	Hedger                  HedgerConfig               `mapstructure:"hedger"`
	Ledger                  LedgerConfig               `mapstructure:"ledger"`
	TransactionRequests     []TransactionRequestConfig `mapstructure:"transaction_requests"`
	RequestGuardTTL         time.Duration              `mapstructure:"request_guard_ttl"`
}

type APIKeyConfig struct {
	Name      string `mapstructure:"name"`
	Key       string `mapstructure:"key"`
	Active    bool   `mapstructure:"active"`
	ExpiredAt any    `mapstructure:"expired_at"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type NatsJetstreamConfig struct {
	URL             string                   `mapstructure:"url"`
	MaxRetries      int                      `mapstructure:"max_retries"`
	ReconnectFactor float64                  `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration            `mapstructure:"min_jitter"`
	MaxJitter       time.Duration            `mapstructure:"max_jitter"`
	TimeoutHandler  map[string]time.Duration `mapstructure:"timeout_handler"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	ReconnectFactor float64       `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration `mapstructure:"min_jitter"`
	MaxJitter       time.Duration `mapstructure:"max_jitter"`
	MaxRetry        int           `mapstructure:"max_retry"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxActiveConns  int           `mapstructure:"max_active_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type LogConfig struct {
	ShowCaller bool   `mapstructure:"show_caller"`
	LogLevel   string `mapstructure:"log_level"`
}

type RedisConfig struct {
	CacheDSN string `mapstructure:"cache_dsn"`
}

type OrderBookConfig struct {
	Source       string `mapstructure:"source"` // file or database
	FilePath     string `mapstructure:"file_path"`
	NumberToRead int    `mapstructure:"number_to_read"`
}

type VenueBalanceConfig struct {
	BalanceEur decimal.Decimal `mapstructure:"balance_eur"`
	BalanceBtc decimal.Decimal `mapstructure:"balance_btc"`
}

type VenueConfig struct {
	DefaultBalanceEur decimal.Decimal               `mapstructure:"default_balance_eur"`
	DefaultBalanceBtc decimal.Decimal               `mapstructure:"default_balance_btc"`
	Balances          map[string]VenueBalanceConfig `mapstructure:"balances"`
}

type HedgerConfig struct {
	Strategy      string `mapstructure:"strategy"` // pooled or single_venue
	RecordResults bool   `mapstructure:"record_results"`
}

type LedgerConfig struct {
	RollbackOnFailure bool `mapstructure:"rollback_on_failure"`
}

type TransactionRequestConfig struct {
	Side   string          `mapstructure:"side"`
	Amount decimal.Decimal `mapstructure:"amount"`
}

func setDefaults() {
	viper.SetDefault("env", constant.DevelopmentEnvironment)
	viper.SetDefault("log.log_level", "info")
	viper.SetDefault("graceful_shutdown_timeout", 30*time.Second)
	viper.SetDefault("order_book.source", constant.OrderBookSourceFile)
	viper.SetDefault("order_book.number_to_read", 1)
	viper.SetDefault("venue.default_balance_eur", "10000")
	viper.SetDefault("venue.default_balance_btc", "1")
	viper.SetDefault("hedger.strategy", constant.HedgerStrategyPooled)
	viper.SetDefault("hedger.record_results", false)
	viper.SetDefault("ledger.rollback_on_failure", true)
	viper.SetDefault("request_guard_ttl", 24*time.Hour)
	viper.SetDefault("nats_jetstream.max_retries", 3)
	viper.SetDefault("port.hedger_gateway_http", "8080")
	viper.SetDefault("port.hedger_gateway_grpc", "9090")
}

func LoadConfig(configPath string) error {
	viper.Reset()
	setDefaults()

	configPath = strings.TrimSpace(configPath)
	if configPath == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yml")
		viper.AddConfigPath(".")
	} else {
		ext := strings.ToLower(filepath.Ext(configPath))
		if ext == ".yml" || ext == ".yaml" {
			viper.SetConfigFile(configPath)
		} else {
			viper.SetConfigName(filepath.Base(configPath))
			viper.SetConfigType("yml")
			configDir := filepath.Dir(configPath)
			if configDir == "." || configDir == "" {
				viper.AddConfigPath(".")
			} else {
				viper.AddConfigPath(configDir)
			}
		}
	}

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &EnvConfig{}
	err = viper.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToDecimalHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	Env = cfg

	return nil
}

// stringToDecimalHookFunc decodes yaml strings and numbers into decimal.Decimal.
func stringToDecimalHookFunc() mapstructure.DecodeHookFuncType {
	decimalType := reflect.TypeOf(decimal.Decimal{})

	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != decimalType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return decimal.Zero, nil
			}
			return decimal.NewFromString(strings.TrimSpace(v))
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		default:
			return data, nil
		}
	}
}

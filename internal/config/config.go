package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/constants"
)

const (
	DefaultPath = "config.toml"
	envPrefix   = "limitbatch"
)

// Output amount sources.
const (
	OutAmountFromOutput = "output" // output mint range, output decimals
	OutAmountFromInput  = "input"  // input mint range, input decimals (legacy behavior)
	OutAmountFromQuote  = "quote"  // market quote for the input amount plus a premium
)

// MintRange is one entry of input_mints / output_mints.
type MintRange struct {
	AmountRange []float64 `toml:"amount_range"`
}

// Min returns the lower bound of the range.
func (m MintRange) Min() float64 { return m.AmountRange[0] }

// Max returns the upper bound of the range.
func (m MintRange) Max() float64 { return m.AmountRange[1] }

// MintTable maps a mint address to its allowed amount range.
type MintTable map[string]MintRange

type Config struct {
	// Accounts
	AccountsPath string `mapstructure:"accounts_path"`
	FeePayer     string `mapstructure:"fee_payer"`

	// RPC settings
	RPCURL          string        `mapstructure:"rpc_url"`
	RPCTimeout      time.Duration `mapstructure:"rpc_timeout"`
	RPCMaxRetries   int           `mapstructure:"rpc_max_retries"`
	RPCRetryBackoff time.Duration `mapstructure:"rpc_retry_backoff"`
	RPCRateLimit    float64       `mapstructure:"rpc_rate_limit"` // requests per second, 0 = unlimited
	Commitment      string        `mapstructure:"commitment"`
	SkipPreflight   bool          `mapstructure:"skip_preflight"`

	// Jupiter
	OrderAPIURL     string        `mapstructure:"order_api_url"`
	QuoteAPIURL     string        `mapstructure:"quote_api_url"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	ExpireAfter     time.Duration `mapstructure:"expire_after"` // 0 = orders never expire
	ReferralAccount string        `mapstructure:"referral_account"`
	ReferralName    string        `mapstructure:"referral_name"`

	// Amounts
	OutAmountSource string `mapstructure:"out_amount_source"`
	QuotePremiumBps int    `mapstructure:"quote_premium_bps"`

	// Batch
	Delay       time.Duration `mapstructure:"delay"`
	StopOnError bool          `mapstructure:"stop_on_error"`
	DryRun      bool          `mapstructure:"dry_run"`
	LogLevel    string        `mapstructure:"log_level"`

	Journal JournalConfig `mapstructure:"journal"`

	// Mint tables are decoded separately, see loadMints.
	InputMints  MintTable `mapstructure:"-"`
	OutputMints MintTable `mapstructure:"-"`
}

// JournalConfig enables the optional order journals. Empty addresses disable them.
type JournalConfig struct {
	RedisAddr          string `mapstructure:"redis_addr"`
	RedisDB            int    `mapstructure:"redis_db"`
	ClickHouseAddr     string `mapstructure:"clickhouse_addr"`
	ClickHouseDatabase string `mapstructure:"clickhouse_database"`
	ClickHouseUsername string `mapstructure:"clickhouse_username"`
	ClickHousePassword string `mapstructure:"clickhouse_password"`
}

// Load reads the TOML file at path, applies defaults and LIMITBATCH_* environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found: %w", path, err)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := loadMints(path, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// AutomaticEnv only resolves keys viper already knows about.
	v.SetDefault("rpc_url", "")
	v.SetDefault("accounts_path", "")
	v.SetDefault("fee_payer", "")

	v.SetDefault("rpc_timeout", constants.DefaultRPCTimeout.String())
	v.SetDefault("rpc_max_retries", 0)
	v.SetDefault("rpc_retry_backoff", "1s")
	v.SetDefault("rpc_rate_limit", 0)
	v.SetDefault("commitment", "confirmed")
	v.SetDefault("skip_preflight", false)

	v.SetDefault("order_api_url", constants.CreateOrderEndpoint)
	v.SetDefault("quote_api_url", constants.QuoteEndpoint)
	v.SetDefault("http_timeout", constants.DefaultHTTPTimeout.String())
	v.SetDefault("expire_after", "0s")
	v.SetDefault("referral_account", "")
	v.SetDefault("referral_name", "")

	v.SetDefault("out_amount_source", OutAmountFromOutput)
	v.SetDefault("quote_premium_bps", 0)

	v.SetDefault("delay", constants.DelayBetweenAccounts.String())
	v.SetDefault("stop_on_error", false)
	v.SetDefault("dry_run", false)
	v.SetDefault("log_level", "info")

	v.SetDefault("journal.redis_addr", "")
	v.SetDefault("journal.redis_db", 0)
	v.SetDefault("journal.clickhouse_addr", "")
	v.SetDefault("journal.clickhouse_database", "solana")
	v.SetDefault("journal.clickhouse_username", "default")
	v.SetDefault("journal.clickhouse_password", "")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}
}

// mintFile mirrors the mint tables of the config file. viper lower-cases every key,
// which would corrupt base58 mint addresses, so these tables are decoded directly.
type mintFile struct {
	InputMints  MintTable `toml:"input_mints"`
	OutputMints MintTable `toml:"output_mints"`
}

func loadMints(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var mf mintFile
	if err := toml.Unmarshal(raw, &mf); err != nil {
		return fmt.Errorf("decode mint tables: %w", err)
	}

	cfg.InputMints = mf.InputMints
	cfg.OutputMints = mf.OutputMints
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

const (
	DefaultEndpoint       = "https://api.mainnet-beta.solana.com"
	DefaultListen         = ":8080"
	DefaultLadderInterval = 15 * time.Second
	DefaultConfirmTimeout = 60 * time.Second
	DefaultScanInterval   = 12 * time.Second
	DefaultSettingsPath   = "./wal/settings.json"
	DefaultLadderDir      = "./wal/ladders"
	DefaultTradeDir       = "./wal/trades"
)

// Config process-level configuration. Settings are the defaults used until
// a persisted settings document overrides them.
type Config struct {
	Endpoint       string
	KeypairPath    string
	PostgresDSN    string
	Listen         string
	TLSDomains     []string
	CertCacheDir   string
	DexScreenerURL string
	JupiterURL     string
	SettingsPath   string
	LadderDir      string
	TradeDir       string
	LadderInterval time.Duration
	ConfirmTimeout time.Duration
	LogLevel       string
	// Once prints one ranked candidate table and exits.
	Once     bool
	Settings domain.Settings
}

// ConfigTmp yaml representation of Config.
type ConfigTmp struct {
	Endpoint          string        `yaml:"endpoint,omitempty"`
	Keypair           string        `yaml:"keypair,omitempty"`
	PostgresDSN       string        `yaml:"postgres_dsn,omitempty"`
	Listen            string        `yaml:"listen,omitempty"`
	TLSDomains        []string      `yaml:"tls_domains,omitempty"`
	CertCacheDir      string        `yaml:"cert_cache_dir,omitempty"`
	DexScreenerURL    string        `yaml:"dexscreener_url,omitempty"`
	JupiterURL        string        `yaml:"jupiter_url,omitempty"`
	SettingsPath      string        `yaml:"settings_path,omitempty"`
	LadderDir         string        `yaml:"ladder_dir,omitempty"`
	TradeDir          string        `yaml:"trade_dir,omitempty"`
	LadderInterval    time.Duration `yaml:"ladder_interval,omitempty"`
	ConfirmTimeout    time.Duration `yaml:"confirm_timeout,omitempty"`
	LogLevel          string        `yaml:"log_level,omitempty"`
	AutoScan          *bool         `yaml:"auto_scan,omitempty"`
	ScanInterval      time.Duration `yaml:"scan_interval,omitempty"`
	MaxAgeMinutesStr  string        `yaml:"max_age_minutes,omitempty"`
	MinLiquidityStr   string        `yaml:"min_liquidity_usd,omitempty"`
	MinVolumeStr      string        `yaml:"min_volume_24h,omitempty"`
	MaxFDVStr         string        `yaml:"max_fdv,omitempty"`
	MinChangeH1Str    string        `yaml:"min_change_h1,omitempty"`
	MaxChangeH1Str    string        `yaml:"max_change_h1,omitempty"`
	Allow             []string      `yaml:"allow,omitempty"`
	Deny              []string      `yaml:"deny,omitempty"`
	SlippageBpsStr    string        `yaml:"slippage_bps,omitempty"`
	BuySOL            string        `yaml:"buy_sol,omitempty"`
	SellPct           string        `yaml:"sell_pct,omitempty"`
	MaxImpactPct      string        `yaml:"max_impact_pct,omitempty"`
	PriorityFeeStr    string        `yaml:"priority_fee_lamports,omitempty"`
	Commitment        string        `yaml:"commitment,omitempty"`
	PreTradeSimulated *bool         `yaml:"pre_trade_simulation,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		Listen:         DefaultListen,
		CertCacheDir:   "cert-cache",
		SettingsPath:   DefaultSettingsPath,
		LadderDir:      DefaultLadderDir,
		TradeDir:       DefaultTradeDir,
		LadderInterval: DefaultLadderInterval,
		ConfirmTimeout: DefaultConfirmTimeout,
		LogLevel:       "info",
		Settings: domain.Settings{
			Endpoint:     DefaultEndpoint,
			AutoScan:     true,
			ScanInterval: DefaultScanInterval,
			Filters: domain.FilterConfig{
				MaxAgeMinutes:   90,
				MinLiquidityUSD: 4000,
				MinVolume24h:    10000,
				MaxFDV:          600000,
				MinChangeH1:     -5,
				MaxChangeH1:     40,
			},
			Trading: domain.TradingParams{
				SlippageBps:         350,
				BuySOL:              decimal.RequireFromString("0.1"),
				DefaultSellPct:      decimal.NewFromInt(25),
				MaxImpactPct:        decimal.NewFromInt(12),
				PriorityFeeLamports: 2500,
				Commitment:          domain.CommitmentConfirmed,
				PreTradeSimulation:  true,
			},
		},
	}
}

// Get loads .env, then the yaml file named by --config or the CLI flags, then
// applies environment overrides.
func Get() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrap(err, "load .env")
	}
	return Load(os.Args[1:], os.Getenv)
}

// Load builds the configuration from args and the given environment lookup.
func Load(args []string, getenv func(string) string) (Config, error) {
	f, err := parseFlags(args)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if f.configPath != "" {
		if cfg, err = getYaml(f.configPath); err != nil {
			return Config{}, err
		}
	}
	f.apply(&cfg)
	applyEnv(&cfg, getenv)

	cfg.Settings.Endpoint = cfg.Endpoint
	if err := cfg.Settings.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv("SOLANA_RPC_ENDPOINT")); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(getenv("DEXSNIPE_KEYPAIR")); v != "" {
		cfg.KeypairPath = v
	}
	if v := strings.TrimSpace(getenv("POSTGRES_DSN")); v != "" {
		cfg.PostgresDSN = v
	}
}

func getYaml(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read yaml config")
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "parse yaml config")
	}
	return tmp.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Default()

	setString(&cfg.Endpoint, c.Endpoint)
	setString(&cfg.KeypairPath, c.Keypair)
	setString(&cfg.PostgresDSN, c.PostgresDSN)
	setString(&cfg.Listen, c.Listen)
	setString(&cfg.CertCacheDir, c.CertCacheDir)
	setString(&cfg.DexScreenerURL, c.DexScreenerURL)
	setString(&cfg.JupiterURL, c.JupiterURL)
	setString(&cfg.SettingsPath, c.SettingsPath)
	setString(&cfg.LadderDir, c.LadderDir)
	setString(&cfg.TradeDir, c.TradeDir)
	setString(&cfg.LogLevel, c.LogLevel)
	if len(c.TLSDomains) > 0 {
		cfg.TLSDomains = c.TLSDomains
	}
	if c.LadderInterval > 0 {
		cfg.LadderInterval = c.LadderInterval
	}
	if c.ConfirmTimeout > 0 {
		cfg.ConfirmTimeout = c.ConfirmTimeout
	}

	s := &cfg.Settings
	if c.AutoScan != nil {
		s.AutoScan = *c.AutoScan
	}
	if c.ScanInterval > 0 {
		s.ScanInterval = c.ScanInterval
	}
	if c.PreTradeSimulated != nil {
		s.Trading.PreTradeSimulation = *c.PreTradeSimulated
	}
	if len(c.Allow) > 0 {
		s.Filters.Allow = c.Allow
	}
	if len(c.Deny) > 0 {
		s.Filters.Deny = c.Deny
	}

	floats := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"max_age_minutes", c.MaxAgeMinutesStr, &s.Filters.MaxAgeMinutes},
		{"min_liquidity_usd", c.MinLiquidityStr, &s.Filters.MinLiquidityUSD},
		{"min_volume_24h", c.MinVolumeStr, &s.Filters.MinVolume24h},
		{"max_fdv", c.MaxFDVStr, &s.Filters.MaxFDV},
		{"min_change_h1", c.MinChangeH1Str, &s.Filters.MinChangeH1},
		{"max_change_h1", c.MaxChangeH1Str, &s.Filters.MaxChangeH1},
	}
	for _, f := range floats {
		if f.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a number), error: %w", f.name, err)
		}
		*f.dst = v
	}

	decimals := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"buy_sol", c.BuySOL, &s.Trading.BuySOL},
		{"sell_pct", c.SellPct, &s.Trading.DefaultSellPct},
		{"max_impact_pct", c.MaxImpactPct, &s.Trading.MaxImpactPct},
	}
	for _, d := range decimals {
		if d.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal), error: %w", d.name, err)
		}
		*d.dst = v
	}

	if c.SlippageBpsStr != "" {
		v, err := strconv.Atoi(c.SlippageBpsStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'slippage_bps' param in yaml config (must be an integer), error: %w", err)
		}
		s.Trading.SlippageBps = v
	}
	if c.PriorityFeeStr != "" {
		v, err := strconv.ParseUint(c.PriorityFeeStr, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'priority_fee_lamports' param in yaml config (must be an unsigned integer), error: %w", err)
		}
		s.Trading.PriorityFeeLamports = v
	}
	if c.Commitment != "" {
		commitment := domain.Commitment(strings.ToLower(c.Commitment))
		if !commitment.IsValid() {
			return Config{}, fmt.Errorf("incorrect 'commitment' param in yaml config: %q (processed, confirmed or finalized)", c.Commitment)
		}
		s.Trading.Commitment = commitment
	}

	return cfg, nil
}

// ToTmp converts the configuration back into its yaml form.
func (c Config) ToTmp() ConfigTmp {
	s := c.Settings
	autoScan := s.AutoScan
	preSim := s.Trading.PreTradeSimulation

	return ConfigTmp{
		Endpoint:          c.Endpoint,
		Keypair:           c.KeypairPath,
		PostgresDSN:       c.PostgresDSN,
		Listen:            c.Listen,
		TLSDomains:        c.TLSDomains,
		CertCacheDir:      c.CertCacheDir,
		DexScreenerURL:    c.DexScreenerURL,
		JupiterURL:        c.JupiterURL,
		SettingsPath:      c.SettingsPath,
		LadderDir:         c.LadderDir,
		TradeDir:          c.TradeDir,
		LadderInterval:    c.LadderInterval,
		ConfirmTimeout:    c.ConfirmTimeout,
		LogLevel:          c.LogLevel,
		AutoScan:          &autoScan,
		ScanInterval:      s.ScanInterval,
		MaxAgeMinutesStr:  formatFloat(s.Filters.MaxAgeMinutes),
		MinLiquidityStr:   formatFloat(s.Filters.MinLiquidityUSD),
		MinVolumeStr:      formatFloat(s.Filters.MinVolume24h),
		MaxFDVStr:         formatFloat(s.Filters.MaxFDV),
		MinChangeH1Str:    formatFloat(s.Filters.MinChangeH1),
		MaxChangeH1Str:    formatFloat(s.Filters.MaxChangeH1),
		Allow:             s.Filters.Allow,
		Deny:              s.Filters.Deny,
		SlippageBpsStr:    strconv.Itoa(s.Trading.SlippageBps),
		BuySOL:            s.Trading.BuySOL.String(),
		SellPct:           s.Trading.DefaultSellPct.String(),
		MaxImpactPct:      s.Trading.MaxImpactPct.String(),
		PriorityFeeStr:    strconv.FormatUint(s.Trading.PriorityFeeLamports, 10),
		Commitment:        s.Trading.Commitment.String(),
		PreTradeSimulated: &preSim,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

package domain

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// MinScanInterval lower bound for the scan interval.
const MinScanInterval = 5 * time.Second

// FilterConfig inclusion/exclusion thresholds applied to every snapshot.
type FilterConfig struct {
	// MaxAgeMinutes newest pairs only; 0 disables the age filter.
	MaxAgeMinutes   float64  `json:"recentOnlyMins"`
	MinLiquidityUSD float64  `json:"minLiq"`
	MinVolume24h    float64  `json:"minVol"`
	MaxFDV          float64  `json:"maxFdv"`
	MinChangeH1     float64  `json:"minH1"`
	MaxChangeH1     float64  `json:"maxH1"`
	Allow           []string `json:"wl"`
	Deny            []string `json:"bl"`
}

// Clone returns a deep copy.
func (f FilterConfig) Clone() FilterConfig {
	c := f
	c.Allow = append([]string(nil), f.Allow...)
	c.Deny = append([]string(nil), f.Deny...)
	return c
}

// maxBuyLamports largest buy size representable in lamports.
var maxBuyLamports = decimal.NewFromUint64(math.MaxUint64)

// TradingParams parameters of every buy and sell.
type TradingParams struct {
	SlippageBps int `json:"slippageBps"`
	// BuySOL SOL spent per buy.
	BuySOL decimal.Decimal `json:"buySol"`
	// DefaultSellPct percent sold by a manual sell without an explicit percent.
	DefaultSellPct decimal.Decimal `json:"sellPct"`
	// MaxImpactPct price impact ceiling in percent; equal impact is accepted.
	MaxImpactPct        decimal.Decimal `json:"maxImpactPct"`
	PriorityFeeLamports uint64          `json:"prioFee"`
	Commitment          Commitment      `json:"commitment"`
	PreTradeSimulation  bool            `json:"preSim"`
}

// BuyLamports returns the configured buy size in lamports, floored.
func (p TradingParams) BuyLamports() uint64 {
	if !p.BuySOL.IsPositive() {
		return 0
	}
	return p.BuySOL.Mul(decimal.NewFromInt(LamportsPerSOL)).Floor().BigInt().Uint64()
}

// Validate checks trading parameters.
func (p TradingParams) Validate() error {
	if p.SlippageBps < 0 || p.SlippageBps > 10_000 {
		return errors.Wrapf(ErrValidation, "slippage %d bps out of range", p.SlippageBps)
	}
	if p.BuySOL.IsNegative() {
		return errors.Wrapf(ErrValidation, "buy size %s must not be negative", p.BuySOL.String())
	}
	if p.BuySOL.Mul(decimal.NewFromInt(LamportsPerSOL)).Floor().GreaterThan(maxBuyLamports) {
		return errors.Wrapf(ErrValidation, "buy size %s SOL is too large", p.BuySOL.String())
	}
	if p.DefaultSellPct.IsNegative() || p.DefaultSellPct.GreaterThan(hundred) {
		return errors.Wrapf(ErrValidation, "default sell percent %s out of range", p.DefaultSellPct.String())
	}
	if p.MaxImpactPct.IsNegative() {
		return errors.Wrapf(ErrValidation, "max impact %s must not be negative", p.MaxImpactPct.String())
	}
	if !p.Commitment.IsValid() {
		return errors.Wrapf(ErrValidation, "unknown commitment %q", p.Commitment)
	}
	return nil
}

// Settings operator-tunable settings persisted between sessions.
type Settings struct {
	Endpoint     string
	AutoScan     bool
	ScanInterval time.Duration
	Filters      FilterConfig
	Trading      TradingParams
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	c := s
	c.Filters = s.Filters.Clone()
	return c
}

// EffectiveScanInterval returns the scan interval clamped to the minimum.
func (s Settings) EffectiveScanInterval() time.Duration {
	if s.ScanInterval < MinScanInterval {
		return MinScanInterval
	}
	return s.ScanInterval
}

// Validate checks the whole settings bag.
func (s Settings) Validate() error {
	if s.Endpoint == "" {
		return errors.Wrap(ErrValidation, "endpoint is required")
	}
	if s.ScanInterval < 0 {
		return errors.Wrap(ErrValidation, "scan interval must not be negative")
	}
	if s.Filters.MaxAgeMinutes < 0 {
		return errors.Wrap(ErrValidation, "max age must not be negative")
	}
	return s.Trading.Validate()
}

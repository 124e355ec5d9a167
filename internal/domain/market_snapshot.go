package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceChange price change percentages over the standard feed windows.
// A nil window means the feed did not report it.
type PriceChange struct {
	M5  *float64 `json:"m5,omitempty"`
	H1  *float64 `json:"h1,omitempty"`
	H6  *float64 `json:"h6,omitempty"`
	H24 *float64 `json:"h24,omitempty"`
}

// MarketSnapshot tradable pair as seen by the market feed at scan time.
type MarketSnapshot struct {
	Pair       PairRef `json:"pair"`
	DexID      string  `json:"dexId,omitempty"`
	BaseToken  Token   `json:"baseToken"`
	QuoteToken Token   `json:"quoteToken"`
	// PriceUSD price of the base token in USD, arbitrary precision.
	PriceUSD decimal.Decimal `json:"priceUsd"`
	// PriceNative price of the base token in quote token units.
	PriceNative decimal.Decimal `json:"priceNative"`
	// FDV fully-diluted valuation in USD.
	FDV *float64 `json:"fdv,omitempty"`
	// LiquidityUSD pool liquidity in USD.
	LiquidityUSD *float64 `json:"liquidityUsd,omitempty"`
	// Volume24h traded volume over the last 24 hours in USD.
	Volume24h   *float64    `json:"volume24h,omitempty"`
	PriceChange PriceChange `json:"priceChange"`
	// PairCreatedAt pool creation time, zero when unknown.
	PairCreatedAt time.Time `json:"pairCreatedAt,omitempty"`
}

// BaseMint returns the mint of the base token.
func (s MarketSnapshot) BaseMint() string {
	return s.BaseToken.Address
}

// AgeMinutes returns the pair age relative to now and whether the age is known.
func (s MarketSnapshot) AgeMinutes(now time.Time) (float64, bool) {
	if s.PairCreatedAt.IsZero() {
		return 0, false
	}
	return now.Sub(s.PairCreatedAt).Minutes(), true
}

// ScoredCandidate snapshot plus its desirability score for the current scan cycle.
type ScoredCandidate struct {
	MarketSnapshot
	// Score composite score in [0,100] with one decimal.
	Score float64 `json:"score"`
}

// CandidateList published result of one successful scan cycle.
type CandidateList struct {
	// Cycle monotonic id of the scan cycle that produced the list.
	Cycle      uint64            `json:"cycle"`
	ScannedAt  time.Time         `json:"scannedAt"`
	Candidates []ScoredCandidate `json:"candidates"`
}

// Find returns the candidate whose base mint matches.
func (l CandidateList) Find(mint string) (ScoredCandidate, bool) {
	for _, c := range l.Candidates {
		if SameMint(c.BaseMint(), mint) {
			return c, true
		}
	}
	return ScoredCandidate{}, false
}

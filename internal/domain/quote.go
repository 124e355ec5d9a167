package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// WSOL wrapped SOL mint, the quote side of every swap.
const WSOL = "So11111111111111111111111111111111111111112"

// LamportsPerSOL number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Quote swap quote returned by the aggregator. Valid only for the request that produced it.
type Quote struct {
	InputMint  string
	OutputMint string
	InAmount   uint64
	OutAmount  uint64
	// PriceImpactPct expected price impact as a fraction (0.01 = 1%).
	PriceImpactPct decimal.Decimal
	SlippageBps    int
	// RoutePlan opaque route description.
	RoutePlan json.RawMessage
	// Raw full provider response, sent back verbatim when building the swap.
	Raw json.RawMessage
}

// ImpactPercent returns the price impact in percent.
func (q Quote) ImpactPercent() decimal.Decimal {
	return q.PriceImpactPct.Mul(decimal.NewFromInt(100))
}

// SwapOptions parameters for building a swap transaction.
type SwapOptions struct {
	PriorityFeeLamports uint64
	WrapAndUnwrapSOL    bool
}

// SimulationResult outcome of a dry run.
type SimulationResult struct {
	Succeeded bool
	Err       string
	Logs      []string
}

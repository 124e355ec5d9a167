package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeState step of the buy/sell protocol.
type TradeState string

const (
	TradeStateIdle           TradeState = "idle"
	TradeStateRiskChecking   TradeState = "risk_checking"
	TradeStateSimulating     TradeState = "simulating"
	TradeStateBalance        TradeState = "balance"
	TradeStateQuoting        TradeState = "quoting"
	TradeStateImpactChecking TradeState = "impact_checking"
	TradeStateSubmitting     TradeState = "submitting"
	TradeStateConfirming     TradeState = "confirming"
	TradeStateSucceeded      TradeState = "succeeded"
	TradeStateFailed         TradeState = "failed"
)

// TradeResult outcome of one buy or sell attempt.
type TradeResult struct {
	AttemptID string     `json:"attemptId"`
	Side      Side       `json:"side"`
	Mint      string     `json:"mint"`
	State     TradeState `json:"state"`
	Signature string     `json:"signature,omitempty"`
	// Err terminal failure, nil on success.
	Err error `json:"-"`
	// Warning non-fatal problem after a signature was obtained.
	Warning error `json:"-"`
	// Percent sell percentage, zero for buys.
	Percent        decimal.Decimal `json:"percent"`
	InAmount       uint64          `json:"inAmount,omitempty"`
	PriceImpactPct decimal.Decimal `json:"priceImpactPct"`
	StartedAt      time.Time       `json:"startedAt"`
	FinishedAt     time.Time       `json:"finishedAt"`
}

// Succeeded reports whether a signature was obtained.
func (r TradeResult) Succeeded() bool {
	return r.State == TradeStateSucceeded
}

// Status returns the terminal human-readable status line.
func (r TradeResult) Status() string {
	if r.Err != nil {
		return fmt.Sprintf("Error [%s]: %s", Classify(r.Err), r.Err.Error())
	}

	label := "Buy"
	if r.Side == SideSell {
		label = fmt.Sprintf("Sell %s%%", r.Percent.String())
	}
	if r.Warning != nil {
		return fmt.Sprintf("%s submitted, unconfirmed: %s (%s)", label, r.Signature, r.Warning.Error())
	}
	return fmt.Sprintf("%s OK: %s", label, r.Signature)
}

// Package domain defines core data structures used throughout the sniper bot.
package domain

import (
	"fmt"
	"strings"
)

// Token base or quote side of a pair.
type Token struct {
	// Address mint address.
	Address string `json:"address"`
	// Symbol ticker symbol, may be empty.
	Symbol string `json:"symbol"`
}

// PairRef identity of a pair on a given chain.
type PairRef struct {
	// ChainID chain identifier used by the market feed (e.g. "solana").
	ChainID string `json:"chainId"`
	// PairAddress address of the pool.
	PairAddress string `json:"pairAddress"`
}

// IsZero reports whether the reference points nowhere.
func (p PairRef) IsZero() bool {
	return p.ChainID == "" || p.PairAddress == ""
}

// String returns the string representation.
func (p PairRef) String() string {
	return fmt.Sprintf("%s/%s", p.ChainID, p.PairAddress)
}

// SameMint compares mint addresses case-insensitively.
func SameMint(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

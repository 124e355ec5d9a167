package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradingParams_BuySizeFitsLamports(t *testing.T) {
	p := TradingParams{Commitment: CommitmentConfirmed}

	p.BuySOL = decimal.RequireFromString("18446744073.709551615")
	require.NoError(t, p.Validate())
	assert.Equal(t, uint64(math.MaxUint64), p.BuyLamports())

	p.BuySOL = decimal.RequireFromString("18446744073.709551616")
	assert.ErrorIs(t, p.Validate(), ErrValidation)

	p.BuySOL = decimal.RequireFromString("0.1")
	require.NoError(t, p.Validate())
	assert.Equal(t, uint64(100_000_000), p.BuyLamports())
}

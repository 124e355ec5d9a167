package dexscreener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

const latestBody = `{
  "schemaVersion": "1.0.0",
  "pairs": [
    {
      "chainId": "solana",
      "dexId": "raydium",
      "pairAddress": "PairA",
      "baseToken": {"address": "MintA", "symbol": "AAA"},
      "quoteToken": {"address": "So11111111111111111111111111111111111111112", "symbol": "SOL"},
      "priceNative": "0.0000123",
      "priceUsd": "0.002154",
      "volume": {"h24": 15000.5, "h1": 100},
      "priceChange": {"m5": 1.2, "h1": 12.5},
      "liquidity": {"usd": 8000},
      "fdv": 250000,
      "pairCreatedAt": 1767225600000
    },
    {
      "chainId": "solana",
      "pairAddress": "PairB",
      "baseToken": {"address": "MintB", "symbol": "BBB"},
      "quoteToken": {"address": "So11111111111111111111111111111111111111112", "symbol": "SOL"},
      "priceUsd": "1.5"
    },
    {
      "chainId": "solana",
      "pairAddress": "",
      "baseToken": {"address": "MintC"}
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(zap.NewNop(), srv.URL)
	c.retrier = newRetrier(zap.NewNop(), time.Millisecond)
	return c
}

func TestClient_LatestPairs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/pairs/solana", r.URL.Path)
		_, _ = w.Write([]byte(latestBody))
	})

	snaps, err := c.LatestPairs(context.Background(), "solana")
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	a := snaps[0]
	assert.Equal(t, domain.PairRef{ChainID: "solana", PairAddress: "PairA"}, a.Pair)
	assert.Equal(t, "MintA", a.BaseMint())
	assert.True(t, a.PriceUSD.Equal(decimal.RequireFromString("0.002154")))
	require.NotNil(t, a.LiquidityUSD)
	assert.Equal(t, 8000.0, *a.LiquidityUSD)
	require.NotNil(t, a.Volume24h)
	assert.Equal(t, 15000.5, *a.Volume24h)
	require.NotNil(t, a.PriceChange.H1)
	assert.Equal(t, 12.5, *a.PriceChange.H1)
	assert.Nil(t, a.PriceChange.H24)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), a.PairCreatedAt)

	b := snaps[1]
	assert.Nil(t, b.LiquidityUSD, "absent liquidity stays absent")
	assert.Nil(t, b.FDV)
	assert.Nil(t, b.Volume24h)
	assert.True(t, b.PairCreatedAt.IsZero())
}

func TestClient_LatestPairsFailures(t *testing.T) {
	t.Run("client error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := c.LatestPairs(context.Background(), "solana")
		assert.ErrorIs(t, err, domain.ErrFeedUnavailable)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("server error is retried", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(latestBody))
		})

		snaps, err := c.LatestPairs(context.Background(), "solana")
		require.NoError(t, err)
		assert.Len(t, snaps, 2)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("malformed json", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"pairs": [`))
		})

		_, err := c.LatestPairs(context.Background(), "solana")
		assert.ErrorIs(t, err, domain.ErrFeedUnavailable)
	})
}

func TestClient_PriceUSD(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/latest/dex/pairs/solana/PairA":
			_, _ = w.Write([]byte(`{"pair": {"chainId":"solana","pairAddress":"PairA","baseToken":{"address":"MintA"},"priceUsd":"2.5"}}`))
		case "/latest/dex/pairs/solana/PairZero":
			_, _ = w.Write([]byte(`{"pairs": [{"chainId":"solana","pairAddress":"PairZero","baseToken":{"address":"MintZ"},"priceUsd":"0"}]}`))
		default:
			_, _ = w.Write([]byte(`{"pairs": null, "pair": null}`))
		}
	})

	price, err := c.PriceUSD(context.Background(), domain.PairRef{ChainID: "solana", PairAddress: "PairA"})
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("2.5")))

	_, err = c.PriceUSD(context.Background(), domain.PairRef{ChainID: "solana", PairAddress: "PairZero"})
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)

	_, err = c.PriceUSD(context.Background(), domain.PairRef{ChainID: "solana", PairAddress: "Missing"})
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

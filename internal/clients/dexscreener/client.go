// Package dexscreener is a read-only client for the DexScreener market data API.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
	"github.com/vadiminshakov/dexsnipe/pkg/retrier"
)

const (
	// DefaultBaseURL public API root.
	DefaultBaseURL = "https://api.dexscreener.com"

	// pair endpoints allow 300 requests per minute, stay well below
	requestsPerSecond = 3
	requestBurst      = 5

	defaultTimeout = 10 * time.Second
)

// errTransient marks failures worth retrying (network, 429, 5xx).
var errTransient = errors.New("transient feed failure")

// Client DexScreener HTTP client with client-side rate limiting and retries.
type Client struct {
	logger  *zap.Logger
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	retrier *retrier.Retrier
}

// NewClient creates a new Client. An empty baseURL selects the public API.
func NewClient(logger *zap.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger = logger.With(zap.String("component", "dexscreener"))

	return &Client{
		logger:  logger,
		http:    &http.Client{Timeout: defaultTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(requestsPerSecond, requestBurst),
		retrier: newRetrier(logger, 500*time.Millisecond),
	}
}

func newRetrier(logger *zap.Logger, initial time.Duration) *retrier.Retrier {
	return retrier.New(
		retrier.WithMaxRetries(2),
		retrier.WithInitialInterval(initial),
		retrier.WithMaxInterval(3*time.Second),
		retrier.WithRetryIf(func(err error) bool { return errors.Is(err, errTransient) }),
		retrier.WithOnRetry(func(attempt int, err error) {
			logger.Debug("retrying feed request", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)
}

type pairsResponse struct {
	Pairs []pairDTO `json:"pairs"`
	Pair  *pairDTO  `json:"pair"`
}

type tokenDTO struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

type pairDTO struct {
	ChainID     string   `json:"chainId"`
	DexID       string   `json:"dexId"`
	PairAddress string   `json:"pairAddress"`
	BaseToken   tokenDTO `json:"baseToken"`
	QuoteToken  tokenDTO `json:"quoteToken"`
	PriceNative string   `json:"priceNative"`
	PriceUsd    string   `json:"priceUsd"`
	Volume      struct {
		H24 *float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		M5  *float64 `json:"m5"`
		H1  *float64 `json:"h1"`
		H6  *float64 `json:"h6"`
		H24 *float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity *struct {
		Usd *float64 `json:"usd"`
	} `json:"liquidity"`
	Fdv           *float64 `json:"fdv"`
	PairCreatedAt int64    `json:"pairCreatedAt"`
}

func (p pairDTO) toDomain() domain.MarketSnapshot {
	s := domain.MarketSnapshot{
		Pair:       domain.PairRef{ChainID: p.ChainID, PairAddress: p.PairAddress},
		DexID:      p.DexID,
		BaseToken:  domain.Token{Address: p.BaseToken.Address, Symbol: p.BaseToken.Symbol},
		QuoteToken: domain.Token{Address: p.QuoteToken.Address, Symbol: p.QuoteToken.Symbol},
		FDV:        p.Fdv,
		Volume24h:  p.Volume.H24,
		PriceChange: domain.PriceChange{
			M5:  p.PriceChange.M5,
			H1:  p.PriceChange.H1,
			H6:  p.PriceChange.H6,
			H24: p.PriceChange.H24,
		},
	}
	if p.Liquidity != nil {
		s.LiquidityUSD = p.Liquidity.Usd
	}
	if d, err := decimal.NewFromString(p.PriceUsd); err == nil {
		s.PriceUSD = d
	}
	if d, err := decimal.NewFromString(p.PriceNative); err == nil {
		s.PriceNative = d
	}
	if p.PairCreatedAt > 0 {
		s.PairCreatedAt = time.UnixMilli(p.PairCreatedAt).UTC()
	}
	return s
}

// LatestPairs returns the latest pairs listed for chainID.
func (c *Client) LatestPairs(ctx context.Context, chainID string) ([]domain.MarketSnapshot, error) {
	var resp pairsResponse
	if err := c.get(ctx, fmt.Sprintf("/latest/dex/pairs/%s", url.PathEscape(chainID)), &resp); err != nil {
		return nil, err
	}

	out := make([]domain.MarketSnapshot, 0, len(resp.Pairs))
	for _, p := range resp.Pairs {
		if p.PairAddress == "" || p.BaseToken.Address == "" {
			continue
		}
		out = append(out, p.toDomain())
	}
	return out, nil
}

// Pair returns the current snapshot of one pair.
func (c *Client) Pair(ctx context.Context, ref domain.PairRef) (domain.MarketSnapshot, error) {
	var resp pairsResponse
	path := fmt.Sprintf("/latest/dex/pairs/%s/%s", url.PathEscape(ref.ChainID), url.PathEscape(ref.PairAddress))
	if err := c.get(ctx, path, &resp); err != nil {
		return domain.MarketSnapshot{}, err
	}

	if resp.Pair != nil {
		return resp.Pair.toDomain(), nil
	}
	for _, p := range resp.Pairs {
		if strings.EqualFold(p.PairAddress, ref.PairAddress) {
			return p.toDomain(), nil
		}
	}
	return domain.MarketSnapshot{}, errors.Wrapf(domain.ErrPriceUnavailable, "pair %s not found", ref)
}

// PriceUSD returns the current USD price of the pair's base token.
func (c *Client) PriceUSD(ctx context.Context, ref domain.PairRef) (decimal.Decimal, error) {
	snap, err := c.Pair(ctx, ref)
	if err != nil {
		return decimal.Zero, err
	}
	if !snap.PriceUSD.IsPositive() {
		return decimal.Zero, errors.Wrapf(domain.ErrPriceUnavailable, "pair %s has no usd price", ref)
	}
	return snap.PriceUSD, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return errors.Wrap(err, "build request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return errors.Wrapf(errTransient, "GET %s: %s", path, err.Error())
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return errors.Wrapf(errTransient, "GET %s: HTTP %d", path, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return errors.Errorf("GET %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "decode %s", path)
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.Wrap(domain.ErrFeedUnavailable, err.Error())
	}
	return nil
}

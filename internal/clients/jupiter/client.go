// Package jupiter is a client for the Jupiter v6 swap aggregator API.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

const (
	// DefaultBaseURL public v6 API root.
	DefaultBaseURL = "https://quote-api.jup.ag/v6"

	requestsPerSecond = 1
	requestBurst      = 3

	defaultTimeout = 15 * time.Second
)

// ErrUnavailable marks transport failures and 5xx/429 responses.
var ErrUnavailable = errors.New("swap provider unavailable")

// Client Jupiter HTTP client.
type Client struct {
	logger  *zap.Logger
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient creates a new Client. An empty baseURL selects the public API.
func NewClient(logger *zap.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		logger:  logger.With(zap.String("component", "jupiter")),
		http:    &http.Client{Timeout: defaultTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(requestsPerSecond, requestBurst),
	}
}

type quoteResponse struct {
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct string          `json:"priceImpactPct"`
	SlippageBps    int             `json:"slippageBps"`
	RoutePlan      json.RawMessage `json:"routePlan"`
}

// Quote requests a route for amount base units of inputMint.
// Client errors and empty routes are reported as domain.ErrNoRoute.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (domain.Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return domain.Quote{}, errors.Wrap(err, "build quote request")
	}

	raw, err := c.do(req, domain.ErrNoRoute)
	if err != nil {
		return domain.Quote{}, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.Quote{}, errors.Wrapf(domain.ErrNoRoute, "decode quote: %s", err.Error())
	}

	out, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil || out == 0 {
		return domain.Quote{}, errors.Wrapf(domain.ErrNoRoute, "%s -> %s: empty out amount %q", inputMint, outputMint, resp.OutAmount)
	}
	in, err := strconv.ParseUint(resp.InAmount, 10, 64)
	if err != nil {
		in = amount
	}
	impact := decimal.Zero
	if resp.PriceImpactPct != "" {
		if impact, err = decimal.NewFromString(resp.PriceImpactPct); err != nil {
			return domain.Quote{}, errors.Wrapf(domain.ErrNoRoute, "bad price impact %q", resp.PriceImpactPct)
		}
	}

	return domain.Quote{
		InputMint:      inputMint,
		OutputMint:     outputMint,
		InAmount:       in,
		OutAmount:      out,
		PriceImpactPct: impact,
		SlippageBps:    slippageBps,
		RoutePlan:      resp.RoutePlan,
		Raw:            raw,
	}, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports uint64          `json:"prioritizationFeeLamports,omitempty"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// BuildSwap asks the provider to build an unsigned transaction for quote.
func (c *Client) BuildSwap(ctx context.Context, quote domain.Quote, trader solana.PublicKey, opts domain.SwapOptions) (*solana.Transaction, error) {
	if len(quote.Raw) == 0 {
		return nil, errors.Wrap(domain.ErrBuild, "quote has no provider payload")
	}

	body, err := json.Marshal(swapRequest{
		QuoteResponse:             quote.Raw,
		UserPublicKey:             trader.String(),
		WrapAndUnwrapSol:          opts.WrapAndUnwrapSOL,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: opts.PriorityFeeLamports,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal swap request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build swap request")
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req, domain.ErrBuild)
	if err != nil {
		return nil, err
	}

	var resp swapResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrapf(domain.ErrBuild, "decode swap: %s", err.Error())
	}
	if resp.SwapTransaction == "" {
		return nil, errors.Wrap(domain.ErrBuild, "empty swap transaction")
	}

	tx, err := solana.TransactionFromBase64(resp.SwapTransaction)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrBuild, "decode swap transaction: %s", err.Error())
	}
	return tx, nil
}

// do sends req and returns the body of a 2xx response. Non-2xx client errors
// are wrapped with failure, transport and server errors with ErrUnavailable.
func (c *Client) do(req *http.Request, failure error) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "%s %s: %s", req.Method, req.URL.Path, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "read %s: %s", req.URL.Path, err.Error())
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, errors.Wrapf(ErrUnavailable, "%s %s: HTTP %d", req.Method, req.URL.Path, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.Wrapf(failure, "%s %s: HTTP %d: %s", req.Method, req.URL.Path, resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n]
	}
	return s
}

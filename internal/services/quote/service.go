// Package quote wraps the swap provider and the transaction simulator.
package quote

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
	"github.com/vadiminshakov/dexsnipe/pkg/retrier"
)

// Provider quotes and builds swaps.
type Provider interface {
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (domain.Quote, error)
	BuildSwap(ctx context.Context, quote domain.Quote, trader solana.PublicKey, opts domain.SwapOptions) (*solana.Transaction, error)
}

// Simulator dry-runs transactions against current chain state.
type Simulator interface {
	Simulate(ctx context.Context, tx *solana.Transaction) (domain.SimulationResult, error)
}

// Service request/response facade over Provider and Simulator.
type Service struct {
	logger    *zap.Logger
	provider  Provider
	simulator Simulator
	retrier   *retrier.Retrier
}

// NewService creates a new Service.
func NewService(logger *zap.Logger, provider Provider, simulator Simulator) *Service {
	logger = logger.With(zap.String("component", "quote"))
	return &Service{
		logger:    logger,
		provider:  provider,
		simulator: simulator,
		retrier:   newRetrier(logger, 300*time.Millisecond),
	}
}

func newRetrier(logger *zap.Logger, initial time.Duration) *retrier.Retrier {
	return retrier.New(
		retrier.WithMaxRetries(2),
		retrier.WithInitialInterval(initial),
		retrier.WithMaxInterval(2*time.Second),
		retrier.WithRetryIf(func(err error) bool {
			return !errors.Is(err, domain.ErrNoRoute) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retrier.WithOnRetry(func(attempt int, err error) {
			logger.Debug("retrying quote", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)
}

// Quote fetches a fresh quote; every retry issues a new request.
// Failures are reported as domain.ErrNoRoute.
func (s *Service) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (domain.Quote, error) {
	q, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (domain.Quote, error) {
		return s.provider.Quote(ctx, inputMint, outputMint, amount, slippageBps)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNoRoute) {
			err = errors.Wrap(domain.ErrNoRoute, err.Error())
		}
		return domain.Quote{}, err
	}
	return q, nil
}

// BuildSwap builds the unsigned swap transaction for quote.
// Failures are reported as domain.ErrBuild.
func (s *Service) BuildSwap(ctx context.Context, quote domain.Quote, trader solana.PublicKey, opts domain.SwapOptions) (*solana.Transaction, error) {
	tx, err := s.provider.BuildSwap(ctx, quote, trader, opts)
	if err != nil {
		if !errors.Is(err, domain.ErrBuild) {
			err = errors.Wrap(domain.ErrBuild, err.Error())
		}
		return nil, err
	}
	return tx, nil
}

// Simulate dry-runs tx. A successful simulation says nothing about the real submission.
func (s *Service) Simulate(ctx context.Context, tx *solana.Transaction) (domain.SimulationResult, error) {
	res, err := s.simulator.Simulate(ctx, tx)
	if err != nil {
		return domain.SimulationResult{}, errors.Wrap(err, "simulate swap")
	}
	return res, nil
}

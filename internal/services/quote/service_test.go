package quote

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

type providerMock struct {
	mock.Mock
}

func (m *providerMock) Quote(ctx context.Context, in, out string, amount uint64, slippageBps int) (domain.Quote, error) {
	args := m.Called(ctx, in, out, amount, slippageBps)
	return args.Get(0).(domain.Quote), args.Error(1)
}

func (m *providerMock) BuildSwap(ctx context.Context, q domain.Quote, trader solana.PublicKey, opts domain.SwapOptions) (*solana.Transaction, error) {
	args := m.Called(ctx, q, trader, opts)
	tx, _ := args.Get(0).(*solana.Transaction)
	return tx, args.Error(1)
}

type simulatorMock struct {
	mock.Mock
}

func (m *simulatorMock) Simulate(ctx context.Context, tx *solana.Transaction) (domain.SimulationResult, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(domain.SimulationResult), args.Error(1)
}

func newTestService(p *providerMock, s *simulatorMock) *Service {
	svc := NewService(zap.NewNop(), p, s)
	svc.retrier = newRetrier(zap.NewNop(), time.Millisecond)
	return svc
}

func TestService_QuoteRetriesTransientErrors(t *testing.T) {
	p := &providerMock{}
	want := domain.Quote{InputMint: domain.WSOL, OutputMint: "MintA", InAmount: 1000, OutAmount: 5}
	p.On("Quote", mock.Anything, domain.WSOL, "MintA", uint64(1000), 50).Return(domain.Quote{}, errors.New("HTTP 502")).Once()
	p.On("Quote", mock.Anything, domain.WSOL, "MintA", uint64(1000), 50).Return(want, nil).Once()

	q, err := newTestService(p, &simulatorMock{}).Quote(context.Background(), domain.WSOL, "MintA", 1000, 50)
	require.NoError(t, err)
	assert.Equal(t, want, q)
	p.AssertNumberOfCalls(t, "Quote", 2)
}

func TestService_QuoteNoRouteIsNotRetried(t *testing.T) {
	p := &providerMock{}
	p.On("Quote", mock.Anything, domain.WSOL, "MintA", uint64(1000), 50).
		Return(domain.Quote{}, errors.Wrap(domain.ErrNoRoute, "HTTP 400")).Once()

	_, err := newTestService(p, &simulatorMock{}).Quote(context.Background(), domain.WSOL, "MintA", 1000, 50)
	assert.ErrorIs(t, err, domain.ErrNoRoute)
	p.AssertNumberOfCalls(t, "Quote", 1)
}

func TestService_QuoteExhaustedRetriesReportNoRoute(t *testing.T) {
	p := &providerMock{}
	p.On("Quote", mock.Anything, domain.WSOL, "MintA", uint64(1000), 50).Return(domain.Quote{}, errors.New("HTTP 503"))

	_, err := newTestService(p, &simulatorMock{}).Quote(context.Background(), domain.WSOL, "MintA", 1000, 50)
	assert.ErrorIs(t, err, domain.ErrNoRoute)
	p.AssertNumberOfCalls(t, "Quote", 3)
}

func TestService_BuildSwap(t *testing.T) {
	p := &providerMock{}
	trader := solana.PublicKey{1}
	q := domain.Quote{OutAmount: 1}
	opts := domain.SwapOptions{PriorityFeeLamports: 10}
	p.On("BuildSwap", mock.Anything, q, trader, opts).Return(nil, errors.New("HTTP 500")).Once()

	_, err := newTestService(p, &simulatorMock{}).BuildSwap(context.Background(), q, trader, opts)
	assert.ErrorIs(t, err, domain.ErrBuild)
}

func TestService_Simulate(t *testing.T) {
	sim := &simulatorMock{}
	tx := &solana.Transaction{}
	sim.On("Simulate", mock.Anything, tx).Return(domain.SimulationResult{Succeeded: false, Err: "custom 6001"}, nil).Once()

	res, err := newTestService(&providerMock{}, sim).Simulate(context.Background(), tx)
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
}

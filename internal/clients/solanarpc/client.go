// Package solanarpc adapts the Solana JSON-RPC API to the sniper's account,
// balance, simulation and confirmation needs.
package solanarpc

import (
	"context"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

const (
	defaultCallTimeout  = 15 * time.Second
	defaultPollInterval = time.Second
)

// Client Solana RPC adapter.
type Client struct {
	logger       *zap.Logger
	rpc          *rpc.Client
	callTimeout  time.Duration
	pollInterval time.Duration
}

// NewClient creates a new Client for the given RPC endpoint.
func NewClient(logger *zap.Logger, endpoint string) *Client {
	return &Client{
		logger:       logger.With(zap.String("component", "solanarpc")),
		rpc:          rpc.New(endpoint),
		callTimeout:  defaultCallTimeout,
		pollInterval: defaultPollInterval,
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}

func isTokenProgram(owner solana.PublicKey) bool {
	return owner.Equals(solana.TokenProgramID) || owner.Equals(solana.Token2022ProgramID)
}

// MintInfo fetches and decodes the SPL mint account at confirmed commitment.
func (c *Client) MintInfo(ctx context.Context, mint string) (domain.MintInfo, error) {
	pk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return domain.MintInfo{}, errors.Wrapf(domain.ErrLookup, "invalid mint %q: %s", mint, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	res, err := c.rpc.GetAccountInfoWithOpts(ctx, pk, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return domain.MintInfo{}, errors.Wrapf(domain.ErrLookup, "get account %s: %s", mint, err.Error())
	}
	if !isTokenProgram(res.Value.Owner) {
		return domain.MintInfo{}, errors.Wrapf(domain.ErrLookup, "account %s is owned by %s, not a token program", mint, res.Value.Owner)
	}

	var m token.Mint
	if err := m.UnmarshalWithDecoder(bin.NewBinDecoder(res.GetBinary())); err != nil {
		return domain.MintInfo{}, errors.Wrapf(domain.ErrLookup, "decode mint %s: %s", mint, err.Error())
	}
	if !m.IsInitialized {
		return domain.MintInfo{}, errors.Wrapf(domain.ErrLookup, "mint %s is not initialized", mint)
	}

	info := domain.MintInfo{Decimals: m.Decimals}
	if m.MintAuthority != nil {
		info.MintAuthority = m.MintAuthority.String()
	}
	if m.FreezeAuthority != nil {
		info.FreezeAuthority = m.FreezeAuthority.String()
	}
	return info, nil
}

// TokenBalance sums the owner's balance of mint across all its token accounts.
// Decimals come from the mint record.
func (c *Client) TokenBalance(ctx context.Context, owner solana.PublicKey, mint string) (domain.TokenBalance, error) {
	mintPK, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return domain.TokenBalance{}, errors.Wrapf(domain.ErrLookup, "invalid mint %q: %s", mint, err.Error())
	}

	info, err := c.MintInfo(ctx, mint)
	if err != nil {
		return domain.TokenBalance{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	res, err := c.rpc.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{Mint: &mintPK},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64, Commitment: rpc.CommitmentConfirmed},
	)
	if err != nil {
		return domain.TokenBalance{}, errors.Wrapf(domain.ErrLookup, "token accounts of %s: %s", owner, err.Error())
	}

	balance := domain.TokenBalance{Decimals: info.Decimals}
	for _, acc := range res.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}
		var ta token.Account
		if err := ta.UnmarshalWithDecoder(bin.NewBinDecoder(acc.Account.Data.GetBinary())); err != nil {
			return domain.TokenBalance{}, errors.Wrapf(domain.ErrLookup, "decode token account %s: %s", acc.Pubkey, err.Error())
		}
		if balance.Amount+ta.Amount < balance.Amount {
			return domain.TokenBalance{}, errors.Wrapf(domain.ErrLookup, "balance of %s overflows", mint)
		}
		balance.Amount += ta.Amount
	}
	return balance, nil
}

// Simulate dry-runs tx without signature verification, replacing its blockhash.
func (c *Client) Simulate(ctx context.Context, tx *solana.Transaction) (domain.SimulationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	res, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		ReplaceRecentBlockhash: true,
		Commitment:             rpc.CommitmentProcessed,
	})
	if err != nil {
		return domain.SimulationResult{}, errors.Wrap(err, "simulate transaction")
	}
	if res == nil || res.Value == nil {
		return domain.SimulationResult{}, errors.New("simulate transaction: empty response")
	}

	out := domain.SimulationResult{Succeeded: res.Value.Err == nil, Logs: res.Value.Logs}
	if res.Value.Err != nil {
		out.Err = fmt.Sprint(res.Value.Err)
	}
	return out, nil
}

// Send submits a signed transaction.
func (c *Client) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "send transaction")
	}
	return sig, nil
}

// Confirm polls the signature status until it reaches commitment or ctx is done.
// A transaction that landed with an on-chain error is reported as an error.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature, commitment domain.Commitment) error {
	want := commitment.Rank()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		done, err := c.checkStatus(ctx, sig, want)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "confirm %s", sig)
		case <-ticker.C:
		}
	}
}

func (c *Client) checkStatus(ctx context.Context, sig solana.Signature, want int) (bool, error) {
	res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		if ctx.Err() != nil {
			return false, errors.Wrapf(ctx.Err(), "confirm %s", sig)
		}
		c.logger.Debug("signature status poll failed", zap.String("signature", sig.String()), zap.Error(err))
		return false, nil
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return false, nil
	}

	st := res.Value[0]
	if st.Err != nil {
		return false, errors.Errorf("transaction %s landed with error: %v", sig, st.Err)
	}
	return domain.Commitment(st.ConfirmationStatus).Rank() >= want, nil
}

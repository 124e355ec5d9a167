package solanarpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

// fakeRPC answers JSON-RPC calls from queued results per method.
type fakeRPC struct {
	mu      sync.Mutex
	results map[string][]string
	calls   map[string]int
}

func newFakeRPC(t *testing.T) (*fakeRPC, *Client) {
	t.Helper()
	f := &fakeRPC{results: map[string][]string{}, calls: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	c := NewClient(zap.NewNop(), srv.URL)
	c.pollInterval = time.Millisecond
	return f, c
}

func (f *fakeRPC) queue(method string, results ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[method] = append(f.results[method], results...)
}

func (f *fakeRPC) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRPC) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.calls[req.Method]++
	queue := f.results[req.Method]
	var result string
	switch {
	case len(queue) == 0:
		result = "null"
	case len(queue) == 1:
		result = queue[0]
	default:
		result = queue[0]
		f.results[req.Method] = queue[1:]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
}

func encode(t *testing.T, v interface {
	MarshalWithEncoder(*bin.Encoder) error
}) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, v.MarshalWithEncoder(bin.NewBinEncoder(&buf)))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func accountResult(data string, owner solana.PublicKey) string {
	return fmt.Sprintf(`{"context":{"slot":10},"value":{"data":[%q,"base64"],"executable":false,"lamports":1461600,"owner":%q,"rentEpoch":0}}`, data, owner.String())
}

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	pk, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return pk.PublicKey()
}

var testMint = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

func TestClient_MintInfo(t *testing.T) {
	authority := newKey(t)

	t.Run("authorities present", func(t *testing.T) {
		f, c := newFakeRPC(t)
		m := token.Mint{MintAuthority: &authority, Supply: 1_000_000, Decimals: 6, IsInitialized: true, FreezeAuthority: &authority}
		f.queue("getAccountInfo", accountResult(encode(t, m), solana.TokenProgramID))

		info, err := c.MintInfo(context.Background(), testMint.String())
		require.NoError(t, err)
		assert.Equal(t, authority.String(), info.MintAuthority)
		assert.Equal(t, authority.String(), info.FreezeAuthority)
		assert.Equal(t, uint8(6), info.Decimals)
		assert.False(t, info.Verdict().Safe())
	})

	t.Run("authorities relinquished on token-2022", func(t *testing.T) {
		f, c := newFakeRPC(t)
		m := token.Mint{Supply: 5, Decimals: 9, IsInitialized: true}
		f.queue("getAccountInfo", accountResult(encode(t, m), solana.Token2022ProgramID))

		info, err := c.MintInfo(context.Background(), testMint.String())
		require.NoError(t, err)
		assert.True(t, info.Verdict().Safe())
	})

	t.Run("account missing", func(t *testing.T) {
		f, c := newFakeRPC(t)
		f.queue("getAccountInfo", `{"context":{"slot":10},"value":null}`)

		_, err := c.MintInfo(context.Background(), testMint.String())
		assert.ErrorIs(t, err, domain.ErrLookup)
	})

	t.Run("not a token program account", func(t *testing.T) {
		f, c := newFakeRPC(t)
		m := token.Mint{IsInitialized: true}
		f.queue("getAccountInfo", accountResult(encode(t, m), solana.SystemProgramID))

		_, err := c.MintInfo(context.Background(), testMint.String())
		assert.ErrorIs(t, err, domain.ErrLookup)
	})

	t.Run("truncated data", func(t *testing.T) {
		f, c := newFakeRPC(t)
		f.queue("getAccountInfo", accountResult(base64.StdEncoding.EncodeToString([]byte{1, 0, 0}), solana.TokenProgramID))

		_, err := c.MintInfo(context.Background(), testMint.String())
		assert.ErrorIs(t, err, domain.ErrLookup)
	})

	t.Run("invalid address", func(t *testing.T) {
		_, c := newFakeRPC(t)
		_, err := c.MintInfo(context.Background(), "not-a-key")
		assert.ErrorIs(t, err, domain.ErrLookup)
	})
}

func TestClient_TokenBalance(t *testing.T) {
	f, c := newFakeRPC(t)
	owner := newKey(t)

	f.queue("getAccountInfo", accountResult(encode(t, token.Mint{Decimals: 6, IsInitialized: true}), solana.TokenProgramID))

	acc1 := token.Account{Mint: testMint, Owner: owner, Amount: 1500, State: token.Initialized}
	acc2 := token.Account{Mint: testMint, Owner: owner, Amount: 250, State: token.Initialized}
	f.queue("getTokenAccountsByOwner", fmt.Sprintf(`{"context":{"slot":10},"value":[
		{"pubkey":%q,"account":{"data":[%q,"base64"],"executable":false,"lamports":2039280,"owner":%q,"rentEpoch":0}},
		{"pubkey":%q,"account":{"data":[%q,"base64"],"executable":false,"lamports":2039280,"owner":%q,"rentEpoch":0}}
	]}`,
		newKey(t).String(), encode(t, acc1), solana.TokenProgramID.String(),
		newKey(t).String(), encode(t, acc2), solana.TokenProgramID.String(),
	))

	bal, err := c.TokenBalance(context.Background(), owner, testMint.String())
	require.NoError(t, err)
	assert.Equal(t, domain.TokenBalance{Amount: 1750, Decimals: 6}, bal)
}

func TestClient_TokenBalanceNoAccounts(t *testing.T) {
	f, c := newFakeRPC(t)
	f.queue("getAccountInfo", accountResult(encode(t, token.Mint{Decimals: 6, IsInitialized: true}), solana.TokenProgramID))
	f.queue("getTokenAccountsByOwner", `{"context":{"slot":10},"value":[]}`)

	bal, err := c.TokenBalance(context.Background(), newKey(t), testMint.String())
	require.NoError(t, err)
	assert.Zero(t, bal.Amount)
}

func testTransaction(t *testing.T) *solana.Transaction {
	t.Helper()
	from, to := newKey(t), newKey(t)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, from, to).Build()},
		solana.Hash{},
		solana.TransactionPayer(from),
	)
	require.NoError(t, err)
	return tx
}

func TestClient_Simulate(t *testing.T) {
	f, c := newFakeRPC(t)
	f.queue("simulateTransaction",
		`{"context":{"slot":10},"value":{"err":null,"logs":["Program log: ok"]}}`,
		`{"context":{"slot":10},"value":{"err":{"InstructionError":[0,{"Custom":6001}]},"logs":["Program log: slippage"]}}`,
	)

	res, err := c.Simulate(context.Background(), testTransaction(t))
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Equal(t, []string{"Program log: ok"}, res.Logs)

	res, err = c.Simulate(context.Background(), testTransaction(t))
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
	assert.Contains(t, res.Err, "InstructionError")
}

func TestClient_Confirm(t *testing.T) {
	t.Run("waits for requested commitment", func(t *testing.T) {
		f, c := newFakeRPC(t)
		f.queue("getSignatureStatuses",
			`{"context":{"slot":10},"value":[null]}`,
			`{"context":{"slot":10},"value":[{"slot":10,"confirmations":1,"err":null,"confirmationStatus":"processed"}]}`,
			`{"context":{"slot":11},"value":[{"slot":10,"confirmations":2,"err":null,"confirmationStatus":"confirmed"}]}`,
		)

		err := c.Confirm(context.Background(), solana.Signature{1}, domain.CommitmentConfirmed)
		require.NoError(t, err)
		assert.Equal(t, 3, f.count("getSignatureStatuses"))
	})

	t.Run("finalized satisfies processed", func(t *testing.T) {
		f, c := newFakeRPC(t)
		f.queue("getSignatureStatuses", `{"context":{"slot":10},"value":[{"slot":10,"confirmations":null,"err":null,"confirmationStatus":"finalized"}]}`)

		require.NoError(t, c.Confirm(context.Background(), solana.Signature{1}, domain.CommitmentProcessed))
	})

	t.Run("on-chain error", func(t *testing.T) {
		f, c := newFakeRPC(t)
		f.queue("getSignatureStatuses", `{"context":{"slot":10},"value":[{"slot":10,"confirmations":1,"err":{"InstructionError":[2,"InvalidAccountData"]},"confirmationStatus":"confirmed"}]}`)

		err := c.Confirm(context.Background(), solana.Signature{1}, domain.CommitmentConfirmed)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "landed with error")
	})

	t.Run("deadline", func(t *testing.T) {
		f, c := newFakeRPC(t)
		f.queue("getSignatureStatuses", `{"context":{"slot":10},"value":[null]}`)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := c.Confirm(ctx, solana.Signature{1}, domain.CommitmentConfirmed)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

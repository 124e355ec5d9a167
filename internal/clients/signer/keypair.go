// Package signer provides an operator-owned transaction signer backed by a
// solana-keygen keypair file.
package signer

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// Sender submits signed transactions.
type Sender interface {
	Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Keypair signs with a local private key and submits through a Sender.
type Keypair struct {
	key    solana.PrivateKey
	sender Sender
}

// NewKeypair creates a signer from a key.
func NewKeypair(key solana.PrivateKey, sender Sender) (*Keypair, error) {
	if err := key.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return &Keypair{key: key, sender: sender}, nil
}

// LoadKeypair reads a solana-keygen JSON keypair file.
func LoadKeypair(path string, sender Sender) (*Keypair, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read keypair %s", path)
	}
	return NewKeypair(key, sender)
}

// PublicKey returns the wallet address.
func (k *Keypair) PublicKey() solana.PublicKey {
	return k.key.PublicKey()
}

// SignAndSend signs tx as fee payer and submits it.
func (k *Keypair) SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	owner := k.key.PublicKey()
	if _, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(owner) {
			return &k.key
		}
		return nil
	}); err != nil {
		return solana.Signature{}, errors.Wrap(err, "sign transaction")
	}

	sig, err := k.sender.Send(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

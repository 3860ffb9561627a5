// Package signer holds the single signing account's mutable state: the
// account number, chain id, fee token, gas/fee ratios, and the sequence
// number, and produces signatures over transaction bytes. Per spec.md
// §3/§9, exactly one State exists per process and the canonical design
// gives the Broadcast Worker exclusive ownership of it — no internal
// locking is required as a result, and none is used here.
package signer

import (
	"fmt"

	secp256k1 "github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/nolus-protocol/oracle-price-feeder-sub000/internal/config"
)

// State is the signing account's mutable record.
type State struct {
	privKey cryptotypes.PrivKey
	pubKey  cryptotypes.PubKey
	address sdk.AccAddress

	chainID       string
	feeDenom      string
	accountNumber uint64
	sequence      uint64

	gasFee config.GasFeeConfig
}

// New constructs a State from an already-derived private key. Deriving
// that key from a BIP-39 mnemonic (SIGNING_KEY_MNEMONIC) is an external
// collaborator's responsibility per spec.md §1 — New only ever sees raw
// key bytes.
func New(
	privKeyBytes []byte,
	chainID, feeDenom string,
	accountNumber, sequence uint64,
	gasFee config.GasFeeConfig,
) (*State, error) {
	if len(privKeyBytes) != 32 {
		return nil, fmt.Errorf("signer: private key must be 32 bytes, got %d", len(privKeyBytes))
	}

	priv := &secp256k1.PrivKey{Key: privKeyBytes}
	pub := priv.PubKey()

	return &State{
		privKey:       priv,
		pubKey:        pub,
		address:       sdk.AccAddress(pub.Address()),
		chainID:       chainID,
		feeDenom:      feeDenom,
		accountNumber: accountNumber,
		sequence:      sequence,
		gasFee:        gasFee,
	}, nil
}

// Address returns the signer's bech32 account address.
func (s *State) Address() sdk.AccAddress { return s.address }

// PubKey returns the signer's public key.
func (s *State) PubKey() cryptotypes.PubKey { return s.pubKey }

// PrivKey returns the signer's private key, for use by the broadcast
// worker's tx builder when producing a signature.
func (s *State) PrivKey() cryptotypes.PrivKey { return s.privKey }

// ChainID returns the chain this signer is bound to.
func (s *State) ChainID() string { return s.chainID }

// AccountNumber returns the signer's on-chain account number.
func (s *State) AccountNumber() uint64 { return s.accountNumber }

// FeeDenom returns the denom fees are paid in.
func (s *State) FeeDenom() string { return s.feeDenom }

// Sequence returns the current sequence number.
func (s *State) Sequence() uint64 { return s.sequence }

// SetSequence overwrites the sequence number outright. Used after a
// refetch from the chain (spec.md §4.2); never called to move the
// sequence backwards under normal operation.
func (s *State) SetSequence(seq uint64) { s.sequence = seq }

// IncrementSequence advances the sequence by exactly one. Called once per
// accepted broadcast response (OK or signature-verification-error), never
// more than once per response, per spec.md §8 property 2.
func (s *State) IncrementSequence() { s.sequence++ }

// AdjustGas multiplies simulatedGas by the configured gas-adjustment ratio
// and clamps the result to hardGasLimit, per spec.md §4.2.
func (s *State) AdjustGas(simulatedGas, hardGasLimit uint64) uint64 {
	adjusted := simulatedGas * s.gasFee.GasAdjustment.Numerator / s.gasFee.GasAdjustment.Denominator
	if adjusted > hardGasLimit {
		adjusted = hardGasLimit
	}
	return adjusted
}

// Fee computes the fee coins for a given gas limit: gas_limit * gas_price,
// scaled by the fee-adjustment ratio.
func (s *State) Fee(gasLimit uint64) sdk.Coins {
	amount := gasLimit * s.gasFee.GasPrice.Numerator * s.gasFee.FeeAdjustment.Numerator /
		(s.gasFee.GasPrice.Denominator * s.gasFee.FeeAdjustment.Denominator)
	return sdk.NewCoins(sdk.NewInt64Coin(s.feeDenom, int64(amount)))
}

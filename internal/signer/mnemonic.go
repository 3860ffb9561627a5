package signer

import (
	"fmt"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	bip39 "github.com/cosmos/go-bip39"
)

// defaultHDPath is the standard Cosmos secp256k1 account-0 derivation path.
const defaultHDPath = "m/44'/118'/0'/0/0"

// DeriveKey turns a BIP-39 mnemonic into 32 raw secp256k1 private-key bytes
// using the standard Cosmos derivation path. spec.md §1 treats
// mnemonic-to-key derivation as an external collaborator's concern; this is
// the reference implementation a deployment wires New with — the mnemonic
// itself (SIGNING_KEY_MNEMONIC) never touches any other package.
func DeriveKey(mnemonic, bip39Passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("signer: invalid mnemonic")
	}

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, bip39Passphrase)
	if err != nil {
		return nil, fmt.Errorf("signer: derive seed: %w", err)
	}

	master, ch := hd.ComputeMastersFromSeed(seed)
	key, err := hd.DerivePrivateKeyForPath(master, ch, defaultHDPath)
	if err != nil {
		return nil, fmt.Errorf("signer: derive key for path %s: %w", defaultHDPath, err)
	}
	return key, nil
}

// Package userwallet derives Ethereum key material: random keys, BIP39
// mnemonics with BIP32 derivation, and restoration from a raw private key.
// Nothing here touches storage or the network.
package userwallet

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const RestoredWalletName = "Restored Wallet"

var (
	ErrInvalidMnemonic    = errors.New("invalid mnemonic phrase")
	ErrInvalidPrivateKey  = errors.New("invalid private key")
	ErrDerivationMismatch = errors.New("derived address does not match exported key")
	ErrKeyGeneration      = errors.New("key generation failed")
)

// Wallet is the public face of a key: its display name and derived address.
type Wallet struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (w Wallet) CommonAddress() common.Address {
	return common.HexToAddress(w.Address)
}

// CreationResult is transient. Mnemonic is empty for random and restored
// keys and is never persisted by this package.
type CreationResult struct {
	Wallet        Wallet
	PrivateKeyHex string
	Mnemonic      string
}

// ParsePrivateKey accepts 64 hex characters with or without a 0x prefix.
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	s := strings.TrimSpace(privateKeyHex)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s) != 64 {
		return nil, errors.Wrapf(ErrInvalidPrivateKey, "got %d hex chars, want 64", len(s))
	}

	b, err := hexutil.Decode("0x" + s)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPrivateKey, "not hex")
	}
	defer zeroBytes(b)

	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPrivateKey, "not a valid secp256k1 scalar")
	}
	return key, nil
}

// PrivateKeyHex exports key as 64 lowercase hex characters without prefix.
func PrivateKeyHex(key *ecdsa.PrivateKey) string {
	return hexutil.Encode(crypto.FromECDSA(key))[2:]
}

func AddressOf(key *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func AddressFromPrivateKey(privateKeyHex string) (string, error) {
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return "", err
	}
	return AddressOf(key), nil
}

// SameAddress compares two hex addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// SignHash signs a 32-byte digest with the key; V is 0/1.
func SignHash(_ context.Context, privateKeyHex string, digest32 []byte) ([]byte, error) {
	if len(digest32) != 32 {
		return nil, errors.Newf("digest must be 32 bytes, got %d", len(digest32))
	}
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return crypto.Sign(digest32, key)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

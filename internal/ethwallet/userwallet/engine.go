package userwallet

import (
	"crypto/ecdsa"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/quantumauth-io/quantum-wallet/internal/constants"
	"github.com/tyler-smith/go-bip39"
)

// Engine derives wallets along one fixed BIP32 path.
type Engine struct {
	path accounts.DerivationPath
}

// NewEngine uses the standard Ethereum path m/44'/60'/0'/0/0.
func NewEngine() *Engine {
	e, err := NewEngineWithPath(constants.DefaultDerivationPath)
	if err != nil {
		panic(err) // constant path
	}
	return e
}

func NewEngineWithPath(path string) (*Engine, error) {
	p, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "parse derivation path %q", path)
	}
	return &Engine{path: p}, nil
}

func (e *Engine) Path() string {
	return e.path.String()
}

// CreateWallet makes a random keypair without a mnemonic.
func (e *Engine) CreateWallet(name string) (*CreationResult, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "generate key"), ErrKeyGeneration)
	}
	return finish(name, key, "")
}

// CreateWalletWithMnemonic generates a 12-word mnemonic and derives the key.
func (e *Engine) CreateWalletWithMnemonic(name string) (*CreationResult, error) {
	entropy, err := bip39.NewEntropy(constants.MnemonicEntropy)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "generate entropy"), ErrKeyGeneration)
	}
	defer zeroBytes(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "generate mnemonic"), ErrKeyGeneration)
	}
	return e.fromMnemonic(name, mnemonic)
}

// ImportWalletFromMnemonic validates the phrase and derives the same key
// CreateWalletWithMnemonic would have.
func (e *Engine) ImportWalletFromMnemonic(name, mnemonic string) (*CreationResult, error) {
	return e.fromMnemonic(name, NormalizeMnemonic(mnemonic))
}

// RestoreWallet rebuilds a wallet from a raw private key.
func (e *Engine) RestoreWallet(privateKeyHex string) (*CreationResult, error) {
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	return finish(RestoredWalletName, key, "")
}

// NormalizeMnemonic trims, collapses inner whitespace and lowercases.
func NormalizeMnemonic(mnemonic string) string {
	return strings.ToLower(strings.Join(strings.Fields(mnemonic), " "))
}

// ValidateMnemonic checks word count, wordlist membership and checksum.
func ValidateMnemonic(mnemonic string) error {
	words := strings.Fields(mnemonic)
	if len(words) != constants.MnemonicWordCount {
		return errors.Wrapf(ErrInvalidMnemonic, "got %d words, want %d", len(words), constants.MnemonicWordCount)
	}
	if !bip39.IsMnemonicValid(strings.Join(words, " ")) {
		return errors.Wrap(ErrInvalidMnemonic, "unknown word or bad checksum")
	}
	return nil
}

func (e *Engine) fromMnemonic(name, mnemonic string) (*CreationResult, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, errors.Wrap(ErrInvalidMnemonic, err.Error())
	}
	defer zeroBytes(seed)

	key, err := e.deriveKey(seed)
	if err != nil {
		return nil, err
	}
	return finish(name, key, mnemonic)
}

func (e *Engine) deriveKey(seed []byte) (*ecdsa.PrivateKey, error) {
	ext, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "master key"), ErrKeyGeneration)
	}
	for _, idx := range e.path {
		ext, err = ext.Derive(idx)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "derive child %d", idx), ErrKeyGeneration)
		}
	}

	ec, err := ext.ECPrivKey()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "extract private key"), ErrKeyGeneration)
	}
	raw := ec.Serialize()
	defer zeroBytes(raw)

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "to ecdsa"), ErrKeyGeneration)
	}
	return key, nil
}

// finish exports the key and re-derives the address from the export; the
// two addresses must agree.
func finish(name string, key *ecdsa.PrivateKey, mnemonic string) (*CreationResult, error) {
	address := AddressOf(key)
	privHex := PrivateKeyHex(key)

	again, err := AddressFromPrivateKey(privHex)
	if err != nil {
		return nil, errors.Mark(err, ErrDerivationMismatch)
	}
	if !SameAddress(address, again) {
		return nil, ErrDerivationMismatch
	}

	return &CreationResult{
		Wallet:        Wallet{Name: strings.TrimSpace(name), Address: address},
		PrivateKeyHex: privHex,
		Mnemonic:      mnemonic,
	}, nil
}

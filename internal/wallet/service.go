// Package wallet composes the security gateway, key derivation, settings and
// the shared chain client into the wallet operations used by the CLI and the
// local API.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-wallet/internal/biometric"
	"github.com/quantumauth-io/quantum-wallet/internal/chains"
	"github.com/quantumauth-io/quantum-wallet/internal/ethwallet/userwallet"
	"github.com/quantumauth-io/quantum-wallet/internal/security"
	"github.com/quantumauth-io/quantum-wallet/internal/settings"
)

var (
	ErrNoWallet     = errors.New("no wallet configured")
	ErrWalletExists = errors.New("a wallet is already configured; delete it first")
)

// ChainClient is the subset of chains.Client the service needs.
type ChainClient interface {
	GetBalance(ctx context.Context, address string) (string, error)
	GetCurrentGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (chains.GasEstimate, error)
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error)
	SendTransaction(ctx context.Context, req chains.TxRequest, key *ecdsa.PrivateKey) (common.Hash, error)
	Close()
}

type Dialer func(ctx context.Context) (ChainClient, error)

// Settings is the subset of settings.Store the service needs.
type Settings interface {
	SelectedWalletAddress(ctx context.Context) (string, error)
	SetSelectedWalletAddress(ctx context.Context, address string) error
	HasCompletedOnboarding(ctx context.Context) (bool, error)
	SetCompletedOnboarding(ctx context.Context, done bool) error
	AddWallet(ctx context.Context, name, address string) (settings.WalletRecord, error)
	ListWallets(ctx context.Context) ([]settings.WalletRecord, error)
	RemoveWallet(ctx context.Context, address string) error
}

type Deps struct {
	Gateway  *security.Gateway
	Engine   *userwallet.Engine
	Settings Settings
	Dial     Dialer

	// Optional.
	Sleep       Sleeper
	MaxAttempts int
}

type Service struct {
	gateway  *security.Gateway
	engine   *userwallet.Engine
	settings Settings
	dial     Dialer

	sleep       Sleeper
	maxAttempts int

	initMu sync.Mutex // serializes dial attempts

	mu     sync.Mutex
	client ChainClient
	state  InitState
}

func NewService(d Deps) (*Service, error) {
	if d.Gateway == nil || d.Settings == nil || d.Dial == nil {
		return nil, errors.New("wallet: gateway, settings and dialer are required")
	}
	s := &Service{
		gateway:     d.Gateway,
		engine:      d.Engine,
		settings:    d.Settings,
		dial:        d.Dial,
		sleep:       d.Sleep,
		maxAttempts: d.MaxAttempts,
	}
	if s.engine == nil {
		s.engine = userwallet.NewEngine()
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = MaxInitAttempts
	}
	return s, nil
}

// Close releases the chain client, if any.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Close()
		s.client = nil
		s.state = InitState{Phase: Uninitialized}
	}
}

// Security

func (s *Service) SecurityState(ctx context.Context) (security.State, error) {
	return s.gateway.State(ctx)
}

func (s *Service) BiometricType(ctx context.Context) biometric.Type {
	return s.gateway.BiometricType(ctx)
}

func (s *Service) SetupPIN(ctx context.Context, pin string) error {
	return s.gateway.SetupPIN(ctx, pin)
}

func (s *Service) ChangePIN(ctx context.Context, oldPIN, newPIN string) error {
	return s.gateway.ChangePIN(ctx, oldPIN, newPIN)
}

func (s *Service) AuthenticateWithBiometrics(ctx context.Context, reason string) error {
	return s.gateway.AuthenticateWithBiometrics(ctx, reason)
}

func (s *Service) AuthenticateWithPIN(ctx context.Context, pin string) error {
	return s.gateway.AuthenticateWithPIN(ctx, pin)
}

func (s *Service) AuthenticateForWalletAccess(ctx context.Context, reason string) (security.Outcome, error) {
	return s.gateway.AuthenticateForWalletAccess(ctx, reason)
}

// Wallet lifecycle

func (s *Service) CreateWallet(ctx context.Context, name string) (*userwallet.CreationResult, error) {
	if err := s.ensureNoWallet(ctx); err != nil {
		return nil, err
	}
	res, err := s.engine.CreateWallet(name)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) CreateWalletWithMnemonic(ctx context.Context, name string) (*userwallet.CreationResult, error) {
	if err := s.ensureNoWallet(ctx); err != nil {
		return nil, err
	}
	res, err := s.engine.CreateWalletWithMnemonic(name)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) ImportWalletFromMnemonic(ctx context.Context, name, mnemonic string) (*userwallet.CreationResult, error) {
	if err := s.ensureNoWallet(ctx); err != nil {
		return nil, err
	}
	res, err := s.engine.ImportWalletFromMnemonic(name, mnemonic)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) RestoreExistingWallet(ctx context.Context, privateKeyHex string) (*userwallet.CreationResult, error) {
	if err := s.ensureNoWallet(ctx); err != nil {
		return nil, err
	}
	res, err := s.engine.RestoreWallet(privateKeyHex)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ensureNoWallet refuses to replace a key that is already in the keychain.
func (s *Service) ensureNoWallet(ctx context.Context) error {
	_, hasKey, err := s.gateway.RetrievePrivateKey(ctx)
	if err != nil {
		return err
	}
	if hasKey {
		return ErrWalletExists
	}
	addr, hasAddr, err := s.gateway.RetrieveWalletAddress(ctx)
	if err != nil {
		return err
	}
	if hasAddr {
		return errors.Wrapf(ErrWalletExists, "wallet %s", addr)
	}
	return nil
}

// persist stores the secrets first; the settings registry only ever points
// at wallets whose key is in the keychain.
func (s *Service) persist(ctx context.Context, res *userwallet.CreationResult) error {
	addr := res.Wallet.Address
	if err := s.gateway.StoreWalletData(ctx, res.PrivateKeyHex, addr); err != nil {
		return err
	}
	if _, err := s.settings.AddWallet(ctx, res.Wallet.Name, addr); err != nil {
		return err
	}
	if err := s.settings.SetSelectedWalletAddress(ctx, addr); err != nil {
		return err
	}
	if err := s.settings.SetCompletedOnboarding(ctx, true); err != nil {
		return err
	}
	log.Info("wallet stored", "address", addr, "name", res.Wallet.Name)
	return nil
}

// DeleteWallet wipes the keychain entries and PIN and resets onboarding.
// Every step is attempted; the returned error combines all failures.
func (s *Service) DeleteWallet(ctx context.Context) error {
	addr, _, addrErr := s.gateway.RetrieveWalletAddress(ctx)

	combined := s.gateway.DeleteWalletData(ctx)
	if addrErr == nil && addr != "" {
		if err := s.settings.RemoveWallet(ctx, addr); err != nil && !errors.Is(err, settings.ErrWalletNotFound) {
			combined = errors.CombineErrors(combined, err)
		}
	}
	if err := s.settings.SetSelectedWalletAddress(ctx, ""); err != nil {
		combined = errors.CombineErrors(combined, err)
	}
	if err := s.settings.SetCompletedOnboarding(ctx, false); err != nil {
		combined = errors.CombineErrors(combined, err)
	}
	return combined
}

// Address returns the wallet address held in the keychain.
func (s *Service) Address(ctx context.Context) (string, error) {
	addr, ok, err := s.gateway.RetrieveWalletAddress(ctx)
	if err != nil {
		return "", err
	}
	if !ok || addr == "" {
		return "", ErrNoWallet
	}
	return addr, nil
}

func (s *Service) Wallets(ctx context.Context) ([]settings.WalletRecord, error) {
	return s.settings.ListWallets(ctx)
}

// Chain queries

func (s *Service) Balance(ctx context.Context) (string, error) {
	addr, err := s.Address(ctx)
	if err != nil {
		return "", err
	}
	return s.BalanceOf(ctx, addr)
}

func (s *Service) BalanceOf(ctx context.Context, address string) (string, error) {
	c, err := s.chain(ctx)
	if err != nil {
		return "", err
	}
	return c.GetBalance(ctx, address)
}

func (s *Service) GasPrice(ctx context.Context) (*big.Int, error) {
	c, err := s.chain(ctx)
	if err != nil {
		return nil, err
	}
	return c.GetCurrentGasPrice(ctx)
}

// GasEstimate estimates a call from the configured wallet. An empty to
// means contract creation.
func (s *Service) GasEstimate(ctx context.Context, to string, value *big.Int, data []byte) (chains.GasEstimate, error) {
	addr, err := s.Address(ctx)
	if err != nil {
		return chains.GasEstimate{}, err
	}
	from, err := chains.ParseAddress(addr)
	if err != nil {
		return chains.GasEstimate{}, err
	}
	toAddr, err := optionalAddress(to)
	if err != nil {
		return chains.GasEstimate{}, err
	}

	c, err := s.chain(ctx)
	if err != nil {
		return chains.GasEstimate{}, err
	}
	return c.EstimateGas(ctx, from, toAddr, value, data)
}

func (s *Service) BlockNumber(ctx context.Context) (uint64, error) {
	c, err := s.chain(ctx)
	if err != nil {
		return 0, err
	}
	return c.GetBlockNumber(ctx)
}

func (s *Service) Receipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	c, err := s.chain(ctx)
	if err != nil {
		return nil, err
	}
	return c.GetTransactionReceipt(ctx, txHash)
}

// SendRequest is a transfer or call from the configured wallet.
type SendRequest struct {
	To    string
	Value *big.Int
	Data  []byte
}

// Send signs with the stored private key and broadcasts. Callers must have
// authorized wallet access first.
func (s *Service) Send(ctx context.Context, req SendRequest) (common.Hash, error) {
	to, err := optionalAddress(req.To)
	if err != nil {
		return common.Hash{}, err
	}

	privHex, ok, err := s.gateway.RetrievePrivateKey(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	if !ok {
		return common.Hash{}, ErrNoWallet
	}
	key, err := userwallet.ParsePrivateKey(privHex)
	if err != nil {
		return common.Hash{}, err
	}

	c, err := s.chain(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	return c.SendTransaction(ctx, chains.TxRequest{To: to, Value: req.Value, Data: req.Data}, key)
}

func optionalAddress(s string) (*common.Address, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	a, err := chains.ParseAddress(s)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Startup routing

type Flow int

const (
	Onboarding Flow = iota
	Unlock
)

func (f Flow) String() string {
	if f == Unlock {
		return "unlock"
	}
	return "onboarding"
}

// InitialFlow picks the first screen: Unlock only when onboarding finished
// and the keychain still holds a wallet address.
func (s *Service) InitialFlow(ctx context.Context) (Flow, error) {
	done, err := s.settings.HasCompletedOnboarding(ctx)
	if err != nil {
		return Onboarding, err
	}
	if !done {
		return Onboarding, nil
	}

	_, ok, err := s.gateway.RetrieveWalletAddress(ctx)
	if err != nil {
		return Onboarding, err
	}
	if !ok {
		log.Warn("onboarding marked complete but no wallet in keychain")
		return Onboarding, nil
	}
	return Unlock, nil
}

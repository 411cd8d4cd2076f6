// Package keychain is the durable encrypted key-value store for wallet
// secrets. All operations are serialized by a single mutex and fail with
// ErrLocked until the store has been unlocked with the device secret.
package keychain

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-wallet/internal/constants"
)

var (
	ErrStorage    = errors.New("keychain storage failure")
	ErrLocked     = errors.New("keychain is locked")
	ErrInvalidKey = errors.New("keychain key must not be empty")
)

type Store struct {
	mu      sync.Mutex
	vault   Vault
	secret  []byte
	entries map[string]string
}

func NewStore(vault Vault) *Store {
	return &Store{vault: vault}
}

// Unlock loads the vault with secret. The store keeps its own copy of secret.
func (s *Store) Unlock(ctx context.Context, secret []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.vault.Load(ctx, secret)
	if err != nil {
		return storageErr(err, "unlock")
	}

	zero(s.secret)
	s.secret = append([]byte(nil), secret...)
	s.entries = entries
	log.Info("keychain unlocked", "entries", len(entries))
	return nil
}

// Lock drops the in-memory secret and entries.
func (s *Store) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	zero(s.secret)
	s.secret = nil
	s.entries = nil
}

func (s *Store) IsUnlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries != nil
}

func (s *Store) Store(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(key); err != nil {
		return err
	}

	next := copyEntries(s.entries)
	next[key] = value
	return s.commit(ctx, next, "store "+key)
}

// Retrieve returns the value under key and whether it exists.
func (s *Store) Retrieve(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(key); err != nil {
		return "", false, err
	}
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(key); err != nil {
		return err
	}
	if _, ok := s.entries[key]; !ok {
		return nil
	}

	next := copyEntries(s.entries)
	delete(next, key)
	return s.commit(ctx, next, "delete "+key)
}

func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries == nil {
		return ErrLocked
	}
	return s.commit(ctx, map[string]string{}, "delete all")
}

func (s *Store) StorePrivateKey(ctx context.Context, privateKeyHex string) error {
	return s.Store(ctx, constants.KeyPrivateKey, privateKeyHex)
}

func (s *Store) RetrievePrivateKey(ctx context.Context) (string, bool, error) {
	return s.Retrieve(ctx, constants.KeyPrivateKey)
}

func (s *Store) DeletePrivateKey(ctx context.Context) error {
	return s.Delete(ctx, constants.KeyPrivateKey)
}

func (s *Store) StoreWalletAddress(ctx context.Context, address string) error {
	return s.Store(ctx, constants.KeyWalletAddress, address)
}

func (s *Store) RetrieveWalletAddress(ctx context.Context) (string, bool, error) {
	return s.Retrieve(ctx, constants.KeyWalletAddress)
}

func (s *Store) DeleteWalletAddress(ctx context.Context) error {
	return s.Delete(ctx, constants.KeyWalletAddress)
}

func (s *Store) StorePIN(ctx context.Context, pin string) error {
	return s.Store(ctx, constants.KeyUserPIN, pin)
}

func (s *Store) RetrievePIN(ctx context.Context) (string, bool, error) {
	return s.Retrieve(ctx, constants.KeyUserPIN)
}

func (s *Store) DeletePIN(ctx context.Context) error {
	return s.Delete(ctx, constants.KeyUserPIN)
}

// caller holds s.mu
func (s *Store) ready(key string) error {
	if s.entries == nil {
		return ErrLocked
	}
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

// commit persists next and only then swaps it in; caller holds s.mu.
func (s *Store) commit(ctx context.Context, next map[string]string, op string) error {
	if err := s.vault.Save(ctx, s.secret, next); err != nil {
		log.Error("keychain write failed", "op", op, "error", err)
		return storageErr(err, op)
	}
	s.entries = next
	return nil
}

func storageErr(err error, op string) error {
	return errors.Mark(errors.Wrapf(err, "keychain %s", op), ErrStorage)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

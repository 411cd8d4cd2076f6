package keychain

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-wallet/internal/constants"
	"github.com/quantumauth-io/quantum-wallet/internal/securefile"
)

// Vault persists the whole keychain map. Implementations must treat a missing
// backing object as an empty keychain.
type Vault interface {
	Load(ctx context.Context, secret []byte) (map[string]string, error)
	Save(ctx context.Context, secret []byte, entries map[string]string) error
}

type vaultFile struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries"`
}

// FileVault keeps the keychain in a single encrypted envelope on disk.
type FileVault struct {
	Path string
	Opt  securefile.Options
}

func NewFileVault(path string) *FileVault {
	return &FileVault{
		Path: path,
		Opt: securefile.Options{
			// IMPORTANT: keep this identical for read + write.
			AAD: []byte(constants.KeychainAAD),
		},
	}
}

func (v *FileVault) Load(_ context.Context, secret []byte) (map[string]string, error) {
	f, err := securefile.ReadEncryptedJSON[vaultFile](v.Path, secret, v.Opt)
	if errors.Is(err, securefile.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if f.Entries == nil {
		f.Entries = map[string]string{}
	}
	return f.Entries, nil
}

func (v *FileVault) Save(_ context.Context, secret []byte, entries map[string]string) error {
	return securefile.WriteEncryptedJSON(v.Path, vaultFile{Version: 1, Entries: entries}, secret, v.Opt)
}

// MemoryVault is a process-local vault. The secret is recorded on first save
// and must match on later loads, mirroring the file vault's behavior.
type MemoryVault struct {
	mu      sync.Mutex
	secret  string
	entries map[string]string
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{}
}

func (v *MemoryVault) Load(_ context.Context, secret []byte) (map[string]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.entries == nil {
		return map[string]string{}, nil
	}
	if v.secret != string(secret) {
		return nil, securefile.ErrInvalidSecretOrCorrupt
	}
	return copyEntries(v.entries), nil
}

func (v *MemoryVault) Save(_ context.Context, secret []byte, entries map[string]string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.secret = string(secret)
	v.entries = copyEntries(entries)
	return nil
}

func copyEntries(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, val := range in {
		out[k] = val
	}
	return out
}

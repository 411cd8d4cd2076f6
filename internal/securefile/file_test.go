package securefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

var testOpts = Options{
	KDF: KDFParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32},
	AAD: []byte("test:aad"),
}

type payload struct {
	Entries map[string]string `json:"entries"`
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vault.json")
	secret := []byte("device-secret")

	in := payload{Entries: map[string]string{"private_key": "abc", "user_pin": "123456"}}
	require.NoError(t, WriteEncryptedJSON(path, in, secret, testOpts))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "123456")

	out, err := ReadEncryptedJSON[payload](path, secret, testOpts)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestReadWrongSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	require.NoError(t, WriteEncryptedJSON(path, payload{}, []byte("right"), testOpts))

	_, err := ReadEncryptedJSON[payload](path, []byte("wrong"), testOpts)
	require.ErrorIs(t, err, ErrInvalidSecretOrCorrupt)
}

func TestReadWrongAAD(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	require.NoError(t, WriteEncryptedJSON(path, payload{}, []byte("s"), testOpts))

	other := testOpts
	other.AAD = []byte("other:aad")
	_, err := ReadEncryptedJSON[payload](path, []byte("s"), other)
	require.ErrorIs(t, err, ErrInvalidSecretOrCorrupt)
}

func TestReadMissing(t *testing.T) {
	_, err := ReadEncryptedJSON[payload](filepath.Join(t.TempDir(), "nope.json"), []byte("s"), testOpts)
	require.True(t, errors.Is(err, ErrNotFound))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteRejectsEmptySecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	require.Error(t, WriteEncryptedJSON(path, payload{}, nil, testOpts))
	require.Error(t, WriteEncryptedJSON(path, payload{}, make([]byte, 8), testOpts))
}

func TestLoadOrCreateKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.key")

	first, err := LoadOrCreateKeyFile(path)
	require.NoError(t, err)
	require.Len(t, first, 32)

	second, err := LoadOrCreateKeyFile(path)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	_, err = LoadOrCreateKeyFile(path)
	require.Error(t, err)
}

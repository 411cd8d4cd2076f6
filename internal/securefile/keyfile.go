package securefile

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

const deviceKeyLen = 32

// LoadOrCreateKeyFile returns the device secret stored at path, creating a
// random one (hex, mode 0600) on first use. The secret stands in for the
// platform keychain's "device unlocked" state: whoever can read this file as
// the owning OS user can unlock the keychain.
func LoadOrCreateKeyFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(b)))
		if err != nil || len(key) != deviceKeyLen {
			return nil, errors.Newf("device key %s is malformed", path)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(err, "read device key %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}

	key := make([]byte, deviceKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "rand device key")
	}
	if err := atomicWriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

package filedrop

import (
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
)

const identityFileName = "identity.key"

// dataDir returns the path to the node's data directory. If baseDir is
// provided, it is used instead of the default under the user home.
func dataDir(baseDir string) (string, error) {
	if baseDir != "" {
		return baseDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".filedrop"), nil
}

// SaveIdentity writes the private key to the data directory.
func SaveIdentity(key crypto.PrivKey, baseDir string) error {
	dir, err := dataDir(baseDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	keyBytes, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, identityFileName), keyBytes, 0o600)
}

// LoadIdentity loads the private key from the data directory, generating
// and saving a fresh Ed25519 key on first run. The derived peer id stays
// stable across restarts, which the per-sender receive files rely on.
func LoadIdentity(baseDir string) (crypto.PrivKey, error) {
	dir, err := dataDir(baseDir)
	if err != nil {
		return nil, err
	}
	keyPath := filepath.Join(dir, identityFileName)

	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		if os.IsNotExist(err) {
			privKey, _, err := crypto.GenerateEd25519Key(nil)
			if err != nil {
				return nil, err
			}
			if err := SaveIdentity(privKey, baseDir); err != nil {
				return nil, err
			}
			return privKey, nil
		}
		return nil, err
	}

	return crypto.UnmarshalPrivateKey(keyBytes)
}

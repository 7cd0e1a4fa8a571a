package filedrop

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadIdentityGeneratesOnFirstRun(t *testing.T) {
	dir := t.TempDir()

	privKey, err := LoadIdentity(dir)
	require.NoError(t, err)
	require.NotNil(t, privKey)

	_, err = os.Stat(filepath.Join(dir, identityFileName))
	require.NoError(t, err, "key must be persisted")
}

func TestLoadIdentityIsStable(t *testing.T) {
	dir := t.TempDir()

	privKey, err := LoadIdentity(dir)
	require.NoError(t, err)

	loaded, err := LoadIdentity(dir)
	require.NoError(t, err)
	require.Equal(t, privKey, loaded, "loaded key should match the saved key")
}

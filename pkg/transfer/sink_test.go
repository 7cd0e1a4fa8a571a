package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSinkAppendsPerSender(t *testing.T) {
	dir := t.TempDir()
	s := NewSink(dir)
	defer func() { require.NoError(t, s.Close()) }()

	alice := newTestPeer(t)
	bob := newTestPeer(t)

	require.NoError(t, s.Append(alice, []byte("hello ")))
	require.NoError(t, s.Append(bob, []byte("other")))
	require.NoError(t, s.Append(alice, []byte("world")))

	got, err := os.ReadFile(filepath.Join(dir, alice.String()))
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), got)

	got, err = os.ReadFile(filepath.Join(dir, bob.String()))
	require.NoError(t, err)
	require.Equal(t, []byte("other"), got)
}

func TestSinkSurvivesReopen(t *testing.T) {
	// A restarted process appends to the same file, never truncates.
	dir := t.TempDir()
	p := newTestPeer(t)

	s := NewSink(dir)
	require.NoError(t, s.Append(p, []byte("first|")))
	require.NoError(t, s.Close())

	s = NewSink(dir)
	require.NoError(t, s.Append(p, []byte("second")))
	require.NoError(t, s.Close())

	got, err := os.ReadFile(filepath.Join(dir, p.String()))
	require.NoError(t, err)
	require.Equal(t, []byte("first|second"), got)
}

func TestSinkCreatesRootLazily(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "inbox")
	s := NewSink(dir)

	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err), "root must not exist before the first chunk")

	require.NoError(t, s.Append(newTestPeer(t), []byte("x")))
	_, err = os.Stat(dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

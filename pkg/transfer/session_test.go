package transfer

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/baruhq/filedrop/pkg/handler"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
)

func newTestPeer(t *testing.T) peer.ID {
	t.Helper()
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	require.NoError(t, err)
	p, err := peer.IDFromPrivateKey(priv)
	require.NoError(t, err)
	return p
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// runSession drains the session into a slice.
func runSession(t *testing.T, s *Session) []Chunk {
	t.Helper()
	out := make(chan Chunk, 128)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(out)
		close(out)
	}()
	var chunks []Chunk
	for c := range out {
		chunks = append(chunks, c)
	}
	require.NoError(t, <-errCh)
	return chunks
}

func TestSessionZeroByteFile(t *testing.T) {
	s := &Session{Peer: newTestPeer(t), Path: writeTempFile(t, nil), ChunkSize: 8, Pace: time.Millisecond}
	require.Empty(t, runSession(t, s), "a zero-byte file must produce zero chunks")
}

func TestSessionExactMultipleOfChunkBound(t *testing.T) {
	data := bytes.Repeat([]byte("abcd"), 8) // 32 bytes
	s := &Session{Peer: newTestPeer(t), Path: writeTempFile(t, data), ChunkSize: 8, Pace: time.Millisecond}

	chunks := runSession(t, s)
	require.Len(t, chunks, 4)
	for _, c := range chunks {
		require.Len(t, c.Data, 8, "every chunk of an exact-multiple file is full sized")
	}
}

func TestSessionTruncatesShortFinalRead(t *testing.T) {
	data := []byte("0123456789abcde") // 15 bytes, bound 4 -> 4,4,4,3
	p := newTestPeer(t)
	s := &Session{Peer: p, Path: writeTempFile(t, data), ChunkSize: 4, Pace: time.Millisecond}

	chunks := runSession(t, s)
	require.Len(t, chunks, 4)
	require.Len(t, chunks[3].Data, 3, "the short final read must not carry stale trailing bytes")

	var joined []byte
	for _, c := range chunks {
		require.Equal(t, p, c.Peer)
		joined = append(joined, c.Data...)
	}
	require.Equal(t, data, joined)
}

func TestSessionMissingFile(t *testing.T) {
	s := &Session{Peer: newTestPeer(t), Path: filepath.Join(t.TempDir(), "absent")}
	out := make(chan Chunk, 1)
	err := s.Run(out)
	require.Error(t, err)
	require.Empty(t, out)
}

// Chunks of one session reassembled in submission (FIFO) order equal the
// source file exactly; under the default LIFO handler they come out
// permuted but complete when submissions queue up before draining.
func TestPipelineThroughHandler(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i)
	}
	p := newTestPeer(t)
	run := func(policy handler.Policy) []byte {
		s := &Session{Peer: p, Path: writeTempFile(t, data), ChunkSize: 16, Pace: time.Millisecond}
		h := handler.New(policy)
		for _, c := range runSession(t, s) {
			h.Submit(c.Data)
		}
		var joined []byte
		for {
			ev, ok := h.Poll()
			if !ok {
				break
			}
			joined = append(joined, ev.Data...)
		}
		return joined
	}

	require.Equal(t, data, run(handler.FIFO))

	reordered := run(handler.LIFO)
	require.NotEqual(t, data, reordered, "queued-up sends drain most recent first")
	require.Len(t, reordered, len(data), "reordering never drops or duplicates bytes")
}

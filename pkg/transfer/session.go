// Package transfer implements the chunked file pipeline: send sessions
// that read a local file in bounded blocks, and the append-only sink for
// received chunks.
package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// ChunkSize bounds one protocol message. The chunk protocol carries no
// framing, so every chunk must stay under what a single substream can
// carry comfortably.
const ChunkSize = 1 << 20

// Pace is the delay between successive chunk submissions of one session.
// It stands in for backpressure: the handler queue grows without bound
// and the substrate gives no flow-control signal.
const Pace = 15 * time.Millisecond

// Chunk is one bounded slice of a file addressed to a peer. Chunks of a
// single session are produced in file order; ordering across peers is
// not meaningful.
type Chunk struct {
	Peer peer.ID
	Data []byte
}

// Session owns one outstanding file send. It is created per "file"
// command and discarded on completion or error; there is no cancellation
// and no retry.
type Session struct {
	Peer peer.ID
	Path string

	// ChunkSize and Pace default to the package constants when zero.
	ChunkSize int
	Pace      time.Duration

	// Progress draws a byte progress bar while sending.
	Progress bool
}

// Run reads the file in bounded blocks and pushes each non-empty block
// onto out, pacing between pushes. The buffer is truncated to the byte
// count actually read so a short final read never carries stale trailing
// bytes. A zero-byte file produces no chunks. Run blocks until the whole
// file is pushed or an error occurs; it never touches out after returning.
func (s *Session) Run(out chan<- Chunk) error {
	size := s.ChunkSize
	if size <= 0 {
		size = ChunkSize
	}
	pace := s.Pace
	if pace <= 0 {
		pace = Pace
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"path": s.Path,
				"err":  err,
			}).Warn("closing send file")
		}
	}()

	var bar *progressbar.ProgressBar
	if s.Progress {
		if fi, err := f.Stat(); err == nil {
			bar = progressbar.DefaultBytes(fi.Size(), "sending")
		}
	}

	for {
		buf := make([]byte, size)
		n, err := f.Read(buf)
		if n > 0 {
			out <- Chunk{Peer: s.Peer, Data: buf[:n]}
			if bar != nil {
				_ = bar.Add(n)
			}
			time.Sleep(pace)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s: %w", s.Path, err)
		}
	}
}

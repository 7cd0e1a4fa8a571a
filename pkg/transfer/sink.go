package transfer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Sink appends received chunks to one file per sender under Root. Files
// are opened lazily on the first chunk from a sender and kept open for
// the process lifetime; they are never truncated, so bytes accumulate
// across runs. The sink is owned by the main loop and is not safe for
// concurrent use.
type Sink struct {
	root  string
	files map[peer.ID]*os.File
}

// NewSink returns a sink rooted at dir. The directory is created on the
// first append, not here.
func NewSink(dir string) *Sink {
	return &Sink{root: dir, files: make(map[peer.ID]*os.File)}
}

// Root returns the sink's receive directory.
func (s *Sink) Root() string {
	return s.root
}

// Append writes data to the end of the sender's receive file. The file
// is `<root>/<sender-peer-id>` with no header or framing: the raw
// concatenation of everything received from that sender.
func (s *Sink) Append(from peer.ID, data []byte) error {
	f, ok := s.files[from]
	if !ok {
		if err := os.MkdirAll(s.root, 0o755); err != nil {
			return fmt.Errorf("create receive dir %s: %w", s.root, err)
		}
		var err error
		path := filepath.Join(s.root, from.String())
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open receive file %s: %w", path, err)
		}
		s.files[from] = f
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append chunk from %s: %w", from, err)
	}
	return nil
}

// Close closes every open receive file, returning the first error seen.
func (s *Sink) Close() error {
	var first error
	for p, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(s.files, p)
	}
	return first
}

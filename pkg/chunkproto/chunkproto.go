// Package chunkproto frames one file chunk onto one substream.
//
// There is no length prefix and no delimiter: the sender writes the raw
// bytes and closes its write side, the receiver reads until end of stream.
// One substream therefore carries exactly one chunk, and the chunk size
// bound is enforced by the sender (see transfer.ChunkSize) since the
// protocol itself cannot resynchronize after a truncated stream.
package chunkproto

import (
	"fmt"
	"io"

	"github.com/libp2p/go-libp2p/core/protocol"
)

// ID is the stream protocol for chunk exchange.
const ID = protocol.ID("/filedrop/chunk/1.0.0")

// WriteStream is the write half of a substream. network.Stream satisfies it.
type WriteStream interface {
	io.Writer
	CloseWrite() error
}

// Send writes data onto a fresh outbound substream and closes the write
// side, which marks the message boundary for the receiver.
func Send(s WriteStream, data []byte) error {
	if _, err := s.Write(data); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	if err := s.CloseWrite(); err != nil {
		return fmt.Errorf("close write side: %w", err)
	}
	return nil
}

// Receive reads exactly one chunk from an inbound substream, consuming
// until the remote closes its write side.
func Receive(s io.Reader) ([]byte, error) {
	data, err := io.ReadAll(s)
	if err != nil {
		return nil, fmt.Errorf("read chunk: %w", err)
	}
	return data, nil
}

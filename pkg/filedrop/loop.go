package filedrop

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"

	"github.com/baruhq/filedrop/pkg/chunkproto"
	"github.com/baruhq/filedrop/pkg/handler"
	"github.com/baruhq/filedrop/pkg/transfer"
)

// Run is the steady-state event loop. One goroutine multiplexes chunks
// produced by send sessions, fully read inbound chunks, connection
// lifecycle events, and user commands. It is the only mutator of the
// registry, the handler map, and the sink, so none of them carry locks.
func (n *Node) Run(ctx context.Context) error {
	go n.readLines(os.Stdin)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-n.ctx.Done():
			return nil
		case c := <-n.chunkCh:
			n.routeOutbound(c)
		case c := <-n.inboundCh:
			n.routeInbound(c)
		case ev := <-n.netCh:
			n.handleNetEvent(ev)
		case line := <-n.lineCh:
			n.handleCommand(line)
		}
	}
}

// readLines feeds user input into the loop. When stdin closes the loop
// simply stops receiving commands; the node keeps running.
func (n *Node) readLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case n.lineCh <- scanner.Text():
		case <-n.ctx.Done():
			return
		}
	}
}

// routeOutbound hands a session-produced chunk to the destination's
// connection handler. Chunks for peers with no open connection are
// dropped; re-issuing the command is the only retry.
func (n *Node) routeOutbound(c transfer.Chunk) {
	h, ok := n.handlers[c.Peer]
	if !ok {
		logrus.WithField("peer", c.Peer).Warn("no open connection, dropping chunk")
		return
	}
	h.Submit(c.Data)
	n.drain(c.Peer, h)
}

// routeInbound queues a received chunk on the sender's handler and
// drains it into the sink.
func (n *Node) routeInbound(c transfer.Chunk) {
	h, ok := n.handlers[c.Peer]
	if !ok {
		// The connection can close between the stream completing and the
		// chunk reaching the loop; the bytes are still good.
		n.appendToSink(c.Peer, c.Data)
		return
	}
	h.OnInboundComplete(c.Data)
	n.drain(c.Peer, h)
}

// drain polls the handler until nothing is ready. Outbound requests
// leave the loop on their own goroutine; inbound chunks go straight to
// the sink.
func (n *Node) drain(p peer.ID, h *handler.Handler) {
	for {
		ev, ok := h.Poll()
		if !ok {
			return
		}
		switch ev.Kind {
		case handler.OutboundRequest:
			go n.sendChunk(p, h, ev.Data)
		case handler.InboundChunk:
			n.appendToSink(p, ev.Data)
		}
	}
}

func (n *Node) appendToSink(p peer.ID, data []byte) {
	if err := n.sink.Append(p, data); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

// sendChunk opens a fresh outbound substream and writes one chunk.
// Errors are swallowed: logged, no event, no retry.
func (n *Node) sendChunk(p peer.ID, h *handler.Handler, data []byte) {
	s, err := n.host.NewStream(n.ctx, p, chunkproto.ID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"peer": p,
			"err":  err,
		}).Debug("outbound substream failed")
		return
	}
	if err := chunkproto.Send(s, data); err != nil {
		logrus.WithFields(logrus.Fields{
			"peer": p,
			"err":  err,
		}).Debug("chunk write failed")
		_ = s.Reset()
		return
	}
	_ = s.Close()
	h.OnOutboundComplete()
}

// handleNetEvent keeps the registry and the handler map in step with
// connection lifecycle: a handler exists exactly while its peer has at
// least one open endpoint.
func (n *Node) handleNetEvent(ev netEvent) {
	if ev.connected {
		n.registry.OnConnected(ev.peer, ev.endpoint)
		if _, ok := n.handlers[ev.peer]; !ok {
			h := handler.New(handler.LIFO)
			n.handlers[ev.peer] = h
			if h.KeepAlive() {
				// The handler never volunteers its connection for pruning.
				n.host.ConnManager().Protect(ev.peer, connTag)
			}
			fmt.Printf("Established connection to %s via %s\n", ev.peer, ev.endpoint.Remote)
		}
		return
	}

	n.registry.OnDisconnected(ev.peer, ev.endpoint)
	if !n.registry.Connected(ev.peer) {
		delete(n.handlers, ev.peer)
		n.host.ConnManager().Unprotect(ev.peer, connTag)
		fmt.Printf("Disconnected from %s\n", ev.peer)
	}
}

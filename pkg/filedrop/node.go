// Package filedrop assembles the file transfer node: a libp2p host with
// relay and hole punching enabled, the rendezvous-driven bootstrap
// sequence, and the single event loop that owns the peer registry, the
// per-connection handlers, and the receive sink.
package filedrop

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/libp2p/go-libp2p"
	rendezvous "github.com/berty/go-libp2p-rendezvous"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"

	"github.com/baruhq/filedrop/pkg/chunkproto"
	"github.com/baruhq/filedrop/pkg/handler"
	"github.com/baruhq/filedrop/pkg/registry"
	"github.com/baruhq/filedrop/pkg/transfer"
)

// Config carries the node's startup parameters.
type Config struct {
	// RelayAddr is the multiaddress of the bootstrap relay/rendezvous
	// peer, including its /p2p component. Mandatory.
	RelayAddr string
	// Port is the TCP listen port; 0 picks a random one.
	Port int
	// RecvRoot is the directory for received files. Defaults to
	// <data-dir>/inbox.
	RecvRoot string
	// DataDir holds the node identity. Defaults to ~/.filedrop.
	DataDir string
	// Debug enables debug-level logging.
	Debug bool
}

// rendezvouser is the slice of the rendezvous client the node consumes.
// rendezvous.RendezvousPoint satisfies it; tests substitute a fake.
type rendezvouser interface {
	Register(ctx context.Context, ns string, ttl int) (time.Duration, error)
	Discover(ctx context.Context, ns string, limit int, cookie []byte) ([]rendezvous.Registration, []byte, error)
}

// netEvent reports a connection lifecycle change into the main loop.
type netEvent struct {
	connected bool
	peer      peer.ID
	endpoint  registry.Endpoint
}

// Node is one filedrop process.
type Node struct {
	host   host.Host
	self   peer.ID
	ctx    context.Context
	cancel context.CancelFunc

	relay        peer.AddrInfo
	relayCircuit ma.Multiaddr
	rdv          rendezvouser
	cookie       []byte
	dial         func(ctx context.Context, p peer.ID) error

	// Owned exclusively by the main loop.
	registry *registry.Registry
	handlers map[peer.ID]*handler.Handler
	sink     *transfer.Sink

	chunkCh   chan transfer.Chunk
	inboundCh chan transfer.Chunk
	netCh     chan netEvent
	lineCh    chan string
}

// New creates the node: identity, host, stream handler, connection
// notifications, and the rendezvous client pointed at the relay.
func New(cfg Config) (*Node, error) {
	relayMaddr, err := ma.NewMultiaddr(cfg.RelayAddr)
	if err != nil {
		return nil, fmt.Errorf("parse relay address %q: %w", cfg.RelayAddr, err)
	}
	relayInfo, err := peer.AddrInfoFromP2pAddr(relayMaddr)
	if err != nil {
		return nil, fmt.Errorf("relay address %q must end in /p2p/<peer-id>: %w", cfg.RelayAddr, err)
	}
	circuit, err := ma.NewMultiaddr("/p2p-circuit")
	if err != nil {
		return nil, err
	}

	dir, err := dataDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	privKey, err := LoadIdentity(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load or generate identity: %w", err)
	}

	recvRoot := cfg.RecvRoot
	if recvRoot == "" {
		recvRoot = filepath.Join(dir, "inbox")
	}

	ctx, cancel := context.WithCancel(context.Background())

	cm, err := connmgr.NewConnManager(50, 200, connmgr.WithGracePeriod(time.Minute))
	if err != nil {
		cancel()
		return nil, err
	}

	h, err := libp2p.New(
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.Port)),
		libp2p.Identity(privKey),
		libp2p.ConnectionManager(cm),
		libp2p.EnableRelay(),
		libp2p.EnableHolePunching(),
		libp2p.NATPortMap(),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}

	n := &Node{
		host:         h,
		self:         h.ID(),
		ctx:          ctx,
		cancel:       cancel,
		relay:        *relayInfo,
		relayCircuit: relayMaddr.Encapsulate(circuit),
		registry:     registry.New(),
		handlers:     make(map[peer.ID]*handler.Handler),
		sink:         transfer.NewSink(recvRoot),
		chunkCh:      make(chan transfer.Chunk, 1024),
		inboundCh:    make(chan transfer.Chunk, 64),
		netCh:        make(chan netEvent, 64),
		lineCh:       make(chan string, 8),
	}

	n.rdv = rendezvous.NewRendezvousPoint(h, relayInfo.ID)
	n.dial = func(ctx context.Context, p peer.ID) error {
		return h.Connect(ctx, peer.AddrInfo{ID: p, Addrs: []ma.Multiaddr{n.relayCircuit}})
	}

	h.SetStreamHandler(chunkproto.ID, n.handleChunkStream)
	h.Network().Notify(&connNotifee{n: n})

	fmt.Printf("Local peer id: %s\n", n.self)
	return n, nil
}

// Host exposes the underlying libp2p host.
func (n *Node) Host() host.Host {
	return n.host
}

// Close shuts the node down.
func (n *Node) Close() error {
	n.cancel()
	if err := n.sink.Close(); err != nil {
		logrus.WithField("err", err).Warn("closing receive sink")
	}
	return n.host.Close()
}

// handleChunkStream runs per inbound substream. It reads the one chunk
// the substream carries and delivers it to the main loop; a read failure
// drops that chunk only, the connection stays up.
func (n *Node) handleChunkStream(s network.Stream) {
	remote := s.Conn().RemotePeer()
	data, err := chunkproto.Receive(s)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"peer": remote,
			"err":  err,
		}).Debug("dropping inbound chunk")
		_ = s.Reset()
		return
	}
	_ = s.Close()

	select {
	case n.inboundCh <- transfer.Chunk{Peer: remote, Data: data}:
	case <-n.ctx.Done():
	}
}

// connNotifee forwards connection lifecycle notifications into the main
// loop. The registry is mutated only there.
type connNotifee struct {
	n *Node
}

func (cn *connNotifee) Connected(_ network.Network, c network.Conn) {
	cn.push(netEvent{connected: true, peer: c.RemotePeer(), endpoint: registry.FromConn(c)})
}

func (cn *connNotifee) Disconnected(_ network.Network, c network.Conn) {
	cn.push(netEvent{connected: false, peer: c.RemotePeer(), endpoint: registry.FromConn(c)})
}

func (cn *connNotifee) Listen(network.Network, ma.Multiaddr)      {}
func (cn *connNotifee) ListenClose(network.Network, ma.Multiaddr) {}

func (cn *connNotifee) push(ev netEvent) {
	select {
	case cn.n.netCh <- ev:
	case <-cn.n.ctx.Done():
	}
}

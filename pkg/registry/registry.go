// Package registry tracks which peers are connected and over which
// endpoints. The registry is owned by the node's main loop and is not
// safe for concurrent use; connection notifications reach it through the
// loop's event channel, never directly.
package registry

import (
	"sort"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Endpoint describes one side of an open connection to a peer. A peer may
// hold several endpoints at once, e.g. a relayed and a direct one.
type Endpoint struct {
	Direction network.Direction
	Local     ma.Multiaddr
	Remote    ma.Multiaddr
}

// FromConn captures the endpoint of a live connection.
func FromConn(c network.Conn) Endpoint {
	return Endpoint{
		Direction: c.Stat().Direction,
		Local:     c.LocalMultiaddr(),
		Remote:    c.RemoteMultiaddr(),
	}
}

// key must be stable for the lifetime of the connection so that the
// disconnect notification removes the endpoint the connect inserted.
func (e Endpoint) key() string {
	k := e.Direction.String()
	if e.Local != nil {
		k += "|" + e.Local.String()
	}
	if e.Remote != nil {
		k += "|" + e.Remote.String()
	}
	return k
}

// Registry maps connected peers to their sets of open endpoints.
type Registry struct {
	peers map[peer.ID]map[string]Endpoint
}

func New() *Registry {
	return &Registry{peers: make(map[peer.ID]map[string]Endpoint)}
}

// OnConnected records a newly established endpoint for a peer.
func (r *Registry) OnConnected(p peer.ID, ep Endpoint) {
	eps, ok := r.peers[p]
	if !ok {
		eps = make(map[string]Endpoint)
		r.peers[p] = eps
	}
	eps[ep.key()] = ep
}

// OnDisconnected removes an endpoint. Closing a peer's last endpoint
// removes the peer entirely: an entry exists iff at least one endpoint
// is currently open.
func (r *Registry) OnDisconnected(p peer.ID, ep Endpoint) {
	eps, ok := r.peers[p]
	if !ok {
		return
	}
	delete(eps, ep.key())
	if len(eps) == 0 {
		delete(r.peers, p)
	}
}

// Connected reports whether the peer has at least one open endpoint.
func (r *Registry) Connected(p peer.ID) bool {
	_, ok := r.peers[p]
	return ok
}

// Endpoints returns the open endpoints of a peer.
func (r *Registry) Endpoints(p peer.ID) []Endpoint {
	eps := make([]Endpoint, 0, len(r.peers[p]))
	for _, ep := range r.peers[p] {
		eps = append(eps, ep)
	}
	return eps
}

// List returns all currently connected peers in a stable sorted order.
func (r *Registry) List() []peer.ID {
	out := make([]peer.ID, 0, len(r.peers))
	for p := range r.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Len reports the number of connected peers.
func (r *Registry) Len() int {
	return len(r.peers)
}

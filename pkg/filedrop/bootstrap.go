package filedrop

import (
	"context"
	"fmt"
	"time"

	rendezvous "github.com/berty/go-libp2p-rendezvous"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/peer"
	circuit "github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/client"
	"github.com/sirupsen/logrus"
)

// Bootstrap runs the linear startup sequence and blocks until it
// completes: confirm a listen address, dial the relay and finish the
// identify exchange with it, reserve a relay slot, register with the
// rendezvous point, then discover and dial peers once. Only after this
// does the steady-state loop take over.
func (n *Node) Bootstrap(ctx context.Context) error {
	n.awaitListenAddrs()

	if err := n.dialRelay(ctx); err != nil {
		return err
	}
	if err := n.reserveRelaySlot(ctx); err != nil {
		return err
	}
	if err := n.register(ctx); err != nil {
		return err
	}
	return n.discoverOnce(ctx)
}

// awaitListenAddrs waits until at least one concrete listen address is
// up or the grace period elapses, whichever comes first, and proceeds
// either way.
func (n *Node) awaitListenAddrs() {
	deadline := time.Now().Add(ListenGrace)
	for len(n.host.Addrs()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	for _, a := range n.host.Addrs() {
		fmt.Printf("Listening on %s/p2p/%s\n", a, n.self)
	}
}

// dialRelay connects to the relay purely so both sides learn their
// publicly observed addresses via identify. The relay is mandatory, so
// failure here is startup fatal.
func (n *Node) dialRelay(ctx context.Context) error {
	sub, err := n.host.EventBus().Subscribe(new(event.EvtPeerIdentificationCompleted))
	if err != nil {
		return fmt.Errorf("subscribe to identify events: %w", err)
	}
	defer sub.Close()

	if err := n.host.Connect(ctx, n.relay); err != nil {
		return fmt.Errorf("dial relay %s: %w", n.relay.ID, err)
	}

	timeout := time.After(IdentifyTimeout)
	for {
		select {
		case e := <-sub.Out():
			evt := e.(event.EvtPeerIdentificationCompleted)
			if evt.Peer == n.relay.ID {
				// Identify is a two-way exchange: completion means the
				// relay told us our observed address and learned its own.
				logrus.WithField("relay", n.relay.ID).Info("identify exchange with relay complete")
				return nil
			}
		case <-timeout:
			return fmt.Errorf("identify exchange with relay %s timed out", n.relay.ID)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// reserveRelaySlot starts listening for inbound relayed connections
// through the bootstrap relay.
func (n *Node) reserveRelaySlot(ctx context.Context) error {
	rsv, err := circuit.Reserve(ctx, n.host, n.relay)
	if err != nil {
		return fmt.Errorf("reserve relay slot at %s: %w", n.relay.ID, err)
	}
	fmt.Println("Relay accepted our reservation request.")
	logrus.WithFields(logrus.Fields{
		"relay":      n.relay.ID,
		"expiration": rsv.Expiration,
	}).Info("relay reservation acquired")
	return nil
}

// register announces this node under the fixed namespace.
func (n *Node) register(ctx context.Context) error {
	ttl, err := n.rdv.Register(ctx, Namespace, rendezvous.DefaultTTL)
	if err != nil {
		return fmt.Errorf("register in namespace %q: %w", Namespace, err)
	}
	fmt.Printf("Registered in namespace %q at rendezvous point %s for the next %s\n",
		Namespace, n.relay.ID, ttl)
	return nil
}

// discoverOnce issues the single startup discovery query, keeps the
// continuation cookie, and dials every newly learned peer through the
// relay circuit. Dial failures are transient: logged and dropped.
func (n *Node) discoverOnce(ctx context.Context) error {
	regs, cookie, err := n.rdv.Discover(ctx, Namespace, DiscoverLimit, n.cookie)
	if err != nil {
		return fmt.Errorf("discover namespace %q: %w", Namespace, err)
	}
	n.cookie = cookie

	for _, p := range dialTargets(n.self, regs) {
		fmt.Printf("Discovered peer %s, dialing via %s\n", p, n.relayCircuit)
		if err := n.dial(ctx, p); err != nil {
			logrus.WithFields(logrus.Fields{
				"peer": p,
				"err":  err,
			}).Debug("relayed dial failed")
		}
	}
	return nil
}

// dialTargets filters a discovery response down to the peers worth
// dialing: everyone but ourselves, once each.
func dialTargets(self peer.ID, regs []rendezvous.Registration) []peer.ID {
	seen := make(map[peer.ID]bool, len(regs))
	var out []peer.ID
	for _, reg := range regs {
		p := reg.Peer.ID
		if p == self || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

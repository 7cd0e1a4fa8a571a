package filedrop

import (
	"context"
	"testing"
	"time"

	rendezvous "github.com/berty/go-libp2p-rendezvous"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
)

// fakeRendezvous scripts discovery responses and records what the node
// asked for.
type fakeRendezvous struct {
	responses  [][]rendezvous.Registration
	cookies    [][]byte
	seenCookie [][]byte
	call       int
}

func (f *fakeRendezvous) Register(context.Context, string, int) (time.Duration, error) {
	return time.Hour, nil
}

func (f *fakeRendezvous) Discover(_ context.Context, _ string, _ int, cookie []byte) ([]rendezvous.Registration, []byte, error) {
	f.seenCookie = append(f.seenCookie, cookie)
	i := f.call
	f.call++
	return f.responses[i], f.cookies[i], nil
}

func registration(p peer.ID) rendezvous.Registration {
	return rendezvous.Registration{Peer: peer.AddrInfo{ID: p}, Ns: Namespace, Ttl: 3600}
}

func TestDiscoverPassesCookieAndSkipsSelf(t *testing.T) {
	self := newTestPeer(t)
	first := newTestPeer(t)
	second := newTestPeer(t)

	fake := &fakeRendezvous{
		responses: [][]rendezvous.Registration{
			{registration(first), registration(self)},
			{registration(second)},
		},
		cookies: [][]byte{[]byte("cookie-1"), []byte("cookie-2")},
	}

	var dialed []peer.ID
	n := &Node{
		self: self,
		rdv:  fake,
		dial: func(_ context.Context, p peer.ID) error {
			dialed = append(dialed, p)
			return nil
		},
	}

	require.NoError(t, n.discoverOnce(context.Background()))
	require.Equal(t, []peer.ID{first}, dialed, "self must never be dialed")
	require.Nil(t, fake.seenCookie[0], "first query carries no cookie")
	require.Equal(t, []byte("cookie-1"), n.cookie)

	// A later query resumes from the returned cookie, so the rendezvous
	// point only hands back registrations it has not delivered before.
	require.NoError(t, n.discoverOnce(context.Background()))
	require.Equal(t, []byte("cookie-1"), fake.seenCookie[1])
	require.Equal(t, []byte("cookie-2"), n.cookie)
	require.Equal(t, []peer.ID{first, second}, dialed)
}

func TestDialTargetsDeduplicates(t *testing.T) {
	self := newTestPeer(t)
	other := newTestPeer(t)

	regs := []rendezvous.Registration{
		registration(other),
		registration(other),
		registration(self),
	}
	require.Equal(t, []peer.ID{other}, dialTargets(self, regs))
}

func TestDialTargetsEmptyResponse(t *testing.T) {
	require.Empty(t, dialTargets(newTestPeer(t), nil))
}

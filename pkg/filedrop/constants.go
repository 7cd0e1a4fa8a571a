package filedrop

import "time"

const (
	// Namespace under which every node registers and discovers at the
	// rendezvous point. Fixed, not user configurable.
	Namespace = "rendezvous"

	// DiscoverLimit caps the registrations returned by one discovery query.
	DiscoverLimit = 100

	// ListenGrace is how long startup waits for a concrete listen address
	// before proceeding without one.
	ListenGrace = 100 * time.Millisecond

	// IdentifyTimeout bounds the identify exchange with the relay during
	// bootstrap. The relay is mandatory, so expiry is startup fatal.
	IdentifyTimeout = 30 * time.Second

	// connTag marks chunk-protocol connections as protected from the
	// connection manager's pruning.
	connTag = "filedrop"
)

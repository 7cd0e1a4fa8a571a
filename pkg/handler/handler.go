// Package handler buffers protocol events for a single open connection.
//
// One Handler exists per connected peer. Send requests and completed
// inbound substreams are queued as tagged events; the owning loop drains
// them with Poll. The handler is not safe for concurrent use: it must be
// mutated from exactly one goroutine.
package handler

// Policy selects the delivery order of buffered events.
type Policy int

const (
	// LIFO appends and pops at the same end of the buffer, so the most
	// recently queued event is delivered first. When many sends queue up
	// faster than they drain, delivery order is the reverse of submission
	// order. This is the long-observed behavior of the node and downstream
	// code tolerates the reordering, so it stays the default. Do not
	// change it to FIFO without auditing the consumers.
	LIFO Policy = iota
	// FIFO pops the oldest event first.
	FIFO
)

// EventKind tags an Event.
type EventKind int

const (
	// OutboundRequest asks the owner to open an outbound substream and
	// write Data onto it.
	OutboundRequest EventKind = iota
	// InboundChunk reports a chunk fully read from an inbound substream.
	InboundChunk
)

// Event is one pending protocol event.
type Event struct {
	Kind EventKind
	Data []byte
}

// Handler is the per-connection event buffer.
type Handler struct {
	policy Policy
	events []Event
}

// New returns a Handler with the given delivery policy.
func New(policy Policy) *Handler {
	return &Handler{policy: policy}
}

// Submit queues an outbound substream request carrying data. It never
// blocks and never fails; the buffer grows without bound.
func (h *Handler) Submit(data []byte) {
	h.events = append(h.events, Event{Kind: OutboundRequest, Data: data})
}

// OnInboundComplete queues a chunk-received event for a fully read
// inbound substream.
func (h *Handler) OnInboundComplete(data []byte) {
	h.events = append(h.events, Event{Kind: InboundChunk, Data: data})
}

// OnOutboundComplete is called when an outbound substream finishes.
// Outbound sends are fire and forget, so nothing is queued.
func (h *Handler) OnOutboundComplete() {}

// Poll removes and returns the next pending event according to the
// handler's policy. The second return is false when nothing is ready.
func (h *Handler) Poll() (Event, bool) {
	if len(h.events) == 0 {
		return Event{}, false
	}
	var ev Event
	switch h.policy {
	case FIFO:
		ev = h.events[0]
		h.events = h.events[1:]
	default:
		ev = h.events[len(h.events)-1]
		h.events = h.events[:len(h.events)-1]
	}
	return ev, true
}

// Len reports the number of pending events.
func (h *Handler) Len() int {
	return len(h.events)
}

// KeepAlive reports whether the connection should be kept open. The
// handler never asks for its connection to be dropped for idleness.
func (h *Handler) KeepAlive() bool {
	return true
}

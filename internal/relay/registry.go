package relay

import (
	"errors"
	"sync"
)

// ErrAlreadyInitiated is returned when a sender opens a second
// conversation with the same receiver
var ErrAlreadyInitiated = errors.New("conversation already initiated")

// conversation identifies a set of connections by the user who started it
type conversation struct {
	initiator string
	recipient string
}

// Registry maps initiator → recipient → connections. A conversation is
// keyed by whichever side initiated first; the counterpart joins that set.
type Registry struct {
	mu    sync.Mutex
	conns map[string]map[string]map[*Client]struct{}
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[string]map[*Client]struct{})}
}

// Join adds c to the conversation between sender and receiver. It fails if
// sender already initiated a conversation with receiver.
func (r *Registry) Join(c *Client, sender, receiver string) (conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[sender][receiver]; ok {
		return conversation{}, ErrAlreadyInitiated
	}

	key := conversation{initiator: sender, recipient: receiver}
	if set, ok := r.conns[receiver][sender]; ok {
		set[c] = struct{}{}
		return conversation{initiator: receiver, recipient: sender}, nil
	}

	if r.conns[sender] == nil {
		r.conns[sender] = make(map[string]map[*Client]struct{})
	}
	r.conns[sender][receiver] = map[*Client]struct{}{c: {}}
	return key, nil
}

// Leave removes c from its conversation, dropping empty sets and maps
func (r *Registry) Leave(c *Client, key conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byRecipient, ok := r.conns[key.initiator]
	if !ok {
		return
	}
	set, ok := byRecipient[key.recipient]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(byRecipient, key.recipient)
	}
	if len(byRecipient) == 0 {
		delete(r.conns, key.initiator)
	}
}

// Members returns a snapshot of the connections in a conversation
func (r *Registry) Members(key conversation) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.conns[key.initiator][key.recipient]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Conversations returns the number of open conversations
func (r *Registry) Conversations() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, byRecipient := range r.conns {
		n += len(byRecipient)
	}
	return n
}

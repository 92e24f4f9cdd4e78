// Package correlate discards results of requests that have been superseded.
//
// Each logical request slot (the open file, the loaded session) issues a
// Ticket before starting asynchronous work. When the result comes back it is
// applied only if its ticket is still the newest for that slot.
package correlate

import "sync"

// Ticket identifies one issued request.
type Ticket[K comparable] struct {
	Key K
	Seq uint64
}

// Latest tracks the newest ticket per slot name.
type Latest[K comparable] struct {
	mu    sync.Mutex
	seq   uint64
	slots map[string]Ticket[K]
}

// Issue starts a new request for key in slot, superseding earlier tickets.
func (l *Latest[K]) Issue(slot string, key K) Ticket[K] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots == nil {
		l.slots = make(map[string]Ticket[K])
	}
	l.seq++
	t := Ticket[K]{Key: key, Seq: l.seq}
	l.slots[slot] = t
	return t
}

// Accept reports whether t is still the newest ticket in slot.
func (l *Latest[K]) Accept(slot string, t Ticket[K]) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.slots[slot]
	return ok && cur == t
}

// Invalidate drops every outstanding ticket, e.g. when the screen is left.
func (l *Latest[K]) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slots = nil
}

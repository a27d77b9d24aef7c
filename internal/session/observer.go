package session

type subscriber struct {
	ch chan Snapshot
}

// Subscribe returns a channel receiving a snapshot after every change,
// starting with the current one. A subscriber that falls behind loses its
// oldest undelivered snapshots, never the newest.
func (s *Session) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	sub := &subscriber{ch: make(chan Snapshot, buffer)}
	s.subscribers[id] = sub
	sub.deliver(s.snapshotLocked())

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[id]; !ok {
			return
		}
		delete(s.subscribers, id)
		close(sub.ch)
	}
	return sub.ch, unsubscribe
}

func (s *Session) notifyLocked(snap Snapshot) {
	for _, sub := range s.subscribers {
		sub.deliver(snap)
	}
}

// deliver is only called with the session lock held, so it is the sole sender.
func (sub *subscriber) deliver(snap Snapshot) {
	select {
	case sub.ch <- snap:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- snap:
	default:
	}
}

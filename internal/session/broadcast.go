package session

import "sync"

// broadcaster fans snapshots out to subscribers. Each subscriber has a buffer
// of one and only ever sees the latest snapshot, so a slow reader never blocks
// the session.
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Snapshot
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Snapshot)}
}

func (b *broadcaster) add(initial Snapshot) (int, <-chan Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Snapshot, 1)
	ch <- initial
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	return id, ch
}

func (b *broadcaster) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *broadcaster) publish(snapshot Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Subscribe returns a channel that receives the current snapshot immediately
// and then the latest one after every applied change. The returned function
// unsubscribes and closes the channel; it is safe to call more than once.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	id, ch := s.subs.add(s.snapshot())
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { s.subs.remove(id) })
	}
}

// Subscribers returns the number of active subscriptions.
func (s *Session) Subscribers() int {
	return s.subs.count()
}

package session

import (
	"sync"

	"github.com/kapu/campaign-ops-go/internal/constants"
)

// Store serialises dispatches for one session and fans snapshots out to
// subscribers. Slow subscribers lose intermediate snapshots, never the
// latest one.
type Store struct {
	mu          sync.Mutex
	state       State
	subscribers map[int]chan State
	nextID      int
}

func NewStore() *Store {
	return &Store{state: Initial(), subscribers: make(map[int]chan State)}
}

// Dispatch applies actions in order and publishes the resulting state once.
func (s *Store) Dispatch(actions ...Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range actions {
		s.state = Reduce(s.state, a)
	}
	for _, ch := range s.subscribers {
		publish(ch, s.state)
	}
	return s.state
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel that receives the current state immediately
// and every state after that. The returned func unsubscribes and closes the
// channel.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan State, constants.SessionLimits.SnapshotBuffer)
	ch <- s.state
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(ch)
			}
		})
	}
}

// CloseSubscribers closes every subscriber channel.
func (s *Store) CloseSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

// publish drops the oldest buffered snapshot when the subscriber is behind.
func publish(ch chan State, state State) {
	for {
		select {
		case ch <- state:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

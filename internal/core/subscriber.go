package core

import (
	"sync"

	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/domain"
)

// Subscriber is one attendee's outbound snapshot stream. Snapshots are
// delivered in version order; a full buffer drops the send rather than
// blocking the session's mutation path, and the subscriber catches up on
// the next publish or via the pull endpoint.
type Subscriber struct {
	ParticipantID domain.ParticipantID

	ch   chan Snapshot
	once sync.Once
}

func newSubscriber(id domain.ParticipantID, buffer int) *Subscriber {
	return &Subscriber{
		ParticipantID: id,
		ch:            make(chan Snapshot, buffer),
	}
}

// Updates is the receive side; it closes when the subscription ends.
func (s *Subscriber) Updates() <-chan Snapshot {
	return s.ch
}

func (s *Subscriber) trySend(snap Snapshot) error {
	select {
	case s.ch <- snap:
		return nil
	default:
		return ErrBackpressure
	}
}

func (s *Subscriber) close() {
	s.once.Do(func() {
		close(s.ch)
	})
}

// Subscribe registers an attendee for snapshot pushes and queues the
// current state immediately, so a fresh subscriber renders without
// waiting for the next mutation. A re-subscribe for the same participant
// replaces the previous stream (reconnect case).
func (s *Session) Subscribe(id domain.ParticipantID) (*Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if old, ok := s.subs[id]; ok {
		old.close()
	}
	sub := newSubscriber(id, s.opts.SubscriberBuffer)
	s.subs[id] = sub
	_ = sub.trySend(s.snapshotLocked(""))
	return sub, nil
}

func (s *Session) Unsubscribe(id domain.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		sub.close()
		delete(s.subs, id)
	}
}

package bus

import (
	"context"
	"sync"
	"time"
)

const memoryBuffer = 256

// Memory is an in-process Bus with the same at-most-once, no-replay
// semantics as the network adapters. Used by tests and single-process runs.
type Memory struct {
	mu     sync.Mutex
	subs   map[string][]*memorySub
	closed bool
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]*memorySub)}
}

func (m *Memory) Publish(_ context.Context, topic string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, s := range m.subs[topic] {
		select {
		case s.ch <- Message{Topic: topic, Body: body}:
		default: // slow subscriber, message dropped like real pub/sub
		}
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, topic string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	s := &memorySub{bus: m, topic: topic, ch: make(chan Message, memoryBuffer)}
	m.subs[topic] = append(m.subs[topic], s)
	return s, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.subs = make(map[string][]*memorySub)
	return nil
}

type memorySub struct {
	bus   *Memory
	topic string
	ch    chan Message
	once  sync.Once
}

func (s *memorySub) Poll(ctx context.Context, timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-s.ch:
		return &msg, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		list := s.bus.subs[s.topic]
		for i, cand := range list {
			if cand == s {
				s.bus.subs[s.topic] = append(list[:i], list[i+1:]...)
				break
			}
		}
	})
	return nil
}

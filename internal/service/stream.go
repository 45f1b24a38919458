package service

import (
	"sort"
	"sync"

	"github.com/Duell10111/artemis-exam-agent/internal/model"
)

// Listener receives every published student exam, or the error that
// prevented loading one. The exam is a snapshot shared by all listeners
// and must be treated as read-only.
//
// Listeners run on the publishing goroutine. They must not block and must
// not subscribe or unsubscribe from inside the callback.
type Listener func(exam *model.StudentExam, err error)

// Stream is a multicast stream that remembers its latest value. A new
// subscriber receives that value before Subscribe returns.
type Stream struct {
	mu        sync.Mutex
	latest    *model.StudentExam
	err       error
	listeners map[uint64]Listener
	nextID    uint64
}

// NewStream creates an empty Stream.
func NewStream() *Stream {
	return &Stream{listeners: make(map[uint64]Listener)}
}

// Subscribe registers l and returns the function removing it again.
func (s *Stream) Subscribe(l Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	if s.latest != nil || s.err != nil {
		l(s.latest, s.err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Latest returns the last published exam.
func (s *Stream) Latest() (*model.StudentExam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.err
}

func (s *Stream) publish(exam *model.StudentExam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest, s.err = exam, nil
	s.emit()
}

func (s *Stream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest, s.err = nil, err
	s.emit()
}

// emit delivers the current value in subscription order. s.mu must be held.
func (s *Stream) emit() {
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s.listeners[id](s.latest, s.err)
	}
}

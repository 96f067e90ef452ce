package track

import "sync"

// contextStack is the stack of resource ids whose callbacks are currently
// executing. Only the loop thread pushes and pops; the lock exists for
// inspection reads from other goroutines.
type contextStack struct {
	lock sync.RWMutex
	ids  []AsyncID
}

func (s *contextStack) push(id AsyncID) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.ids = append(s.ids, id)
}

func (s *contextStack) pop() AsyncID {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.ids) == 0 {
		panic("callback exit without matching entry")
	}

	id := s.ids[len(s.ids)-1]
	s.ids = s.ids[:len(s.ids)-1]

	return id
}

// top returns the id of the innermost executing callback, or None when
// control is with the scheduler.
func (s *contextStack) top() AsyncID {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if len(s.ids) == 0 {
		return None
	}

	return s.ids[len(s.ids)-1]
}

func (s *contextStack) depth() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.ids)
}

func (s *contextStack) contains(id AsyncID) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	for _, cur := range s.ids {
		if cur == id {
			return true
		}
	}

	return false
}

// snapshot copies the stack from the outermost to the innermost entry.
func (s *contextStack) snapshot() []AsyncID {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return append([]AsyncID{}, s.ids...)
}

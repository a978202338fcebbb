package feed

import (
	"sync"
	"time"
)

// ttlSet remembers recently seen keys for a fixed window. Used to suppress
// duplicate signal candidates for the same code.
type ttlSet struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func newTTLSet(ttl time.Duration) *ttlSet {
	return &ttlSet{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Check returns true when the key was not seen within the window, and marks
// it seen. Expired entries are swept opportunistically.
func (s *ttlSet) Check(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if at, ok := s.seen[key]; ok && now.Sub(at) < s.ttl {
		return false
	}
	for k, at := range s.seen {
		if now.Sub(at) >= s.ttl {
			delete(s.seen, k)
		}
	}
	s.seen[key] = now
	return true
}

package app

import "sync"

// feed fans session events out to in-process watchers (the websocket
// transport subscribes authoring-preview clients here).
type feed struct {
	mu          sync.Mutex
	subscribers map[chan SessionEvent]struct{}
}

// Watch subscribes to one session's event stream. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *Service) Watch(quizID, sessionID string) (<-chan SessionEvent, func()) {
	key := feedKey(quizID, sessionID)

	s.mu.Lock()
	f, ok := s.feeds[key]
	if !ok {
		f = &feed{subscribers: make(map[chan SessionEvent]struct{})}
		s.feeds[key] = f
	}
	s.mu.Unlock()

	ch := make(chan SessionEvent, 8)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		empty := len(f.subscribers) == 0
		f.mu.Unlock()
		if empty {
			s.mu.Lock()
			if cur, ok := s.feeds[key]; ok && cur == f {
				delete(s.feeds, key)
			}
			s.mu.Unlock()
		}
	}
	return ch, cancel
}

func (s *Service) publish(quizID, sessionID string, event SessionEvent) {
	s.mu.Lock()
	f, ok := s.feeds[feedKey(quizID, sessionID)]
	s.mu.Unlock()
	if !ok {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest event so a slow watcher never blocks the
			// request path.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

func feedKey(quizID, sessionID string) string {
	return quizID + "/" + sessionID
}

package storage

import "database/sql"

// Op names the kind of mutation carried by a Change.
type Op string

const (
	OpCreate     Op = "create"
	OpUpdate     Op = "update"
	OpSoftDelete Op = "soft_delete"
	OpRestore    Op = "restore"
	OpHardDelete Op = "hard_delete"
)

// Change is published to subscribers after a mutation commits.
type Change struct {
	Op Op
	ID int64
}

// Subscribe returns a buffered channel that receives every committed change.
// A subscriber that falls behind misses changes instead of blocking writers,
// so consumers should treat a receive as "something changed" and re-read.
func (s *Store) Subscribe() chan Change {
	ch := make(chan Change, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(ch chan Change) {
	s.mu.Lock()
	_, ok := s.subs[ch]
	delete(s.subs, ch)
	s.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (s *Store) publish(c Change) {
	s.mu.RLock()
	for ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
	s.mu.RUnlock()
}

func (s *Store) publishIfAffected(res sql.Result, c Change) {
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return
	}
	s.publish(c)
}

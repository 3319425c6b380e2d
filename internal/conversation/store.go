package conversation

import (
	"errors"
	"sync"
)

// ErrEmpty is returned when a Store has never been loaded.
var ErrEmpty = errors.New("no conversation loaded")

// Store holds the single conversation currently loaded in a view. It is
// replaced wholesale on import and never merged. Every replacement bumps the
// revision so late results computed against an older conversation can be
// recognised and dropped.
type Store struct {
	mu       sync.RWMutex
	current  *Conversation
	revision uint64
}

// NewStore returns a Store preloaded with c. A nil c leaves it empty.
func NewStore(c *Conversation) *Store {
	s := &Store{}
	if c != nil {
		s.current = c.Clone()
		s.revision = 1
	}
	return s
}

// Replace swaps in c and returns the new revision.
func (s *Store) Replace(c *Conversation) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = c.Clone()
	s.revision++
	return s.revision
}

// Current returns a copy of the loaded conversation and its revision.
func (s *Store) Current() (*Conversation, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, s.revision, ErrEmpty
	}
	return s.current.Clone(), s.revision, nil
}

// Revision returns the revision of the loaded conversation.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

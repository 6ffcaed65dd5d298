// Package override saves and restores gyro axes across an engagement.
package override

import (
	"errors"
	"fmt"

	"gravitylevel/internal/block"
)

var ErrMissingState = errors.New("override: no saved state for gyro")

// Store remembers the axes each gyro carried before the leveler took it over.
//
// A Store belongs to one engagement: every Adopt is paired with a Restore and
// the store is empty again once the leveler is off.
//
// Not safe for concurrent use.
type Store struct {
	saved map[int64]block.Axes
}

func NewStore() *Store {
	return &Store{saved: make(map[int64]block.Axes)}
}

// Adopt takes over g if its override is engaged: the current axes are saved
// and then zeroed. It reports whether g was adopted; a gyro without override
// is left untouched.
//
// Adopting a gyro that is already held keeps the first saved value.
func (s *Store) Adopt(g block.Gyro) bool {
	if !g.GyroOverride() {
		return false
	}
	id := g.EntityID()
	if _, ok := s.saved[id]; ok {
		return true
	}
	s.saved[id] = g.Axes()
	g.SetAxes(block.Axes{})
	return true
}

// Restore writes the saved axes back onto g, releases its override and
// forgets the record.
func (s *Store) Restore(g block.Gyro) error {
	id := g.EntityID()
	a, ok := s.saved[id]
	if !ok {
		return fmt.Errorf("%w: %s (#%d)", ErrMissingState, g.CustomName(), id)
	}
	g.SetAxes(a)
	g.SetGyroOverride(false)
	delete(s.saved, id)
	return nil
}

// Saved returns the record held for g, if any.
func (s *Store) Saved(g block.Gyro) (block.Axes, bool) {
	a, ok := s.saved[g.EntityID()]
	return a, ok
}

func (s *Store) Len() int {
	return len(s.saved)
}

// Clear drops every remaining record.
func (s *Store) Clear() {
	clear(s.saved)
}

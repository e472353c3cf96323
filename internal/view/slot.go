package view

import "time"

// Slot exclusively owns at most one Mover. Installing a mover drops the
// previous one; there is no other way to cancel a move. A Slot is not safe
// for concurrent use.
type Slot struct {
	mover Mover
	start time.Time
}

// Install replaces the current mover with m, started at now.
func (s *Slot) Install(m Mover, now time.Time) {
	s.mover = m
	s.start = now
}

// Current returns the active mover and the wall time elapsed since it was
// installed.
func (s *Slot) Current(now time.Time) (Mover, time.Duration, bool) {
	if s.mover == nil {
		return nil, 0, false
	}
	return s.mover, now.Sub(s.start), true
}

// Active reports whether a mover is installed.
func (s *Slot) Active() bool { return s.mover != nil }

// Clear drops the current mover.
func (s *Slot) Clear() {
	s.mover = nil
	s.start = time.Time{}
}

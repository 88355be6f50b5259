// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package notify

import "time"

// retryEntry is a notification waiting for its next attempt.
type retryEntry struct {
	n     *Notification
	due   time.Time
	seq   uint64 // insertion order, breaks ties between equal due times
	index int    // position in the heap array, used for O(log n) removal
}

// retrySchedule is a min-heap of pending retries keyed by due time, with a
// parallel map for O(1) lookup by notification id.
//
// It is not safe for concurrent use; the Layer guards it with its own mutex.
type retrySchedule struct {
	heap []*retryEntry
	byID map[string]*retryEntry
	seq  uint64
}

func newRetrySchedule() *retrySchedule {
	return &retrySchedule{byID: make(map[string]*retryEntry)}
}

// Push schedules n for due. Rescheduling an id already present moves it.
func (s *retrySchedule) Push(n *Notification, due time.Time) {
	if existing, ok := s.byID[n.ID]; ok {
		existing.n = n
		existing.due = due
		s.fix(existing.index)
		return
	}
	s.seq++
	entry := &retryEntry{n: n, due: due, seq: s.seq, index: len(s.heap)}
	s.heap = append(s.heap, entry)
	s.byID[n.ID] = entry
	s.bubbleUp(entry.index)
}

// Peek returns the earliest entry without removing it.
func (s *retrySchedule) Peek() *retryEntry {
	if len(s.heap) == 0 {
		return nil
	}
	return s.heap[0]
}

// PopDue removes and returns every entry due at or before now, earliest first.
func (s *retrySchedule) PopDue(now time.Time) []*Notification {
	var due []*Notification
	for len(s.heap) > 0 && !s.heap[0].due.After(now) {
		due = append(due, s.removeAt(0).n)
	}
	return due
}

// Remove drops the entry for id, reporting whether it existed.
func (s *retrySchedule) Remove(id string) (*Notification, bool) {
	entry, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return s.removeAt(entry.index).n, true
}

// Len returns the number of pending retries.
func (s *retrySchedule) Len() int {
	return len(s.heap)
}

// All returns the pending notifications in no particular order.
func (s *retrySchedule) All() []*Notification {
	out := make([]*Notification, len(s.heap))
	for i, e := range s.heap {
		out[i] = e.n
	}
	return out
}

func (s *retrySchedule) removeAt(i int) *retryEntry {
	last := len(s.heap) - 1
	entry := s.heap[i]
	delete(s.byID, entry.n.ID)

	if i == last {
		s.heap = s.heap[:last]
		return entry
	}

	s.heap[i] = s.heap[last]
	s.heap[i].index = i
	s.heap = s.heap[:last]
	s.fix(i)
	return entry
}

func (s *retrySchedule) less(i, j int) bool {
	a, b := s.heap[i], s.heap[j]
	if a.due.Equal(b.due) {
		return a.seq < b.seq
	}
	return a.due.Before(b.due)
}

func (s *retrySchedule) fix(i int) {
	if s.bubbleUp(i) {
		return
	}
	s.bubbleDown(i)
}

func (s *retrySchedule) bubbleUp(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !s.less(i, parent) {
			break
		}
		s.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (s *retrySchedule) bubbleDown(i int) {
	n := len(s.heap)
	for {
		smallest := i
		left, right := 2*i+1, 2*i+2
		if left < n && s.less(left, smallest) {
			smallest = left
		}
		if right < n && s.less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			return
		}
		s.swap(i, smallest)
		i = smallest
	}
}

func (s *retrySchedule) swap(i, j int) {
	s.heap[i], s.heap[j] = s.heap[j], s.heap[i]
	s.heap[i].index = i
	s.heap[j].index = j
}

// Package queue holds the per-session matchmaking queue. The queue itself is
// not synchronized: the session registry owns it and serializes every
// mutation under the session lock, which is what guarantees a student can
// never be paired twice.
package queue

import "slices"

type Queue struct {
	waiting    []string
	eliminated map[string]bool
}

func New() *Queue {
	return &Queue{eliminated: map[string]bool{}}
}

// Enqueue appends a student, FIFO. Eliminated students and students already
// waiting are refused.
func (q *Queue) Enqueue(studentID string) bool {
	if q.eliminated[studentID] || slices.Contains(q.waiting, studentID) {
		return false
	}
	q.waiting = append(q.waiting, studentID)
	return true
}

// Pair atomically removes and returns the two longest-waiting students.
func (q *Queue) Pair() (p1, p2 string, ok bool) {
	if len(q.waiting) < 2 {
		return "", "", false
	}
	p1, p2 = q.waiting[0], q.waiting[1]
	q.waiting = q.waiting[2:]
	return p1, p2, true
}

// Remove takes a student out of the waiting line (disconnect while queued).
func (q *Queue) Remove(studentID string) bool {
	i := slices.Index(q.waiting, studentID)
	if i < 0 {
		return false
	}
	q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
	return true
}

// Eliminate marks a student out of the tournament; they can never re-enter
// the queue.
func (q *Queue) Eliminate(studentID string) {
	q.Remove(studentID)
	q.eliminated[studentID] = true
}

func (q *Queue) Eliminated(studentID string) bool {
	return q.eliminated[studentID]
}

func (q *Queue) EliminatedCount() int {
	return len(q.eliminated)
}

func (q *Queue) Len() int {
	return len(q.waiting)
}

// Position returns the 1-based position of a waiting student, or 0.
func (q *Queue) Position(studentID string) int {
	i := slices.Index(q.waiting, studentID)
	return i + 1
}

// Peek returns the sole waiting student when no pairing is possible.
func (q *Queue) Peek() (string, bool) {
	if len(q.waiting) != 1 {
		return "", false
	}
	return q.waiting[0], true
}

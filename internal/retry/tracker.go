// Package retry tracks per-business-unit failure streaks and decides when
// persistent failure must escalate to a notification instead of another
// silent retry.
package retry

import "sync"

// Key identifies a failure streak. Two independently constructed keys with
// equal fields are the same key.
type Key struct {
	BusinessUnit string
	SourceSystem string
}

// Decision is the tracker's verdict after recording an outcome.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionEscalate
)

type entry struct {
	attempts  int
	escalated bool
}

// Tracker holds process-lifetime retry state. It is safe for concurrent
// use; a key's counter is only ever mutated under the lock.
type Tracker struct {
	mu        sync.Mutex
	threshold int
	states    map[Key]*entry
}

func NewTracker(threshold int) *Tracker {
	return &Tracker{
		threshold: threshold,
		states:    make(map[Key]*entry),
	}
}

// RecordOutcome updates the streak for key. A success resets it. A failure
// increments it; the first failure to reach the threshold returns
// DecisionEscalate, and the streak will not escalate again until a success
// has reset it.
func (t *Tracker) RecordOutcome(key Key, success bool) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	if success {
		delete(t.states, key)
		return DecisionNone
	}

	e := t.states[key]
	if e == nil {
		e = &entry{}
		t.states[key] = e
	}
	e.attempts++

	if e.attempts >= t.threshold && !e.escalated {
		e.escalated = true
		return DecisionEscalate
	}
	return DecisionNone
}

// Attempts returns the current streak length for key.
func (t *Tracker) Attempts(key Key) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e := t.states[key]; e != nil {
		return e.attempts
	}
	return 0
}

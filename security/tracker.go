// Package security tracks per-player action history in sliding windows
// and flags players whose recent behavior looks automated or abusive.
package security

import (
	"sync"
	"time"
)

// attempt is one recorded action.
type attempt struct {
	at      time.Time
	success bool
}

// tracker holds the sliding-window history for one player's actions.
// Entries are kept per action name, capped at maxEntries each.
type tracker struct {
	mu       sync.Mutex
	actions  map[string][]attempt
	lastSeen time.Time
}

const maxEntries = 100

func newTracker() *tracker {
	return &tracker{actions: make(map[string][]attempt), lastSeen: time.Now()}
}

// record appends an attempt, dropping the oldest entry once the per-action
// cap is reached.
func (t *tracker) record(action string, success bool, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen = now
	list := t.actions[action]
	if len(list) >= maxEntries {
		list = list[1:]
	}
	t.actions[action] = append(list, attempt{at: now, success: success})
}

// failuresSince counts failed attempts for action newer than cutoff.
func (t *tracker) failuresSince(action string, cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, a := range t.actions[action] {
		if !a.success && a.at.After(cutoff) {
			n++
		}
	}
	return n
}

// attemptsSince counts all attempts for action newer than cutoff.
func (t *tracker) attemptsSince(action string, cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, a := range t.actions[action] {
		if a.at.After(cutoff) {
			n++
		}
	}
	return n
}

// idleSince reports the time of the tracker's most recent activity.
func (t *tracker) idleSince() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeen
}

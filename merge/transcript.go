// Package merge implements the Segment Merge Engine (spec.md §4.5): it
// maintains the canonical Transcript given a stream of segments from
// multiple tiers, applying the dominance rule so a higher tier always
// wins over an overlapping lower one.
package merge

import (
	"sort"
	"sync"
)

// Epsilon is the overlap tolerance below which two segments are not
// considered competing (§3 Transcript invariant, §4.5 dominance rule).
const Epsilon = 0.1

// Segment is the §3 Segment tuple.
type Segment struct {
	StartS      float64
	EndS        float64
	Text        string
	Level       int
	Tokens      []int32
	IsSeparator bool
}

// overlap returns the overlap in seconds between two intervals, 0 if they
// do not overlap.
func overlap(a, b Segment) float64 {
	lo := a.StartS
	if b.StartS > lo {
		lo = b.StartS
	}
	hi := a.EndS
	if b.EndS < hi {
		hi = b.EndS
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Transcript is the ordered, non-overlapping sequence of segments, with
// separators preserved verbatim (§3 Transcript).
type Transcript struct {
	mu       sync.Mutex
	segments []Segment
}

// Snapshot returns a consistent copy of the transcript (§5
// Shared-resource policy: "Sink sees a consistent snapshot after each
// change").
func (t *Transcript) Snapshot() []Segment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// Insert runs the §4.5 insertion procedure for a newly arrived segment n.
// It reports whether n was accepted (false means n was rejected by a
// higher-level overlapping segment). Separator segments bypass the
// dominance rule entirely and are always appended (§4.5 "Separator
// segments ... are only appended by the Orchestrator on commit").
func (t *Transcript) Insert(n Segment) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n.IsSeparator {
		t.segments = append(t.segments, n)
		t.sortLocked()
		return true
	}

	// Step 2: reject if a higher-level overlapping segment survives.
	for _, s := range t.segments {
		if s.IsSeparator {
			continue
		}
		if overlap(s, n) > Epsilon && s.Level > n.Level {
			return false
		}
	}

	// Step 1: remove every non-separator segment that n dominates or ties.
	kept := t.segments[:0:0]
	for _, s := range t.segments {
		if s.IsSeparator {
			kept = append(kept, s)
			continue
		}
		if overlap(s, n) > Epsilon && s.Level <= n.Level {
			continue // evicted: n wins on higher level, or ties and is newer
		}
		kept = append(kept, s)
	}
	t.segments = append(kept, n)
	t.sortLocked()
	return true
}

// sortLocked re-sorts by StartS; callers must hold t.mu. The sort is
// stable, so segments with equal StartS (e.g. a segment and a separator
// pinned at the same instant, §8 scenario 2) keep their insertion order.
func (t *Transcript) sortLocked() {
	sort.SliceStable(t.segments, func(i, j int) bool {
		return t.segments[i].StartS < t.segments[j].StartS
	})
}

// AppendSeparator appends a zero-width level-0 segment pinned at the
// transcript's current tail end time (§4.1 commit(): "the Merge Engine
// appends a separator segment pinned at the last known end time").
func (t *Transcript) AppendSeparator() Segment {
	t.mu.Lock()
	defer t.mu.Unlock()

	tail := 0.0
	for _, s := range t.segments {
		if s.EndS > tail {
			tail = s.EndS
		}
	}
	sep := Segment{StartS: tail, EndS: tail, Level: 0, IsSeparator: true}
	t.segments = append(t.segments, sep)
	t.sortLocked()
	return sep
}

package sre

import (
	"sort"

	"github.com/tudurom/rwsh/buffer"
	"golang.org/x/xerrors"
)

// ConflictError reports overlapping edits from two different origins in
// a parallel group, per spec.md §4.2's merge rule.
type ConflictError struct {
	Origin1, Origin2 string
	Range1, Range2   Span
}

func (e *ConflictError) Error() string {
	return xerrors.Errorf(
		"sre: conflicting edits from %q (%d,%d) and %q (%d,%d)",
		e.Origin1, e.Range1.Start, e.Range1.End,
		e.Origin2, e.Range2.Start, e.Range2.End,
	).Error()
}

// editEntry is one pending, non-destructive buffer edit, as described
// in spec.md §3's "Edit record": a range, a replacement, and the
// identity of the branch that produced it.
type editEntry struct {
	start, end int64
	repl       []rune
	origin     string
	// postStart/postEnd are filled in by Apply with the edit's final
	// position in the post-edit buffer.
	postStart, postEnd int64
}

// EditLog accumulates edits for one SRE stage. No edit mutates the
// buffer until the whole command tree finishes and Apply is called,
// which is what lets parallel-group siblings and x/y iterations read a
// stable buffer regardless of each other's pending changes.
type EditLog struct {
	entries []editEntry
}

// NewEditLog returns an empty EditLog.
func NewEditLog() *EditLog { return &EditLog{} }

// Add records a pending edit and returns its index, used later to look
// up the edit's post-apply span (the "dot after" of a/c/i/d commands).
func (l *EditLog) Add(start, end int64, repl string, origin string) int {
	l.entries = append(l.entries, editEntry{start: start, end: end, repl: []rune(repl), origin: origin})
	return len(l.entries) - 1
}

// Merge appends another log's entries into l, preserving their origin
// tags, the way a parallel group's sibling logs are folded into the
// enclosing stage's log (spec.md §4.2: "the evaluator concatenates all
// edits").
func (l *EditLog) Merge(other *EditLog) []int {
	base := len(l.entries)
	idx := make([]int, len(other.entries))
	for i, e := range other.entries {
		idx[i] = base + i
		l.entries = append(l.entries, e)
	}
	return idx
}

// Apply sorts the log's edits stably by (start, end) and applies them
// to buf in that order with a running offset, detecting conflicts
// between edits of differing origin whose ranges share any interior,
// per spec.md §4.2.
func (l *EditLog) Apply(buf *buffer.Buffer) error {
	order := make([]int, len(l.entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := l.entries[order[i]], l.entries[order[j]]
		if a.start != b.start {
			return a.start < b.start
		}
		return a.end < b.end
	})

	for i := 1; i < len(order); i++ {
		a := l.entries[order[i-1]]
		b := l.entries[order[i]]
		if a.origin == b.origin {
			continue
		}
		if overlaps(a.start, a.end, b.start, b.end) {
			return &ConflictError{
				Origin1: a.origin, Range1: Span{a.start, a.end},
				Origin2: b.origin, Range2: Span{b.start, b.end},
			}
		}
	}

	var offset int64
	for _, i := range order {
		e := &l.entries[i]
		start, end := e.start+offset, e.end+offset
		if _, err := buf.Replace(start, end, string(e.repl)); err != nil {
			return err
		}
		e.postStart, e.postEnd = start, start+int64(len(e.repl))
		offset += int64(len(e.repl)) - (e.end - e.start)
	}
	return nil
}

// overlaps reports whether [s1,e1) and [s2,e2) share any interior rune,
// i.e. touching at a single point does not count as an overlap.
func overlaps(s1, e1, s2, e2 int64) bool {
	lo, hi := s1, e1
	lo2, hi2 := s2, e2
	if lo > lo2 {
		lo, hi, lo2, hi2 = lo2, hi2, lo, hi
	}
	return hi > lo2 && lo < hi2
}

// FinalSpan returns the post-Apply span of the edit at index i. It must
// only be called after Apply has returned successfully.
func (l *EditLog) FinalSpan(i int) Span {
	e := l.entries[i]
	return Span{e.postStart, e.postEnd}
}

// Translate maps a rune position in the pre-edit buffer to its
// corresponding position in the post-edit buffer, for dots that were
// not themselves the direct result of an edit (e.g. the address a
// bare "p" or "=" left dot pointing at). Positions inside another
// edit's replaced range clamp to the end of that edit's replacement,
// mirroring how the teacher's Buffer updates marks across a change.
func (l *EditLog) Translate(pos int64) int64 {
	order := make([]int, len(l.entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := l.entries[order[i]], l.entries[order[j]]
		if a.start != b.start {
			return a.start < b.start
		}
		return a.end < b.end
	})
	var offset int64
	for _, i := range order {
		e := l.entries[i]
		switch {
		case pos <= e.start:
			return pos + offset
		case pos >= e.end:
			offset += int64(len(e.repl)) - (e.end - e.start)
		default: // pos falls inside this edit's replaced range
			return e.start + offset + int64(len(e.repl))
		}
	}
	return pos + offset
}

// Package reconcile reprojects source-calendar event dates onto the target
// region's release calendar. Known anchor dates correct the drift exactly;
// everything between anchors carries a running shift that preserves relative
// spacing.
package reconcile

import (
	"log"
	"sort"
	"strings"
	"time"

	"github.com/voiddp/ak-events-tracker/internal/models"
)

// Recurring operation families never anchor: their target cadence is
// computed structurally, not from release history.
var operationPrefixes = []string{
	"剿灭作战",
	"危机合约",
	"集成战略",
}

// The rotating operation family lags the plain calendar shift by a fixed
// amount on the target calendar.
const (
	rotationPrefix           = "剿灭作战"
	rotationCorrectionDays   = 14
	defaultShiftMonthsFallbk = 6
)

// state is the fold accumulator walked across the sorted event sequence.
type state struct {
	runningShift time.Duration
	prevDate     time.Time

	// lastAnchor remembers the most recent in-order anchor for the
	// ordering repositioning of unanchored events.
	lastAnchor *anchorPoint

	// ignored holds one deferred out-of-order anchor awaiting
	// reconciliation. Deeper nesting is unsupported.
	ignored *anchorPoint
}

type anchorPoint struct {
	defaultShifted time.Time // the anchor event's naively shifted source date
	target         time.Time // its configured target date
}

// Apply computes a target date for every event. Events matching a remove
// sentinel are excluded; anchored events get their configured date exactly;
// the rest interpolate. The input map is not modified.
func Apply(events models.WebEventsData, table Table, shiftMonths int) models.WebEventsData {
	if shiftMonths == 0 {
		shiftMonths = defaultShiftMonthsFallbk
	}

	sorted := sortedByDate(events)
	out := models.WebEventsData{}

	// Undated events cannot be shifted; they pass through untouched.
	for _, ev := range events {
		if ev.SourceDate == nil {
			c := *ev
			out[c.PageKey] = &c
		}
	}

	if !anyAnchored(sorted, table) {
		for _, ev := range sorted {
			c := *ev
			c.TargetDate = timePtr(defaultShifted(ev, shiftMonths))
			out[c.PageKey] = &c
		}
		return out
	}

	st := seed(sorted, table, shiftMonths)
	for _, ev := range sorted {
		next, emitted := step(st, ev, table, shiftMonths)
		st = next
		if emitted != nil {
			out[emitted.PageKey] = emitted
		}
	}
	return out
}

// seed computes the interpolation baseline from the earliest-dated anchored
// event.
func seed(sorted []*models.WebEvent, table Table, shiftMonths int) state {
	for _, ev := range sorted {
		a, ok := table.lookup(ev)
		if !ok || a.Remove || a.Date == nil {
			continue
		}
		return state{runningShift: a.Date.Sub(defaultShifted(ev, shiftMonths))}
	}
	return state{}
}

// step advances the fold by one event, returning the next state and the
// emitted copy (nil when the event is excluded).
func step(st state, ev *models.WebEvent, table Table, shiftMonths int) (state, *models.WebEvent) {
	d := defaultShifted(ev, shiftMonths)

	if isOperationFamily(ev.PageKey) {
		return emit(st, ev, d)
	}

	a, anchored := table.lookup(ev)
	if anchored && a.Remove {
		return st, nil
	}

	if anchored && a.Date != nil {
		target := *a.Date
		if !st.prevDate.IsZero() && target.Before(st.prevDate) {
			// The source reordered this event relative to target release
			// order. Do not re-anchor yet; remember it for later.
			if st.ignored != nil {
				log.Printf("[reconcile] consecutive out-of-order anchors at %q; keeping first deferral", ev.PageKey)
			} else {
				st.ignored = &anchorPoint{defaultShifted: d, target: target}
			}
			return emit(st, ev, target)
		}
		st.runningShift = target.Sub(d)
		st.lastAnchor = &anchorPoint{defaultShifted: d, target: target}
		st.ignored = nil
		return emit(st, ev, target)
	}

	// Unanchored: fold any deferred out-of-order anchor into the shift
	// before positioning.
	if st.ignored != nil {
		st.runningShift = st.ignored.target.Sub(st.ignored.defaultShifted)
		st.lastAnchor = st.ignored
		st.ignored = nil
	}

	// An event that logically precedes the last anchor but whose naive
	// shift would land after the anchor's target keeps its pre-anchor
	// spacing instead.
	if st.lastAnchor != nil && d.Before(st.lastAnchor.defaultShifted) && d.Add(st.runningShift).After(st.lastAnchor.target) {
		return emit(st, ev, st.lastAnchor.target.Add(d.Sub(st.lastAnchor.defaultShifted)))
	}

	return emit(st, ev, d.Add(st.runningShift))
}

func emit(st state, ev *models.WebEvent, target time.Time) (state, *models.WebEvent) {
	c := *ev
	c.TargetDate = timePtr(target)
	st.prevDate = target
	return st, &c
}

// defaultShifted applies the global calendar-month offset, plus the fixed
// family correction for the rotating operation.
func defaultShifted(ev *models.WebEvent, shiftMonths int) time.Time {
	if ev.SourceDate == nil {
		return time.Time{}
	}
	d := ev.SourceDate.AddDate(0, shiftMonths, 0)
	if strings.HasPrefix(ev.PageKey, rotationPrefix) {
		d = d.AddDate(0, 0, rotationCorrectionDays)
	}
	return d
}

func isOperationFamily(key string) bool {
	for _, p := range operationPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func anyAnchored(sorted []*models.WebEvent, table Table) bool {
	for _, ev := range sorted {
		if a, ok := table.lookup(ev); ok && !a.Remove && a.Date != nil && !isOperationFamily(ev.PageKey) {
			return true
		}
	}
	return false
}

// sortedByDate orders events ascending by source date. On ties, plain
// events sort before synthesized operation-family fillers.
func sortedByDate(events models.WebEventsData) []*models.WebEvent {
	out := make([]*models.WebEvent, 0, len(events))
	for _, ev := range events {
		if ev.SourceDate != nil {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := *out[i].SourceDate, *out[j].SourceDate
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		oi, oj := isOperationFamily(out[i].PageKey), isOperationFamily(out[j].PageKey)
		if oi != oj {
			return !oi
		}
		return out[i].PageKey < out[j].PageKey
	})
	return out
}

func timePtr(t time.Time) *time.Time { return &t }

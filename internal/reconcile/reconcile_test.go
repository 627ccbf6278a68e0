package reconcile

import (
	"testing"
	"time"

	"github.com/voiddp/ak-events-tracker/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func event(key string, src time.Time) *models.WebEvent {
	return &models.WebEvent{PageKey: key, SourceDate: &src}
}

func anchorDate(t time.Time) Anchor { return Anchor{Date: &t} }

func targetOf(t *testing.T, out models.WebEventsData, key string) time.Time {
	t.Helper()
	ev, ok := out[key]
	if !ok {
		t.Fatalf("event %q missing from output", key)
	}
	if ev.TargetDate == nil {
		t.Fatalf("event %q has no target date", key)
	}
	return *ev.TargetDate
}

// An unanchored event one week after an anchored one lands one week after
// the anchor's configured date, not at its naive global shift.
func TestRunningShiftInterpolation(t *testing.T) {
	events := models.WebEventsData{
		"EventX": event("EventX", date(2024, time.September, 5)),
		"EventY": event("EventY", date(2024, time.September, 12)),
	}
	table := Table{"EventX": anchorDate(date(2025, time.March, 10))}

	out := Apply(events, table, 6)

	if got := targetOf(t, out, "EventX"); !got.Equal(date(2025, time.March, 10)) {
		t.Errorf("anchored EventX = %v, want exact anchor date", got)
	}
	if got := targetOf(t, out, "EventY"); !got.Equal(date(2025, time.March, 17)) {
		t.Errorf("EventY = %v, want 2025-03-17 (one week after the anchor)", got)
	}
}

func TestAnchorSourceDateTieTakesAnchorTarget(t *testing.T) {
	src := date(2024, time.September, 5)
	events := models.WebEventsData{
		"EventX": event("EventX", src),
		"EventZ": event("EventZ", src),
	}
	table := Table{"EventX": anchorDate(date(2025, time.March, 10))}

	out := Apply(events, table, 6)
	if got := targetOf(t, out, "EventZ"); !got.Equal(date(2025, time.March, 10)) {
		t.Errorf("same-source-date EventZ = %v, want the anchor's exact date", got)
	}
}

func TestRemoveSentinelExcludes(t *testing.T) {
	events := models.WebEventsData{
		"EventA": event("EventA", date(2024, time.September, 5)),
		"EventB": event("EventB", date(2024, time.September, 12)),
	}
	table := Table{
		"EventA": anchorDate(date(2025, time.March, 10)),
		"EventB": {Remove: true},
	}

	out := Apply(events, table, 6)
	if _, ok := out["EventB"]; ok {
		t.Error("removed event present in output")
	}
	if len(out) != 1 {
		t.Errorf("output size = %d, want 1", len(out))
	}
}

func TestNoAnchorFallback(t *testing.T) {
	events := models.WebEventsData{
		"EventA":      event("EventA", date(2024, time.September, 5)),
		"剿灭作战·第23期": event("剿灭作战·第23期", date(2024, time.September, 5)),
	}

	out := Apply(events, Table{}, 6)

	if got := targetOf(t, out, "EventA"); !got.Equal(date(2025, time.March, 5)) {
		t.Errorf("EventA = %v, want plain +6 months", got)
	}
	// The rotating operation family carries its fixed extra correction.
	if got := targetOf(t, out, "剿灭作战·第23期"); !got.Equal(date(2025, time.March, 19)) {
		t.Errorf("rotation = %v, want +6 months +14 days", got)
	}
}

// Recurring operation families never anchor, even when an anchor table is in
// play for the rest of the sequence.
func TestOperationFamilyExemption(t *testing.T) {
	events := models.WebEventsData{
		"EventA":    event("EventA", date(2024, time.September, 5)),
		"危机合约#12": event("危机合约#12", date(2024, time.September, 12)),
	}
	table := Table{"EventA": anchorDate(date(2025, time.April, 1))}

	out := Apply(events, table, 6)
	if got := targetOf(t, out, "危机合约#12"); !got.Equal(date(2025, time.March, 12)) {
		t.Errorf("operation event = %v, want the plain default shift", got)
	}
}

// An anchor whose configured date precedes the previously emitted date does
// not re-anchor immediately; the correction folds in at the next unanchored
// event.
func TestOutOfOrderAnchorDeferral(t *testing.T) {
	events := models.WebEventsData{
		"EventA": event("EventA", date(2024, time.September, 5)),
		"EventB": event("EventB", date(2024, time.September, 20)),
		"EventC": event("EventC", date(2024, time.September, 27)),
	}
	table := Table{
		"EventA": anchorDate(date(2025, time.March, 10)),
		"EventB": anchorDate(date(2025, time.March, 1)), // earlier than A's target
	}

	out := Apply(events, table, 6)

	if got := targetOf(t, out, "EventB"); !got.Equal(date(2025, time.March, 1)) {
		t.Errorf("deferred anchor EventB = %v, want its configured date", got)
	}
	// C interpolates from B once the deferral folds: B ran 19 days ahead of
	// its naive shift, so C lands 19 days ahead of its own.
	if got := targetOf(t, out, "EventC"); !got.Equal(date(2025, time.March, 8)) {
		t.Errorf("EventC = %v, want 2025-03-08", got)
	}
}

func TestUndatedEventPassesThrough(t *testing.T) {
	events := models.WebEventsData{
		"EventA":  event("EventA", date(2024, time.September, 5)),
		"Undated": {PageKey: "Undated"},
	}

	out := Apply(events, Table{}, 6)
	ev, ok := out["Undated"]
	if !ok {
		t.Fatal("undated event dropped")
	}
	if ev.TargetDate != nil {
		t.Errorf("undated event got a target date: %v", ev.TargetDate)
	}
}

func TestLoadEmbeddedAnchors(t *testing.T) {
	table, shiftMonths, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if shiftMonths != 6 {
		t.Errorf("shift_months = %d, want 6", shiftMonths)
	}
	if len(table) == 0 {
		t.Fatal("embedded anchor table is empty")
	}

	foundRemove := false
	for _, a := range table {
		if a.Remove {
			foundRemove = true
		} else if a.Date == nil {
			t.Error("non-remove anchor without a date")
		}
	}
	if !foundRemove {
		t.Error("embedded table has no remove sentinel")
	}
}

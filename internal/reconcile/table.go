package reconcile

import (
	"embed"
	"fmt"
	"log"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voiddp/ak-events-tracker/internal/models"
)

//go:embed data/anchors.yaml
var anchorsYAML embed.FS

// Anchor is one configured entry: a fixed target date, or a sentinel
// removing the event from the output entirely.
type Anchor struct {
	Date   *time.Time
	Remove bool
}

// Table maps event names to anchors. Static configuration, read-only to the
// algorithm.
type Table map[string]Anchor

// lookup matches the event's display name first, then its page key.
func (t Table) lookup(ev *models.WebEvent) (Anchor, bool) {
	if ev.DisplayName != "" {
		if a, ok := t[ev.DisplayName]; ok {
			return a, true
		}
	}
	a, ok := t[ev.PageKey]
	return a, ok
}

type anchorEntry struct {
	Name   string `yaml:"name"`
	Date   string `yaml:"date,omitempty"`
	Remove bool   `yaml:"remove,omitempty"`
}

type anchorFile struct {
	ShiftMonths int           `yaml:"shift_months"`
	Anchors     []anchorEntry `yaml:"anchors"`
}

// Load parses the embedded anchor table. A malformed anchor date is treated
// as no anchor for that name, never as a fatal error.
func Load() (Table, int, error) {
	data, err := anchorsYAML.ReadFile("data/anchors.yaml")
	if err != nil {
		return nil, 0, fmt.Errorf("reconcile: reading embedded anchors: %w", err)
	}
	var f anchorFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, 0, fmt.Errorf("reconcile: parsing anchors: %w", err)
	}

	table := Table{}
	for _, e := range f.Anchors {
		if e.Remove {
			table[e.Name] = Anchor{Remove: true}
			continue
		}
		t, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			log.Printf("[reconcile] skipping anchor %q: bad date %q", e.Name, e.Date)
			continue
		}
		table[e.Name] = Anchor{Date: &t}
	}
	return table, f.ShiftMonths, nil
}

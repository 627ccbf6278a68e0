package models

import (
	"time"
)

// RewardMap maps an item id to a non-negative quantity. Contributions of
// zero or less are dropped at insertion, never stored.
type RewardMap map[string]int

// Add accumulates n onto the quantity for id. Non-positive n is a no-op so
// a failed quantity parse upstream can never shrink or zero an entry.
func (m RewardMap) Add(id string, n int) {
	if id == "" || n <= 0 {
		return
	}
	m[id] += n
}

// Merge folds other into m additively.
func (m RewardMap) Merge(other RewardMap) {
	for id, n := range other {
		m.Add(id, n)
	}
}

// WebEvent is one page/occurrence discovered on the source wiki.
type WebEvent struct {
	PageKey             string     `json:"page_key"`
	DisplayName         string     `json:"display_name,omitempty"`
	Link                string     `json:"link"`
	SourceDate          *time.Time `json:"source_date,omitempty"`
	TargetDate          *time.Time `json:"target_date,omitempty"`
	Rewards             RewardMap  `json:"rewards,omitempty"`
	FarmIDs             []string   `json:"farm_ids,omitempty"`
	InfiniteIDs         []string   `json:"infinite_ids,omitempty"`
	DisableFurtherFetch bool       `json:"disable_further_fetch,omitempty"`
}

// HasInfinite reports whether id is already tracked as unlimited-supply.
func (e *WebEvent) HasInfinite(id string) bool {
	for _, v := range e.InfiniteIDs {
		if v == id {
			return true
		}
	}
	return false
}

// WebEventsData is one run's full dataset, keyed by page key.
type WebEventsData map[string]*WebEvent

// SchedulerTicket identifies one logical caller of the request scheduler.
type SchedulerTicket struct {
	SessionID  string
	RateLimit  time.Duration // requested floor between requests; the scheduler enforces max(this, system floor)
	IsBatchJob bool
}

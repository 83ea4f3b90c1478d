package tier

import (
	"sort"
	"time"
)

// SortByThreshold orders tiers ascending by threshold, then id.
func SortByThreshold(tiers []*Tier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		if tiers[i].Threshold == tiers[j].Threshold {
			return tiers[i].ID < tiers[j].ID
		}
		return tiers[i].Threshold < tiers[j].Threshold
	})
}

// Select returns the highest tier whose threshold is at most points, or the
// lowest tier when none qualifies. tiers must be sorted ascending.
func Select(tiers []*Tier, points int64) *Tier {
	if len(tiers) == 0 {
		return nil
	}

	chosen := tiers[0]
	for _, t := range tiers {
		if t.Threshold > points {
			break
		}
		chosen = t
	}
	return chosen
}

// Highest returns the highest qualifying tier among those matching filter,
// or nil when none qualifies.
func Highest(tiers []*Tier, points int64, filter func(*Tier) bool) *Tier {
	var chosen *Tier
	for _, t := range tiers {
		if !filter(t) || t.Threshold > points {
			continue
		}
		if chosen == nil || t.Threshold >= chosen.Threshold {
			chosen = t
		}
	}
	return chosen
}

// ExpiresOn is Jan 1 of the year after next for lifetime tiers and nil for
// annual tiers.
func ExpiresOn(t *Tier, now time.Time) *time.Time {
	if t == nil || t.IsAnnualRate {
		return nil
	}
	exp := time.Date(now.Year()+2, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &exp
}

package tiersync

import "smallbiznis-loyaltycore/services/tier"

// Placement picks the tier a user belongs to. The annual tier wins when it
// outranks the lifetime tier or when no lifetime tier qualifies.
func Placement(tiers []*tier.Tier, lifeTimePoints, annualPoints int64) *tier.Tier {
	lifeTime := tier.Highest(tiers, lifeTimePoints, func(t *tier.Tier) bool { return t.IsActive && !t.IsAnnualRate })
	annual := tier.Highest(tiers, annualPoints, func(t *tier.Tier) bool { return t.IsActive && t.IsAnnualRate })

	switch {
	case annual != nil && lifeTime != nil && annual.Threshold > lifeTime.Threshold:
		return annual
	case lifeTime == nil:
		return annual
	default:
		return lifeTime
	}
}

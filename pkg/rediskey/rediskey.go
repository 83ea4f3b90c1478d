package rediskey

import "fmt"

// Loyalty keys (global convention across services)
const (
	TierListPrefix = "loyalty:tiers"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildTierListKey returns "loyalty:tiers:{companyID}"
func BuildTierListKey(companyID string) string {
	return NamespaceKey(TierListPrefix, companyID)
}

package enums

import "strings"

type PlanType string

const (
	PlanTypeCredits      PlanType = "credits"
	PlanTypeSubscription PlanType = "subscription"
	PlanTypeHours        PlanType = "hours"
)

func ParsePlanType(raw string) (PlanType, bool) {
	switch PlanType(strings.ToLower(strings.TrimSpace(raw))) {
	case PlanTypeCredits:
		return PlanTypeCredits, true
	case PlanTypeSubscription:
		return PlanTypeSubscription, true
	case PlanTypeHours:
		return PlanTypeHours, true
	default:
		return "", false
	}
}

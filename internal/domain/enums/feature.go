package enums

import "strings"

type Feature string

const (
	FeatureChat      Feature = "chat"
	FeatureInterview Feature = "interview"
)

func ParseFeature(raw string) (Feature, bool) {
	switch Feature(strings.ToLower(strings.TrimSpace(raw))) {
	case FeatureChat:
		return FeatureChat, true
	case FeatureInterview:
		return FeatureInterview, true
	default:
		return "", false
	}
}

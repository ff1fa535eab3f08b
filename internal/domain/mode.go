package domain

import "strings"

// Mode is the top-level workspace the operator has selected.
type Mode string

const (
	ModeDefenseResponse Mode = "DefenseResponse"
	ModeTranslator      Mode = "Translator"
	ModeNetworkAnalysis Mode = "NetworkAnalysis"
	ModeTargeting       Mode = "Targeting"
	ModeProfileManager  Mode = "ProfileManager"
)

// AllModes lists modes in menu order.
var AllModes = []Mode{
	ModeDefenseResponse,
	ModeTranslator,
	ModeNetworkAnalysis,
	ModeTargeting,
	ModeProfileManager,
}

func (m Mode) String() string {
	return string(m)
}

func (m Mode) IsValid() bool {
	switch m {
	case ModeDefenseResponse, ModeTranslator, ModeNetworkAnalysis, ModeTargeting, ModeProfileManager:
		return true
	default:
		return false
	}
}

// ParseMode accepts the canonical name in any letter case.
func ParseMode(s string) (Mode, bool) {
	s = strings.TrimSpace(s)
	for _, m := range AllModes {
		if strings.EqualFold(s, string(m)) {
			return m, true
		}
	}
	return "", false
}

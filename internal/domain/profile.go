package domain

import (
	"fmt"
	"strings"
)

// CandidateProfile is the persona injected into every generation request.
// Profiles are never edited after creation.
type CandidateProfile struct {
	ID               string `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	Role             string `json:"role" yaml:"role"`
	StyleDescription string `json:"styleDescription" yaml:"style_description"`
	KnowledgeBase    string `json:"knowledgeBase" yaml:"knowledge_base"`
	Avatar           string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	ThemeColor       string `json:"themeColor" yaml:"theme_color"`
}

// Validate checks the fields every prompt relies on.
func (p CandidateProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name is required")
	}
	if strings.TrimSpace(p.Role) == "" {
		return fmt.Errorf("profile role is required")
	}
	if strings.TrimSpace(p.StyleDescription) == "" {
		return fmt.Errorf("profile style description is required")
	}
	if p.ThemeColor != "" && !isHexColor(p.ThemeColor) {
		return fmt.Errorf("invalid theme color %q", p.ThemeColor)
	}
	return nil
}

func isHexColor(s string) bool {
	if len(s) != 7 && len(s) != 4 {
		return false
	}
	if s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

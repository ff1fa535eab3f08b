package prompt

import "github.com/kapu/campaign-ops-go/internal/domain"

// DefaultPersona is used when no profile is active.
var DefaultPersona = domain.CandidateProfile{
	Name:             "el candidato",
	Role:             "aspirante a cargo de elección popular",
	StyleDescription: "Cercano, propositivo y respetuoso. Frases cortas, sin tecnicismos innecesarios.",
}

// BuildPersonaInstruction renders the system instruction shared by every
// generation call.
func BuildPersonaInstruction(profile *domain.CandidateProfile) (string, error) {
	persona := DefaultPersona
	if profile != nil {
		persona = *profile
	}
	return render(TemplatePersona, persona)
}

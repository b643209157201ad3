package agent

import (
	"strings"

	"github.com/soyeahso/funnelbot/internal/domain"
)

// Select picks the agent that should answer text. Agents are scanned in
// collection order and the first one with a keyword contained in text
// (case-insensitive) wins. Keywords are compared as stored, surrounding
// spaces included. The wildcard and the empty keyword never match.
//
// With no keyword match the first agent flagged IsDefault is returned, and
// failing that the first agent. ok is false only when agents is empty.
func Select(text string, agents []domain.AgentConfig) (domain.AgentConfig, bool) {
	if len(agents) == 0 {
		return domain.AgentConfig{}, false
	}

	lower := strings.ToLower(text)
	for _, a := range agents {
		if matches(lower, a.Keywords) {
			return a, true
		}
	}

	for _, a := range agents {
		if a.IsDefault {
			return a, true
		}
	}
	return agents[0], true
}

func matches(lowerText string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" || kw == domain.KeywordWildcard {
			continue
		}
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

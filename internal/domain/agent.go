package domain

import "slices"

// KeywordWildcard marks an agent as a catch-all by convention. It is never
// used for substring matching.
const KeywordWildcard = "*"

// AgentConfig is a persona: a system prompt plus the keywords that route
// messages to it. The JSON shape is what agents.json has always stored.
type AgentConfig struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	SystemPrompt string   `json:"systemPrompt"`
	Keywords     []string `json:"keywords"`
	IsDefault    bool     `json:"isDefault"`
}

// Clone returns a copy that shares no slices with a.
func (a AgentConfig) Clone() AgentConfig {
	a.Keywords = slices.Clone(a.Keywords)
	if a.Keywords == nil {
		a.Keywords = []string{}
	}
	return a
}

// DefaultAgent is the agent seeded into an empty store.
func DefaultAgent() AgentConfig {
	return AgentConfig{
		ID:           "default",
		Name:         "Asistente General",
		SystemPrompt: "Eres un asistente útil y amable.",
		Keywords:     []string{KeywordWildcard},
		IsDefault:    true,
	}
}

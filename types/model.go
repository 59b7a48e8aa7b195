package types

import "strings"

// Provider identifies one of the browser-backed chat services.
type Provider string

const (
	ProviderAnthropic Provider = "aipi/anthropic"
	ProviderOpenAI    Provider = "aipi/openai"
)

// Providers lists every supported provider in initialization order.
func Providers() []Provider {
	return []Provider{ProviderAnthropic, ProviderOpenAI}
}

// ModelInfo describes one selectable model of a provider's web UI.
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Provider    Provider
	// PickerSelector is the CSS selector of the model entry inside the
	// provider's model picker menu.
	PickerSelector string `json:"-"`
}

// ClaudeModels are the models reachable through the Claude web UI.
var ClaudeModels = []ModelInfo{
	{
		ID:             string(ProviderAnthropic) + "/claude-3-opus",
		DisplayName:    "Claude 3 Opus",
		Provider:       ProviderAnthropic,
		PickerSelector: `button[aria-label="Claude 3 Opus"]`,
	},
	{
		ID:             string(ProviderAnthropic) + "/claude-3.5-sonnet",
		DisplayName:    "Claude 3.5 Sonnet",
		Provider:       ProviderAnthropic,
		PickerSelector: `button[aria-label="Claude 3.5 Sonnet"]`,
	},
	{
		ID:             string(ProviderAnthropic) + "/claude-3-haiku",
		DisplayName:    "Claude 3 Haiku",
		Provider:       ProviderAnthropic,
		PickerSelector: `button[aria-label="Claude 3 Haiku"]`,
	},
}

// ChatGPTModels are the models reachable through the ChatGPT web UI.
var ChatGPTModels = []ModelInfo{
	{
		ID:             string(ProviderOpenAI) + "/gpt-4",
		DisplayName:    "GPT-4",
		Provider:       ProviderOpenAI,
		PickerSelector: `button[aria-label="GPT-4"]`,
	},
	{
		ID:             string(ProviderOpenAI) + "/gpt-3.5-turbo",
		DisplayName:    "GPT-3.5",
		Provider:       ProviderOpenAI,
		PickerSelector: `button[aria-label="GPT-3.5"]`,
	},
}

// LookupModel resolves a model ID against the registry. The second return
// value is false for unknown models.
func LookupModel(id string) (ModelInfo, bool) {
	for _, m := range ClaudeModels {
		if m.ID == id {
			return m, true
		}
	}
	for _, m := range ChatGPTModels {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// AllModels returns the full registry, Claude first.
func AllModels() []ModelInfo {
	out := make([]ModelInfo, 0, len(ClaudeModels)+len(ChatGPTModels))
	out = append(out, ClaudeModels...)
	out = append(out, ChatGPTModels...)
	return out
}

// ProviderOf derives the provider from a model ID prefix. Unknown prefixes
// return an empty Provider.
func ProviderOf(modelID string) Provider {
	switch {
	case strings.HasPrefix(modelID, string(ProviderAnthropic)):
		return ProviderAnthropic
	case strings.HasPrefix(modelID, string(ProviderOpenAI)):
		return ProviderOpenAI
	default:
		return ""
	}
}

package steps

import "strings"

const (
	DefaultChatModel = "meta/llama-3.2-1b"
	WebSearchModel   = "perplexity/sonar"
)

const basePrompt = "You are a helpful assistant that can answer questions and help with tasks. You can see and analyze images that are shared with you. When a user shares an image, describe what you see in detail."

const memoryHeader = "\n\nRelevant context from previous conversations:\n"

// SystemPrompt appends retrieved memory to the base prompt when there is any.
func SystemPrompt(memory string) string {
	if strings.TrimSpace(memory) == "" {
		return basePrompt
	}
	return basePrompt + memoryHeader + memory
}

// SelectModel picks the model for a turn. Web search always routes to the search model.
func SelectModel(requested string, webSearch bool) string {
	if webSearch {
		return WebSearchModel
	}
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	return DefaultChatModel
}

package chat

// Usage is the token accounting of one turn, optionally enriched with catalog data.
type Usage struct {
	InputTokens       int64 `json:"inputTokens"`
	OutputTokens      int64 `json:"outputTokens"`
	TotalTokens       int64 `json:"totalTokens"`
	ReasoningTokens   int64 `json:"reasoningTokens,omitempty"`
	CachedInputTokens int64 `json:"cachedInputTokens,omitempty"`

	ModelID  string        `json:"modelId,omitempty"`
	Provider string        `json:"provider,omitempty"`
	Context  *ContextLimit `json:"context,omitempty"`
	CostUSD  *Cost         `json:"costUSD,omitempty"`
}

type ContextLimit struct {
	TotalMax  int64 `json:"totalMax,omitempty"`
	InputMax  int64 `json:"inputMax,omitempty"`
	OutputMax int64 `json:"outputMax,omitempty"`
}

type Cost struct {
	InputUSD     float64 `json:"inputUSD,omitempty"`
	OutputUSD    float64 `json:"outputUSD,omitempty"`
	ReasoningUSD float64 `json:"reasoningUSD,omitempty"`
	CacheReadUSD float64 `json:"cacheReadUSD,omitempty"`
	TotalUSD     float64 `json:"totalUSD"`
}

// Normalized fills TotalTokens when the provider omitted it.
func (u Usage) Normalized() Usage {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}

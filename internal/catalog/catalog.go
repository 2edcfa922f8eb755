package catalog

import (
	"encoding/json"
	"strings"

	"github.com/yungbote/galaxychat-backend/internal/domain/chat"
)

// Catalog is the models.dev document: providers keyed by id, each with its models.
type Catalog map[string]Provider

type Provider struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Models map[string]Model `json:"models"`
}

type Model struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Limit Limit  `json:"limit"`
	// Cost is USD per million tokens.
	Cost *Cost `json:"cost,omitempty"`
}

type Limit struct {
	Context int64 `json:"context"`
	Input   int64 `json:"input,omitempty"`
	Output  int64 `json:"output"`
}

type Cost struct {
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
	Reasoning  float64 `json:"reasoning,omitempty"`
	CacheRead  float64 `json:"cache_read,omitempty"`
	CacheWrite float64 `json:"cache_write,omitempty"`
}

func Parse(raw []byte) (Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return c, nil
}

// Lookup resolves "provider/model" ids. When the provider key does not match, it
// falls back to any provider that lists the full id or the bare model name.
func (c Catalog) Lookup(modelID string) (providerID string, m Model, ok bool) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" || c == nil {
		return "", Model{}, false
	}
	prov, name, hasProvider := strings.Cut(modelID, "/")
	if hasProvider {
		if p, found := c[prov]; found {
			if m, found := p.Models[name]; found {
				return prov, m, true
			}
		}
	} else {
		name = modelID
	}
	for pid, p := range c {
		if m, found := p.Models[modelID]; found {
			return pid, m, true
		}
	}
	for pid, p := range c {
		if m, found := p.Models[name]; found {
			return pid, m, true
		}
	}
	return "", Model{}, false
}

const perMillion = 1_000_000

// Enrich merges context limits and cost for modelID into u. Unknown models only get
// their id recorded.
func (c Catalog) Enrich(u chat.Usage, modelID string) chat.Usage {
	u = u.Normalized()
	u.ModelID = modelID
	providerID, m, ok := c.Lookup(modelID)
	if !ok {
		return u
	}
	u.Provider = providerID
	if m.Limit.Context > 0 || m.Limit.Output > 0 || m.Limit.Input > 0 {
		u.Context = &chat.ContextLimit{
			TotalMax:  m.Limit.Context,
			InputMax:  m.Limit.Input,
			OutputMax: m.Limit.Output,
		}
	}
	if m.Cost != nil {
		u.CostUSD = costOf(u, *m.Cost)
	}
	return u
}

func costOf(u chat.Usage, p Cost) *chat.Cost {
	var out chat.Cost

	input := u.InputTokens
	if u.CachedInputTokens > 0 && p.CacheRead > 0 {
		cached := u.CachedInputTokens
		if cached > input {
			cached = input
		}
		input -= cached
		out.CacheReadUSD = float64(cached) * p.CacheRead / perMillion
	}
	out.InputUSD = float64(input) * p.Input / perMillion

	output := u.OutputTokens
	if u.ReasoningTokens > 0 && p.Reasoning > 0 {
		reasoning := u.ReasoningTokens
		if reasoning > output {
			reasoning = output
		}
		output -= reasoning
		out.ReasoningUSD = float64(reasoning) * p.Reasoning / perMillion
	}
	out.OutputUSD = float64(output) * p.Output / perMillion

	out.TotalUSD = out.InputUSD + out.OutputUSD + out.ReasoningUSD + out.CacheReadUSD
	return &out
}

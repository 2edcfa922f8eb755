package services

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var defaultModelsYAML []byte

type ChatModel struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Available   bool   `yaml:"available" json:"available"`
	Type        string `yaml:"type" json:"type"`
}

type ModelService interface {
	List() []ChatModel
	// Get returns the model with id, if listed.
	Get(id string) (ChatModel, bool)
}

type modelService struct {
	models []ChatModel
	byID   map[string]ChatModel
}

// NewModelService parses raw, or the embedded list when raw is empty.
func NewModelService(raw []byte) (ModelService, error) {
	if len(raw) == 0 {
		raw = defaultModelsYAML
	}
	var doc struct {
		Models []ChatModel `yaml:"models"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse models: %w", err)
	}
	s := &modelService{byID: map[string]ChatModel{}}
	for i, m := range doc.Models {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, fmt.Errorf("models[%d]: missing id", i)
		}
		if _, dup := s.byID[m.ID]; dup {
			return nil, fmt.Errorf("models[%d]: duplicate id %q", i, m.ID)
		}
		if m.Type == "" {
			m.Type = "chat-model"
		}
		s.models = append(s.models, m)
		s.byID[m.ID] = m
	}
	return s, nil
}

func (s *modelService) List() []ChatModel {
	out := make([]ChatModel, len(s.models))
	copy(out, s.models)
	return out
}

func (s *modelService) Get(id string) (ChatModel, bool) {
	m, ok := s.byID[strings.TrimSpace(id)]
	return m, ok
}

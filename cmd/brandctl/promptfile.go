package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AI-Template-SDK/senso-visibility/internal/models"
)

// PromptSet is a YAML file of prompts to test:
//
//	brand: Acme CRM
//	url: https://acme-crm.io
//	prompts:
//	  - Which CRM is best for startups?
//	topics:
//	  - name: Pricing
//	    description: Plans and costs
//	    prompts:
//	      - Is Acme CRM worth the price?
type PromptSet struct {
	Brand   string        `yaml:"brand"`
	URL     string        `yaml:"url"`
	Prompts []string      `yaml:"prompts"`
	Topics  []PromptTopic `yaml:"topics"`
}

type PromptTopic struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Prompts     []string `yaml:"prompts"`
}

func loadPromptSet(path string) (*PromptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt file: %w", err)
	}
	return parsePromptSet(data)
}

func parsePromptSet(data []byte) (*PromptSet, error) {
	var set PromptSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing prompt file: %w", err)
	}
	for i, t := range set.Topics {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("topic %d has no name", i+1)
		}
	}
	if set.Count() == 0 {
		return nil, fmt.Errorf("prompt file has no prompts")
	}
	return &set, nil
}

// Count is the number of non-blank prompts in the set
func (s *PromptSet) Count() int {
	n := 0
	for _, p := range s.Prompts {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	for _, t := range s.Topics {
		for _, p := range t.Prompts {
			if strings.TrimSpace(p) != "" {
				n++
			}
		}
	}
	return n
}

// Plans groups the prompts by topic. Prompts listed outside a topic go
// under "General".
func (s *PromptSet) Plans() []models.TopicPlan {
	var plans []models.TopicPlan
	if len(s.Prompts) > 0 {
		plans = append(plans, models.TopicPlan{Name: "General", Description: "Prompts without a topic", Prompts: s.Prompts})
	}
	for _, t := range s.Topics {
		plans = append(plans, models.TopicPlan{Name: t.Name, Description: t.Description, Prompts: t.Prompts})
	}
	return plans
}

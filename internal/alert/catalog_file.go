package alert

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/netwatch/internal/models"
)

type ruleFile struct {
	Rules []models.AlertRule `yaml:"rules"`
}

// FileCatalog serves rules read from a YAML file. Rules without an id get
// one from their position in the file.
type FileCatalog struct {
	path  string
	mutex sync.RWMutex
	rules []models.AlertRule
}

func NewFileCatalog(path string) (*FileCatalog, error) {
	c := &FileCatalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the file. On error the previous rule set stays in place.
func (c *FileCatalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return fmt.Errorf("failed to parse rules file %s: %w", c.path, err)
	}

	c.mutex.Lock()
	c.rules = rules
	c.mutex.Unlock()
	return nil
}

// GetCurrentRules returns the enabled rules.
func (c *FileCatalog) GetCurrentRules(ctx context.Context) ([]models.AlertRule, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	rules := make([]models.AlertRule, 0, len(c.rules))
	for _, r := range c.rules {
		if !r.Disabled {
			rules = append(rules, r)
		}
	}
	return rules, nil
}

// ParseRules decodes a YAML rules document, either a bare list or a
// mapping with a top-level rules key.
func ParseRules(data []byte) ([]models.AlertRule, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var rules []models.AlertRule
	if len(doc.Content) > 0 && doc.Content[0].Kind == yaml.SequenceNode {
		if err := doc.Decode(&rules); err != nil {
			return nil, err
		}
	} else {
		var f ruleFile
		if err := doc.Decode(&f); err != nil {
			return nil, err
		}
		rules = f.Rules
	}

	used := make(map[uint]bool, len(rules))
	for _, r := range rules {
		if r.ID != 0 {
			if used[r.ID] {
				return nil, fmt.Errorf("duplicate rule id %d", r.ID)
			}
			used[r.ID] = true
		}
	}
	next := uint(1)
	for i := range rules {
		if rules[i].ID != 0 {
			continue
		}
		for used[next] {
			next++
		}
		rules[i].ID = next
		used[next] = true
	}
	return rules, nil
}

// MarshalRules encodes rules in the same document shape ParseRules reads.
func MarshalRules(rules []models.AlertRule) ([]byte, error) {
	return yaml.Marshal(ruleFile{Rules: rules})
}

package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/netwatch/internal/models"
)

// ErrRuleNotFound is returned when a rule id does not exist in the catalog.
var ErrRuleNotFound = errors.New("rule not found")

// RuleManager is the database backed rule catalog.
type RuleManager struct {
	db *gorm.DB
}

func NewRuleManager(db *gorm.DB) *RuleManager {
	return &RuleManager{db: db}
}

func (rm *RuleManager) CreateRule(ctx context.Context, rule *models.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return &ValidationError{Kind: "rule", ID: rule.Name, Err: err}
	}
	return rm.db.WithContext(ctx).Create(rule).Error
}

func (rm *RuleManager) UpdateRule(ctx context.Context, rule *models.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return &ValidationError{Kind: "rule", ID: fmt.Sprint(rule.ID), Err: err}
	}
	if _, err := rm.GetRule(ctx, rule.ID); err != nil {
		return err
	}
	return rm.db.WithContext(ctx).Save(rule).Error
}

func (rm *RuleManager) DeleteRule(ctx context.Context, id uint) error {
	result := rm.db.WithContext(ctx).Delete(&models.AlertRule{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrRuleNotFound, id)
	}
	return nil
}

func (rm *RuleManager) GetRule(ctx context.Context, id uint) (*models.AlertRule, error) {
	var rule models.AlertRule
	if err := rm.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrRuleNotFound, id)
		}
		return nil, err
	}
	return &rule, nil
}

// ListRules returns rules ordered by id. A nil enabled lists every rule.
func (rm *RuleManager) ListRules(ctx context.Context, enabled *bool) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	query := rm.db.WithContext(ctx).Order("id")
	if enabled != nil {
		query = query.Where("disabled = ?", !*enabled)
	}
	if err := query.Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (rm *RuleManager) EnableRule(ctx context.Context, id uint) error {
	return rm.setDisabled(ctx, id, false)
}

func (rm *RuleManager) DisableRule(ctx context.Context, id uint) error {
	return rm.setDisabled(ctx, id, true)
}

func (rm *RuleManager) setDisabled(ctx context.Context, id uint, disabled bool) error {
	result := rm.db.WithContext(ctx).Model(&models.AlertRule{}).Where("id = ?", id).Update("disabled", disabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrRuleNotFound, id)
	}
	return nil
}

// GetCurrentRules returns the enabled rules ordered by id.
func (rm *RuleManager) GetCurrentRules(ctx context.Context) ([]models.AlertRule, error) {
	enabled := true
	return rm.ListRules(ctx, &enabled)
}

// DefaultRules is the rule set seeded into an empty catalog.
func DefaultRules() []models.AlertRule {
	return []models.AlertRule{
		{
			Name:        "High CPU Usage",
			Description: "CPU usage above 80%",
			Condition: models.Condition{
				Type:      models.ConditionThreshold,
				Metric:    "cpuUsage",
				Operator:  models.OperatorGT,
				Threshold: models.Num(80),
			},
			Severity:           models.SeverityWarning,
			DedupWindowSeconds: 300,
			Targets:            []string{"noc-team"},
		},
		{
			Name:        "Critical Memory Usage",
			Description: "Memory usage above 95%",
			Condition: models.Condition{
				Type:      models.ConditionThreshold,
				Metric:    "memoryUsage",
				Operator:  models.OperatorGT,
				Threshold: models.Num(95),
			},
			Severity:           models.SeverityCritical,
			DedupWindowSeconds: 900,
			Targets:            []string{"noc-team", "provider-admin"},
		},
		{
			Name:        "Interface Down",
			Description: "Operational status of an interface is down",
			Condition: models.Condition{
				Type:      models.ConditionThreshold,
				Metric:    "ifOperStatus",
				Operator:  models.OperatorEQ,
				Threshold: models.Str("down"),
			},
			Severity:           models.SeverityCritical,
			DedupWindowSeconds: 300,
			Aggregation:        models.AggregationEvent,
			Targets:            []string{"noc-team", "field-technician"},
		},
		{
			Name:        "Device Unreachable",
			Description: "Device stopped answering polls",
			Condition: models.Condition{
				Type:  models.ConditionEvent,
				Event: "deviceUnreachable",
			},
			Severity:           models.SeverityCritical,
			DedupWindowSeconds: 600,
			Aggregation:        models.AggregationEvent,
			Targets:            []string{"noc-team", "provider-admin"},
		},
	}
}

// CreateDefaultRules seeds the default rules when the catalog is empty.
func (rm *RuleManager) CreateDefaultRules(ctx context.Context) error {
	var count int64
	if err := rm.db.WithContext(ctx).Model(&models.AlertRule{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count rules: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, rule := range DefaultRules() {
		rule := rule
		if err := rm.CreateRule(ctx, &rule); err != nil {
			return fmt.Errorf("failed to create default rule %s: %w", rule.Name, err)
		}
	}
	return nil
}

// ImportRules inserts rules in one transaction. Ids are reassigned.
func (rm *RuleManager) ImportRules(ctx context.Context, rules []models.AlertRule) error {
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return &ValidationError{Kind: "rule", ID: rules[i].Name, Err: err}
		}
	}

	return rm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rule := range rules {
			rule.ID = 0
			if err := tx.Create(&rule).Error; err != nil {
				return fmt.Errorf("failed to import rule '%s': %w", rule.Name, err)
			}
		}
		return nil
	})
}

func (rm *RuleManager) ImportRulesFromFile(ctx context.Context, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var rules []models.AlertRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return fmt.Errorf("failed to parse rules: %w", err)
	}
	return rm.ImportRules(ctx, rules)
}

func (rm *RuleManager) ExportRulesToFile(ctx context.Context, filename string) error {
	rules, err := rm.ListRules(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch rules: %w", err)
	}

	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// TestRule evaluates a rule against samples without deduplicating, storing
// or notifying anything.
func TestRule(rule *models.AlertRule, samples []models.MetricSample) ([]models.Candidate, error) {
	if err := rule.Validate(); err != nil {
		return nil, &ValidationError{Kind: "rule", ID: rule.Name, Err: err}
	}

	var candidates []models.Candidate
	for i := range samples {
		if err := samples[i].Validate(); err != nil {
			continue
		}
		found, err := Evaluate(&samples[i], rule)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, found...)
	}
	return candidates, nil
}
